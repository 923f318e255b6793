// Package service holds the share lifecycle and identity rules. It talks to
// persistence only through the repository ports and reports failures as
// *apperr.Error.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"codeshare/internal/apperr"
	"codeshare/internal/codegen"
	"codeshare/internal/metrics"
	"codeshare/internal/models"
	"codeshare/internal/repository"
	"codeshare/internal/storage"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// DefaultAllowedExtensions is used when no list is configured.
var DefaultAllowedExtensions = []string{
	".txt", ".pdf", ".doc", ".docx",
	".jpg", ".jpeg", ".png", ".gif",
	".zip", ".tar", ".gz",
	".mp4", ".mp3", ".wav",
	".csv", ".json", ".xml",
	".go", ".js", ".py", ".java",
	".html", ".css", ".md",
}

type ShareOptions struct {
	MaxFileBytes      int64
	MaxTextBytes      int64
	AllowedExtensions []string
	MaxCodeAttempts   int
}

func DefaultShareOptions() ShareOptions {
	return ShareOptions{
		MaxFileBytes:      100 << 20,
		MaxTextBytes:      1 << 20,
		AllowedExtensions: DefaultAllowedExtensions,
		MaxCodeAttempts:   5,
	}
}

// Download is the result of a successful fetch. Body is nil for text
// shares; otherwise the caller must close it.
type Download struct {
	Share *models.Share
	Body  io.ReadCloser
}

type ShareService struct {
	shares  repository.ShareRepository
	content storage.ContentStore
	codes   codegen.Generator
	opts    ShareOptions
	allowed map[string]struct{}
	log     logrus.FieldLogger
}

func NewShareService(shares repository.ShareRepository, content storage.ContentStore, codes codegen.Generator, opts ShareOptions, log logrus.FieldLogger) *ShareService {
	if opts.MaxCodeAttempts < 1 {
		opts.MaxCodeAttempts = 1
	}
	allowed := lo.Associate(opts.AllowedExtensions, func(ext string) (string, struct{}) {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return ext, struct{}{}
	})
	return &ShareService{
		shares:  shares,
		content: content,
		codes:   codes,
		opts:    opts,
		allowed: allowed,
		log:     log,
	}
}

// UploadFile stores the bytes read from r and publishes them under a fresh
// code. The size limit is enforced while streaming.
func (s *ShareService) UploadFile(ctx context.Context, owner *models.User, fileName string, r io.Reader) (*models.Share, error) {
	if owner == nil {
		return nil, apperr.E(apperr.Unauthorized, "authentication required")
	}
	name, err := s.cleanFileName(fileName)
	if err != nil {
		return nil, err
	}

	ref, size, err := s.content.Put(ctx, io.LimitReader(r, s.opts.MaxFileBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not store file")
	}
	if size > s.opts.MaxFileBytes {
		s.discard(ctx, ref)
		return nil, apperr.E(apperr.InvalidInput,
			fmt.Sprintf("file exceeds the maximum size of %d MB", s.opts.MaxFileBytes>>20))
	}

	share, err := s.allocate(ctx, func(code string) *models.Share {
		return models.NewFileShare(code, owner.ID, name, size, ref)
	})
	if err != nil {
		s.discard(ctx, ref)
		return nil, err
	}

	metrics.SharesCreated.WithLabelValues(string(models.KindFile)).Inc()
	s.log.WithFields(logrus.Fields{
		"share_code":  share.Code,
		"user_id":     owner.ID,
		"content_ref": ref,
		"file_size":   size,
	}).Info("file share created")
	return share, nil
}

func (s *ShareService) CreateText(ctx context.Context, owner *models.User, content string) (*models.Share, error) {
	if owner == nil {
		return nil, apperr.E(apperr.Unauthorized, "authentication required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.E(apperr.InvalidInput, "content is required")
	}
	if int64(len(content)) > s.opts.MaxTextBytes {
		return nil, apperr.E(apperr.InvalidInput,
			fmt.Sprintf("text exceeds the maximum size of %d KB", s.opts.MaxTextBytes>>10))
	}
	if !utf8.ValidString(content) {
		return nil, apperr.E(apperr.InvalidInput, "text must be valid UTF-8")
	}

	share, err := s.allocate(ctx, func(code string) *models.Share {
		return models.NewTextShare(code, owner.ID, content)
	})
	if err != nil {
		return nil, err
	}

	metrics.SharesCreated.WithLabelValues(string(models.KindText)).Inc()
	s.log.WithFields(logrus.Fields{"share_code": share.Code, "user_id": owner.ID}).Info("text share created")
	return share, nil
}

// Get reads metadata only and does not count as a download.
func (s *ShareService) Get(ctx context.Context, code string) (*models.Share, error) {
	share, err := s.shares.GetShareByCode(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not load share")
	}
	if share == nil {
		return nil, apperr.E(apperr.NotFound, "share not found")
	}
	return share, nil
}

// Fetch opens the payload and then counts the download. A share deleted at
// any point along the way is NotFound and its counter is left alone.
func (s *ShareService) Fetch(ctx context.Context, code string) (*Download, error) {
	share, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	var body io.ReadCloser
	if share.Kind == models.KindFile {
		body, err = s.content.Get(ctx, share.File.Ref)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, err, "share not found")
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "could not open content")
		}
	}

	updated, err := s.shares.IncrementDownloads(ctx, code)
	if err != nil || updated == nil {
		if body != nil {
			body.Close()
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "could not count download")
		}
		return nil, apperr.E(apperr.NotFound, "share not found")
	}

	metrics.ShareDownloads.WithLabelValues(string(updated.Kind)).Inc()
	return &Download{Share: updated, Body: body}, nil
}

func (s *ShareService) ListByOwner(ctx context.Context, owner *models.User) ([]models.Share, error) {
	if owner == nil {
		return nil, apperr.E(apperr.Unauthorized, "authentication required")
	}
	shares, err := s.shares.ListSharesByOwner(ctx, owner.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not list shares")
	}
	return shares, nil
}

func (s *ShareService) ListAll(ctx context.Context, requester *models.User) ([]models.ShareWithOwner, error) {
	if !requester.IsAdmin() {
		return nil, apperr.E(apperr.Forbidden, "admin role required")
	}
	shares, err := s.shares.ListAllShares(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not list shares")
	}
	return shares, nil
}

// Delete removes the content first and the row second, so a fetch racing
// with it sees either the whole share or NotFound. It returns the share as
// it was before deletion.
func (s *ShareService) Delete(ctx context.Context, code string, requester *models.User) (*models.Share, error) {
	if requester == nil {
		return nil, apperr.E(apperr.Unauthorized, "authentication required")
	}
	share, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if !requester.CanManage(share) {
		return nil, apperr.E(apperr.Forbidden, "only the owner can delete this share")
	}

	if share.Kind == models.KindFile {
		if err := s.content.Delete(ctx, share.File.Ref); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "could not delete content")
		}
	}

	ok, err := s.shares.DeleteShare(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not delete share")
	}
	if !ok {
		return nil, apperr.E(apperr.NotFound, "share not found")
	}

	metrics.SharesDeleted.Inc()
	s.log.WithFields(logrus.Fields{"share_code": code, "user_id": requester.ID}).Info("share deleted")
	return share, nil
}

func (s *ShareService) allocate(ctx context.Context, build func(code string) *models.Share) (*models.Share, error) {
	for attempt := 1; attempt <= s.opts.MaxCodeAttempts; attempt++ {
		created, err := s.shares.CreateShare(ctx, build(s.codes.Generate()))
		if errors.Is(err, repository.ErrCodeTaken) {
			metrics.CodeCollisions.Inc()
			s.log.WithField("attempt", attempt).Debug("share code collision")
			continue
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "could not create share")
		}
		return created, nil
	}
	s.log.WithField("attempts", s.opts.MaxCodeAttempts).Error("share code space exhausted")
	return nil, apperr.E(apperr.ResourceExhausted, "could not allocate a share code, try again")
}

func (s *ShareService) cleanFileName(fileName string) (string, error) {
	name := strings.TrimSpace(strings.ReplaceAll(fileName, `\`, "/"))
	name = path.Base(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", apperr.E(apperr.InvalidInput, "file name is required")
	}
	if strings.ContainsFunc(name, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return "", apperr.E(apperr.InvalidInput, "file name contains control characters")
	}
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[strings.ToLower(path.Ext(name))]; !ok {
			return "", apperr.E(apperr.InvalidInput, "file type not allowed")
		}
	}
	return name, nil
}

func (s *ShareService) discard(ctx context.Context, ref string) {
	if err := s.content.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.log.WithError(err).WithField("content_ref", ref).Error("failed to remove orphaned content")
	}
}
