package database

import (
	"context"
	"errors"
	"time"

	"codeshare/internal/models"
	"codeshare/internal/repository"

	"github.com/jackc/pgx/v5"
)

const shareColumns = `code, owner_id, kind, file_name, file_size, content_ref, text_content, downloads, created_at`

type shareRecord struct {
	Code        string
	OwnerID     int64
	Kind        models.ShareKind
	FileName    *string
	FileSize    *int64
	ContentRef  *string
	TextContent *string
	Downloads   int64
	CreatedAt   time.Time
}

func (r *shareRecord) dest() []interface{} {
	return []interface{}{
		&r.Code,
		&r.OwnerID,
		&r.Kind,
		&r.FileName,
		&r.FileSize,
		&r.ContentRef,
		&r.TextContent,
		&r.Downloads,
		&r.CreatedAt,
	}
}

func (r *shareRecord) share() models.Share {
	s := models.Share{
		Code:      r.Code,
		OwnerID:   r.OwnerID,
		Kind:      r.Kind,
		Downloads: r.Downloads,
		CreatedAt: r.CreatedAt,
	}
	switch r.Kind {
	case models.KindFile:
		f := &models.FileContent{}
		if r.FileName != nil {
			f.Name = *r.FileName
		}
		if r.FileSize != nil {
			f.Size = *r.FileSize
		}
		if r.ContentRef != nil {
			f.Ref = *r.ContentRef
		}
		s.File = f
	case models.KindText:
		t := &models.TextContent{}
		if r.TextContent != nil {
			t.Body = *r.TextContent
		}
		s.Text = t
	}
	return s
}

func scanShare(row pgx.Row) (*models.Share, error) {
	var rec shareRecord
	if err := row.Scan(rec.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s := rec.share()
	return &s, nil
}

// CreateShare inserts with ON CONFLICT DO NOTHING. A taken code yields no
// row and is reported as ErrCodeTaken.
func (q *Queries) CreateShare(ctx context.Context, share *models.Share) (*models.Share, error) {
	if err := share.Validate(); err != nil {
		return nil, err
	}

	var fileName, contentRef, textContent *string
	var fileSize *int64
	if share.File != nil {
		fileName, fileSize, contentRef = &share.File.Name, &share.File.Size, &share.File.Ref
	}
	if share.Text != nil {
		textContent = &share.Text.Body
	}

	query := `
		INSERT INTO shares (code, owner_id, kind, file_name, file_size, content_ref, text_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO NOTHING
		RETURNING ` + shareColumns

	created, err := scanShare(q.db.QueryRow(ctx, query,
		share.Code, share.OwnerID, share.Kind, fileName, fileSize, contentRef, textContent))
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, repository.ErrCodeTaken
	}
	return created, nil
}

func (q *Queries) GetShareByCode(ctx context.Context, code string) (*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE code = $1`
	return scanShare(q.db.QueryRow(ctx, query, code))
}

func (q *Queries) IncrementDownloads(ctx context.Context, code string) (*models.Share, error) {
	query := `
		UPDATE shares SET downloads = downloads + 1
		WHERE code = $1
		RETURNING ` + shareColumns
	return scanShare(q.db.QueryRow(ctx, query, code))
}

func (q *Queries) ListSharesByOwner(ctx context.Context, ownerID int64) ([]models.Share, error) {
	query := `
		SELECT ` + shareColumns + `
		FROM shares
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := q.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shares := []models.Share{}
	for rows.Next() {
		var rec shareRecord
		if err := rows.Scan(rec.dest()...); err != nil {
			return nil, err
		}
		shares = append(shares, rec.share())
	}
	return shares, rows.Err()
}

func (q *Queries) ListAllShares(ctx context.Context) ([]models.ShareWithOwner, error) {
	query := `
		SELECT s.code, s.owner_id, s.kind, s.file_name, s.file_size, s.content_ref,
		       s.text_content, s.downloads, s.created_at, u.username
		FROM shares s
		JOIN users u ON u.id = s.owner_id
		ORDER BY s.created_at DESC, s.id DESC
	`
	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shares := []models.ShareWithOwner{}
	for rows.Next() {
		var rec shareRecord
		var username string
		if err := rows.Scan(append(rec.dest(), &username)...); err != nil {
			return nil, err
		}
		shares = append(shares, models.ShareWithOwner{Share: rec.share(), OwnerUsername: username})
	}
	return shares, rows.Err()
}

func (q *Queries) DeleteShare(ctx context.Context, code string) (bool, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM shares WHERE code = $1`, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountShares reads all counters in one statement so they agree.
func (q *Queries) CountShares(ctx context.Context) (models.ShareCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE kind = 'file'),
			COUNT(*) FILTER (WHERE kind = 'text'),
			COALESCE(SUM(file_size) FILTER (WHERE kind = 'file'), 0)::BIGINT
		FROM shares
	`
	var c models.ShareCounts
	err := q.db.QueryRow(ctx, query).Scan(&c.Total, &c.Files, &c.Texts, &c.TotalFileBytes)
	return c, err
}
