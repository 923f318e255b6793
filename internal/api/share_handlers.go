package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"codeshare/internal/apperr"
	"codeshare/internal/codegen"
	"codeshare/internal/models"
	"codeshare/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// multipartOverhead is the slack allowed on top of the file size limit for
// part headers and boundaries.
const multipartOverhead = 1 << 20

type CreateTextRequest struct {
	Content string `json:"content" example:"fmt.Println(\"hello\")"`
}

// shareCode returns the {code} URL parameter, or "" if it could never have
// been issued.
func shareCode(r *http.Request) string {
	code := chi.URLParam(r, "code")
	if !codegen.Valid(code, codegen.DefaultLength) {
		return ""
	}
	return code
}

var errShareNotFound = apperr.E(apperr.NotFound, "share not found")

// @Summary      Upload a file share
// @Description  Streams the multipart "file" field to content storage and returns the new share.
// @Tags         shares
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "File to share"
// @Success      201   {object}  ShareResponse
// @Failure      400   {object}  ErrorResponse "Missing file, disallowed type or too large"
// @Failure      401   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse "No free share code"
// @Failure      500   {object}  ErrorResponse
// @Router       /upload [post]
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	owner := GetUserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.config.Shares.MaxFileBytes+multipartOverhead)

	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, apperr.E(apperr.InvalidInput, "expected a multipart/form-data body"))
		return
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.writeError(w, r, apperr.Wrap(apperr.InvalidInput, err, "malformed multipart body"))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		share, err := s.shares.UploadFile(r.Context(), owner, part.FileName(), part)
		part.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				err = apperr.Wrap(apperr.InvalidInput, err, "request body too large")
			}
			s.writeError(w, r, err)
			return
		}

		s.wsHub.Publish(owner.ID, websocket.Event{Type: websocket.EventShareCreated, ShareCode: share.Code})
		writeJSON(w, http.StatusCreated, newShareResponse(share, false))
		return
	}

	s.writeError(w, r, apperr.E(apperr.InvalidInput, "file is required"))
}

// @Summary      Create a text share
// @Tags         shares
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        createTextRequest  body      CreateTextRequest  true  "Text to share"
// @Success      201                {object}  ShareResponse
// @Failure      400                {object}  ErrorResponse "Empty, too large or not UTF-8"
// @Failure      401                {object}  ErrorResponse
// @Failure      503                {object}  ErrorResponse "No free share code"
// @Failure      500                {object}  ErrorResponse
// @Router       /text [post]
func (s *Server) CreateTextHandler(w http.ResponseWriter, r *http.Request) {
	owner := GetUserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 2*s.config.Shares.MaxTextBytes+multipartOverhead)

	var req CreateTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.E(apperr.InvalidInput, "invalid request body"))
		return
	}

	share, err := s.shares.CreateText(r.Context(), owner, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.wsHub.Publish(owner.ID, websocket.Event{Type: websocket.EventShareCreated, ShareCode: share.Code})
	writeJSON(w, http.StatusCreated, newShareResponse(share, true))
}

// @Summary      Share metadata
// @Description  Public. Returns the share without its payload and does not count as a download.
// @Tags         shares
// @Produce      json
// @Param        code  path      string  true  "Share code"
// @Success      200   {object}  ShareResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /share/{code}/info [get]
func (s *Server) ShareInfoHandler(w http.ResponseWriter, r *http.Request) {
	code := shareCode(r)
	if code == "" {
		s.writeError(w, r, errShareNotFound)
		return
	}

	share, err := s.shares.Get(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShareResponse(share, false))
}

// @Summary      Fetch a share
// @Description  Public. File shares stream as an attachment; text shares return JSON including text_content. Each successful call adds one to the download count.
// @Tags         shares
// @Produce      octet-stream,json
// @Param        code  path      string  true  "Share code"
// @Success      200   {object}  ShareResponse "Text share, or the raw file bytes"
// @Failure      404   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /share/{code} [get]
func (s *Server) FetchShareHandler(w http.ResponseWriter, r *http.Request) {
	code := shareCode(r)
	if code == "" {
		s.writeError(w, r, errShareNotFound)
		return
	}

	d, err := s.shares.Fetch(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	share := d.Share
	s.wsHub.Publish(share.OwnerID, websocket.Event{
		Type:      websocket.EventShareDownloaded,
		ShareCode: share.Code,
		Downloads: share.Downloads,
	})

	if share.Kind == models.KindText {
		writeJSON(w, http.StatusOK, newShareResponse(share, true))
		return
	}
	defer d.Body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": share.File.Name}))
	w.Header().Set("Content-Length", strconv.FormatInt(share.File.Size, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, d.Body); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"share_code": share.Code}).Warn("file transfer interrupted")
	}
}

// @Summary      List my shares
// @Description  The caller's shares, newest first.
// @Tags         shares
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   ShareResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /shares [get]
func (s *Server) ListMySharesHandler(w http.ResponseWriter, r *http.Request) {
	shares, err := s.shares.ListByOwner(r.Context(), GetUserFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShareResponses(shares))
}

// @Summary      Delete a share
// @Description  Owners may delete their shares; admins may delete any share.
// @Tags         shares
// @Security     BearerAuth
// @Param        code  path  string  true  "Share code"
// @Success      204
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /share/{code} [delete]
func (s *Server) DeleteShareHandler(w http.ResponseWriter, r *http.Request) {
	code := shareCode(r)
	if code == "" {
		s.writeError(w, r, errShareNotFound)
		return
	}

	deleted, err := s.shares.Delete(r.Context(), code, GetUserFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.wsHub.Publish(deleted.OwnerID, websocket.Event{Type: websocket.EventShareDeleted, ShareCode: deleted.Code})
	w.WriteHeader(http.StatusNoContent)
}
