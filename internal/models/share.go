package models

import (
	"errors"
	"time"
	"unicode/utf8"
)

type ShareKind string

const (
	KindFile ShareKind = "file"
	KindText ShareKind = "text"
)

// Share is one published item. Exactly one of File and Text is set, chosen
// by Kind.
type Share struct {
	Code      string
	OwnerID   int64
	Kind      ShareKind
	File      *FileContent
	Text      *TextContent
	Downloads int64
	CreatedAt time.Time
}

type FileContent struct {
	Name string
	Size int64
	// Ref locates the bytes in the content store. It is unrelated to Name.
	Ref string
}

type TextContent struct {
	Body string
}

var (
	ErrUnknownKind     = errors.New("unknown share kind")
	ErrPayloadMismatch = errors.New("share payload does not match its kind")
	ErrInvalidText     = errors.New("text content is not valid UTF-8")
)

func NewFileShare(code string, ownerID int64, name string, size int64, ref string) *Share {
	return &Share{
		Code:    code,
		OwnerID: ownerID,
		Kind:    KindFile,
		File:    &FileContent{Name: name, Size: size, Ref: ref},
	}
}

func NewTextShare(code string, ownerID int64, body string) *Share {
	return &Share{
		Code:    code,
		OwnerID: ownerID,
		Kind:    KindText,
		Text:    &TextContent{Body: body},
	}
}

func (s *Share) Validate() error {
	switch s.Kind {
	case KindFile:
		if s.File == nil || s.Text != nil || s.File.Ref == "" {
			return ErrPayloadMismatch
		}
	case KindText:
		if s.Text == nil || s.File != nil {
			return ErrPayloadMismatch
		}
		if !utf8.ValidString(s.Text.Body) {
			return ErrInvalidText
		}
	default:
		return ErrUnknownKind
	}
	return nil
}

// Size is the stored byte length: the file size, or the UTF-8 length of the
// text.
func (s *Share) Size() int64 {
	switch {
	case s.File != nil:
		return s.File.Size
	case s.Text != nil:
		return int64(len(s.Text.Body))
	}
	return 0
}

type ShareWithOwner struct {
	Share
	OwnerUsername string
}
