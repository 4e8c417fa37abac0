package attachments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/pkg/errs"
)

type Upload struct {
	Key  string             `json:"key"`
	URL  string             `json:"url"`
	Kind domain.MessageKind `json:"kind"`
	Size int64              `json:"size"`
}

type Service struct {
	storage  Storage
	maxBytes int64
	urlTTL   time.Duration
}

func NewService(storage Storage, maxBytes int64, urlTTL time.Duration) *Service {
	return &Service{storage: storage, maxBytes: maxBytes, urlTTL: urlTTL}
}

// KindForContentType maps a MIME type to the message kind that carries it.
func KindForContentType(contentType string) (domain.MessageKind, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: content type %q", errs.ErrInvalidInput, contentType)
	}
	major, _, _ := strings.Cut(mt, "/")
	switch major {
	case "image":
		return domain.MessageImage, nil
	case "audio":
		return domain.MessageVoice, nil
	case "video":
		return domain.MessageVideo, nil
	}
	return "", fmt.Errorf("%w: unsupported content type %q", errs.ErrInvalidInput, mt)
}

// Upload stores r under rooms/<roomID>/<uuid><ext>. The returned URL is the
// content of the media message to send.
func (s *Service) Upload(ctx context.Context, roomID, filename, contentType string, r io.Reader, size int64) (*Upload, error) {
	if err := ident.Check("room id", roomID); err != nil {
		return nil, err
	}
	if size < 0 || size > s.maxBytes {
		return nil, fmt.Errorf("%w: attachment size %d exceeds %d bytes", errs.ErrInvalidInput, size, s.maxBytes)
	}
	kind, err := KindForContentType(contentType)
	if err != nil {
		return nil, err
	}

	key := "rooms/" + roomID + "/" + ident.New() + extension(filename, contentType)
	if err := s.storage.Write(ctx, key, io.LimitReader(r, size), size, contentType); err != nil {
		slog.Error("attachments.upload.write failed", slog.String("key", key), slog.Any("err", err))
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}
	url, err := s.storage.GetURL(ctx, key, s.urlTTL)
	if err != nil {
		slog.Error("attachments.upload.getURL failed", slog.String("key", key), slog.Any("err", err))
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}

	return &Upload{Key: key, URL: url, Kind: kind, Size: size}, nil
}

func extension(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" && len(ext) <= 8 && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
