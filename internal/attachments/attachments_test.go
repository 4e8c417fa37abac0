package attachments

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/pkg/errs"
)

func TestLocalStorage_WriteReadDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "/files")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, "a/b.txt", strings.NewReader("hello"), 5, "text/plain"); err != nil {
		t.Fatal(err)
	}
	rc, err := s.Read(ctx, "a/b.txt")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Fatalf("data = %q", data)
	}
	url, err := s.GetURL(ctx, "a/b.txt", time.Minute)
	if err != nil || url != "/files/a/b.txt" {
		t.Fatalf("url = %q, %v", url, err)
	}
	if err := s.Delete(ctx, "a/b.txt"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists(ctx, "a/b.txt"); ok {
		t.Fatal("file still exists")
	}
	if _, err := s.Read(ctx, "a/b.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir(), "")
	for _, key := range []string{"../x", "a/../../x", "/etc/passwd", "", ".."} {
		if err := s.Write(context.Background(), key, strings.NewReader("x"), 1, ""); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: err = %v", key, err)
		}
	}
}

func TestKindForContentType(t *testing.T) {
	cases := map[string]domain.MessageKind{
		"image/png":               domain.MessageImage,
		"audio/webm; codecs=opus": domain.MessageVoice,
		"video/mp4":               domain.MessageVideo,
	}
	for ct, want := range cases {
		got, err := KindForContentType(ct)
		if err != nil || got != want {
			t.Fatalf("%s: %v, %v", ct, got, err)
		}
	}
	for _, ct := range []string{"application/pdf", "text/plain", ""} {
		if _, err := KindForContentType(ct); !errors.Is(err, errs.ErrInvalidInput) {
			t.Fatalf("%q: err = %v", ct, err)
		}
	}
}

func TestService_Upload(t *testing.T) {
	ctx := context.Background()
	store, _ := NewLocalStorage(t.TempDir(), "/attachments/")
	svc := NewService(store, 16, time.Hour)
	room := ident.New()

	up, err := svc.Upload(ctx, room, "Photo.PNG", "image/png", strings.NewReader("png-bytes"), 9)
	if err != nil {
		t.Fatal(err)
	}
	if up.Kind != domain.MessageImage || !strings.HasPrefix(up.Key, "rooms/"+room+"/") || !strings.HasSuffix(up.Key, ".png") {
		t.Fatalf("upload = %+v", up)
	}
	if up.URL != "/attachments/"+up.Key {
		t.Fatalf("url = %q", up.URL)
	}

	if _, err := svc.Upload(ctx, room, "big.png", "image/png", strings.NewReader(strings.Repeat("x", 32)), 32); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("oversize: %v", err)
	}
	if _, err := svc.Upload(ctx, "room-1", "a.png", "image/png", strings.NewReader("x"), 1); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("bad room: %v", err)
	}
	if _, err := svc.Upload(ctx, room, "a.pdf", "application/pdf", strings.NewReader("x"), 1); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("bad type: %v", err)
	}
}

func TestS3Storage_URLs(t *testing.T) {
	ctx := context.Background()
	direct, err := NewS3Storage(ctx, S3Config{Bucket: "b", PublicURL: "https://cdn.example.com/b/", AccessKeyID: "k", SecretAccessKey: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if url, _ := direct.GetURL(ctx, "rooms/x/y.png", time.Minute); url != "https://cdn.example.com/b/rooms/x/y.png" {
		t.Fatalf("url = %q", url)
	}

	presigned, err := NewS3Storage(ctx, S3Config{Endpoint: "http://localhost:9000", Bucket: "b", UsePathStyle: true,
		AccessKeyID: "k", SecretAccessKey: "s"})
	if err != nil {
		t.Fatal(err)
	}
	url, err := presigned.GetURL(ctx, "rooms/x/y.png", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "http://localhost:9000/b/rooms/x/y.png?") || !strings.Contains(url, "X-Amz-Signature=") {
		t.Fatalf("url = %q", url)
	}
}
