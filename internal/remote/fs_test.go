package remote

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestFS(t *testing.T, secret string) *FS {
	t.Helper()
	s, err := NewFS(FSConfig{
		Root:    t.TempDir(),
		BaseURL: "http://cdn.example.com/files",
		Secret:  secret,
	})
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeTemp(t *testing.T, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "src")
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFS_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestFS(t, "")

	opts := PutOptions{ContentType: "text/plain", StorageClass: ClassStandard, Encryption: EncryptionAES256}
	if err := s.Upload(ctx, "media", "202311/a.txt", writeTemp(t, "hello"), opts); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	ok, err := s.Exists(ctx, "media", "202311/a.txt")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	dst := filepath.Join(t.TempDir(), "out")
	if err := s.Download(ctx, "media", "202311/a.txt", dst); err != nil {
		t.Fatalf("Download: %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "hello" {
		t.Errorf("downloaded %q", got)
	}

	meta, err := s.getMeta("media", "202311/a.txt")
	if err != nil {
		t.Fatalf("getMeta: %v", err)
	}
	if meta.Size != 5 || meta.ContentType != "text/plain" || meta.Encryption != EncryptionAES256 {
		t.Errorf("meta = %+v", meta)
	}
}

func TestFS_DownloadMissing(t *testing.T) {
	s := newTestFS(t, "")
	err := s.Download(context.Background(), "media", "nope.png", filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFS_CopyAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestFS(t, "")

	for key, data := range map[string]string{"dir/a": "1", "dir/ab": "22", "other/c": "333"} {
		if err := s.Upload(ctx, "media", key, writeTemp(t, data), PutOptions{ContentType: "text/plain"}); err != nil {
			t.Fatalf("Upload %s: %v", key, err)
		}
	}

	if err := s.Copy(ctx, "media", "other/c", "dir/c", CopyOptions{StorageClass: ClassStandardIA}); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	meta, _ := s.getMeta("media", "dir/c")
	if meta.ContentType != "text/plain" || meta.StorageClass != ClassStandardIA || meta.Size != 3 {
		t.Errorf("copied meta = %+v", meta)
	}

	infos, err := s.List(ctx, "media", "dir/a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []ObjectInfo{{Key: "dir/a", Size: 1}, {Key: "dir/ab", Size: 2}}
	if len(infos) != len(want) {
		t.Fatalf("List = %+v, want %+v", infos, want)
	}
	for i := range want {
		if infos[i] != want[i] {
			t.Errorf("List[%d] = %+v, want %+v", i, infos[i], want[i])
		}
	}

	if err := s.Copy(ctx, "media", "missing", "dir/x", CopyOptions{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("copy of missing key: err = %v", err)
	}
}

func TestFS_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestFS(t, "")

	if err := s.Upload(ctx, "media", "a.txt", writeTemp(t, "x"), PutOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "media", "a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists(ctx, "media", "a.txt"); ok {
		t.Error("object still exists")
	}
	if infos, _ := s.List(ctx, "media", ""); len(infos) != 0 {
		t.Errorf("metadata left behind: %+v", infos)
	}
	if err := s.Delete(ctx, "media", "a.txt"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestFS_RejectsEscapes(t *testing.T) {
	s := newTestFS(t, "")
	tests := []struct{ bucket, key string }{
		{"", "a"},
		{"../x", "a"},
		{".hidden", "a"},
		{"media", ""},
		{"media", "/"},
	}
	for _, tt := range tests {
		if _, err := s.objectPath(tt.bucket, tt.key); err == nil {
			t.Errorf("objectPath(%q, %q) succeeded", tt.bucket, tt.key)
		}
	}

	p, err := s.objectPath("media", "../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(s.root, "media", "etc", "passwd"); p != want {
		t.Errorf("objectPath = %q, want %q", p, want)
	}
}

func TestFS_SignedURL(t *testing.T) {
	s := newTestFS(t, "secret")
	expires := time.Unix(1_700_003_000, 0)

	link, err := s.SignedURL(context.Background(), "media", "202311/a.png", expires,
		map[string]string{OptionSecure: "true", "response-content-type": "image/png"})
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatal(err)
	}
	if u.Scheme != "https" || u.Host != "cdn.example.com" || u.Path != "/files/media/202311/a.png" {
		t.Errorf("url = %s", link)
	}
	q := u.Query()
	if q.Get("expires") != "1700003000" || q.Has(OptionSecure) {
		t.Errorf("query = %v", q)
	}

	if err := s.Verify("media", "202311/a.png", q, expires.Add(-time.Minute)); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if err := s.Verify("media", "202311/a.png", q, expires.Add(time.Second)); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expired link: err = %v", err)
	}
	if err := s.Verify("media", "202311/b.png", q, expires.Add(-time.Minute)); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("other key: err = %v", err)
	}

	tampered := url.Values{}
	for k, v := range q {
		tampered[k] = v
	}
	tampered.Set("response-content-type", "text/html")
	if err := s.Verify("media", "202311/a.png", tampered, expires.Add(-time.Minute)); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("tampered query: err = %v", err)
	}
}

func TestFS_SignedURLWithoutSecret(t *testing.T) {
	s := newTestFS(t, "")
	_, err := s.SignedURL(context.Background(), "media", "a.png", time.Now().Add(time.Hour), nil)
	if !errors.Is(err, ErrNotSupported) {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}
