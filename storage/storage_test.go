package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestLocalUploadReadDelete(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocal(dir, "http://localhost/files/", "k")
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	ctx := context.Background()
	name := ArchiveObjectName("42", time.Unix(100, 0))
	if name != "exports/42/100_certificates.zip" {
		t.Fatalf("unexpected object name %q", name)
	}
	res, err := local.Upload(ctx, strings.NewReader("zipdata"), name, "application/zip")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Size != 7 || res.PublicURL != "http://localhost/files/"+name {
		t.Fatalf("unexpected result: %+v", res)
	}
	rc, err := local.Read(ctx, name)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "zipdata" {
		t.Fatalf("unexpected content %q", data)
	}
	if err := local.Delete(ctx, name); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "exports")); !os.IsNotExist(err) {
		t.Fatalf("empty directories should be removed, got %v", err)
	}
	if err := local.Delete(ctx, name); err != nil {
		t.Fatalf("deleting a missing object should succeed: %v", err)
	}
}

func TestLocalRejectsEscapingNames(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "", "")
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	if _, err := local.Upload(context.Background(), strings.NewReader("x"), "../escape.txt", "text/plain"); err == nil {
		t.Fatalf("expected error for escaping object name")
	}
}

func TestLocalSignedURL(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "http://localhost/files", "secret")
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	now := time.Unix(1_000, 0)
	local.now = func() time.Time { return now }

	raw, err := local.SignedURL("a/b.zip", time.Minute)
	if err != nil {
		t.Fatalf("signed url: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	expires, _ := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	sig := u.Query().Get("signature")
	if expires != 1_060 || !local.VerifySignedURL("a/b.zip", expires, sig) {
		t.Fatalf("signature should verify: %s", raw)
	}
	if local.VerifySignedURL("a/c.zip", expires, sig) {
		t.Fatalf("signature should be bound to the object name")
	}
	now = now.Add(2 * time.Minute)
	if local.VerifySignedURL("a/b.zip", expires, sig) {
		t.Fatalf("expired url should not verify")
	}
}
