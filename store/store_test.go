package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/diploma/certificate"
	"github.com/ByLCY/diploma/document"
	"github.com/ByLCY/diploma/layout"
)

func TestMemoryIssueSnapshotsTemplate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	mem.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	tpl := document.New(document.Landscape)
	text := document.NewElement(document.KindText).(*document.TextElement)
	text.Content = "Awarded to {{recipient_name}}"
	id := tpl.Add(text)
	if err := mem.Save(ctx, "tpl-1", tpl); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec, err := mem.Issue(ctx, certificate.IssueRequest{
		TemplateID:    "tpl-1",
		CertificateID: "CERT-AB12-99",
		RecipientName: "Jane Doe",
		CourseName:    "Go",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if rec.IssueDate != "2024-05-01" {
		t.Fatalf("unexpected issue date %q", rec.IssueDate)
	}
	before := certificate.BuildRecord(rec, layout.BuildOptions{})

	// 修改并删除模板后，已颁发证书的渲染保持不变
	tpl.Update(id, document.Patch{Content: document.String("changed")})
	if err := mem.Save(ctx, "tpl-1", tpl); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mem.Delete(ctx, "tpl-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := mem.Verify(ctx, "CERT-AB12-99")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	after := certificate.BuildRecord(got, layout.BuildOptions{})
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("snapshot changed after template edits (-before +after):\n%s", diff)
	}
	if after.Nodes[0].Text.Content != "Awarded to Jane Doe" {
		t.Fatalf("unexpected text %q", after.Nodes[0].Text.Content)
	}
}

func TestMemoryNotFound(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	if _, err := mem.Verify(ctx, "nope"); !errors.Is(err, certificate.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err := mem.Issue(ctx, certificate.IssueRequest{TemplateID: "missing", RecipientName: "a", CourseName: "b"})
	if !errors.Is(err, certificate.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing template, got %v", err)
	}
}

func TestMemoryLoadsLegacyTemplate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	if err := mem.SaveRaw(ctx, "legacy", []byte(`[{"id":"1","type":"text","content":"X","x":10,"y":10}]`)); err != nil {
		t.Fatalf("save raw: %v", err)
	}
	doc, err := certificate.LoadTemplate(ctx, mem, "legacy")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.BackgroundColor != "#ffffff" || doc.Orientation != document.Landscape || len(doc.Elements) != 1 {
		t.Fatalf("unexpected legacy document: %+v", doc)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	rec := &certificate.Record{CertificateID: "C1", RecipientName: "A", RenderData: []byte(`{"elements":[]}`)}
	if err := mem.Put(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	rec.RecipientName = "B"
	rec.RenderData[0] = '['
	got, _ := mem.Verify(ctx, "C1")
	if got.RecipientName != "A" || got.RenderData[0] != '{' {
		t.Fatalf("stored record should be independent: %+v", got)
	}
}

func TestModelConversion(t *testing.T) {
	rec := &certificate.Record{
		CertificateID: "CERT-AB12-99",
		RecipientName: "Jane",
		CourseName:    "Go",
		ExpiryDate:    "2030-01-01",
		RenderData:    []byte(`{"elements":[]}`),
	}
	if diff := cmp.Diff(rec, fromModel(toModel(rec))); diff != "" {
		t.Fatalf("conversion mismatch (-want +got):\n%s", diff)
	}
	legacy := fromModel(CertificateModel{CertificateID: "OLD"})
	if legacy.RenderData != nil {
		t.Fatalf("legacy rows should have no render data")
	}
}
