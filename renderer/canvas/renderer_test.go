package canvasrenderer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ByLCY/diploma/binding"
	"github.com/ByLCY/diploma/document"
	"github.com/ByLCY/diploma/layout"
)

var body = layout.FontSpec{Family: "Helvetica", Weight: "normal"}

func TestLayoutLinesGreedyWrapsText(t *testing.T) {
	r := NewRenderer()
	lines, err := r.LayoutLines("hello world again", 40, body, 16, 16*1.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) < 2 {
		t.Fatalf("expected wrapping into multiple lines, got %d", len(lines))
	}
}

func TestGreedyWrapHonorsNewlines(t *testing.T) {
	r := NewRenderer()
	lines, err := r.LayoutLines("foo\n\nbar", 400, body, 16, 16*1.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines including blank, got %d", len(lines))
	}
	if lines[1].Content != "" {
		t.Fatalf("expected middle line to be blank, got %q", lines[1].Content)
	}
}

// TestLineHeightsInvariant 验证：
// 1) 首行 GapBefore == 0；
// 2) 其余行 GapBefore ≈ max(lineHeight - textHeight, 0)；
// 3) 各行的 Height 与 textHeight 一致（渲染器会用字体度量回填）。
func TestLineHeightsInvariant(t *testing.T) {
	r := NewRenderer()
	fontSize := 16.0
	lineHeight := fontSize * 1.6

	content := "longlonglong longlonglong longlonglong longlonglong longlonglong"
	lines, err := r.LayoutLines(content, 150, body, fontSize, lineHeight)
	if err != nil {
		t.Fatalf("LayoutLines error: %v", err)
	}
	if len(lines) < 2 {
		t.Fatalf("expected multiple lines for invariant test, got %d", len(lines))
	}

	textHeight := lines[0].Height
	if textHeight <= 0 {
		t.Fatalf("invalid text height: %g", textHeight)
	}
	wantLeading := math.Max(lineHeight-textHeight, 0)

	if lines[0].GapBefore != 0 {
		t.Fatalf("first line GapBefore must be 0, got %g", lines[0].GapBefore)
	}
	const eps = 1e-6
	for i := 1; i < len(lines); i++ {
		if diff := math.Abs(lines[i].GapBefore - wantLeading); diff > eps {
			t.Fatalf("line %d GapBefore mismatch: got=%g want=%g diff=%g", i, lines[i].GapBefore, wantLeading, diff)
		}
		if diff := math.Abs(lines[i].Height - textHeight); diff > eps {
			t.Fatalf("line %d Height mismatch: got=%g want=%g diff=%g", i, lines[i].Height, textHeight, diff)
		}
	}
}

// TestGreedyWrapWidthLimit 验证每行宽度不超过限制。
func TestGreedyWrapWidthLimit(t *testing.T) {
	r := NewRenderer()
	limit := 120.0
	content := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	lines, err := r.LayoutLines(content, limit, body, 16, 16*1.2)
	if err != nil {
		t.Fatalf("LayoutLines error: %v", err)
	}
	if len(lines) < 2 {
		t.Fatalf("expected the long word to be split, got %d lines", len(lines))
	}
	for i, ln := range lines {
		if ln.Width-limit > 1e-6 {
			t.Fatalf("line %d width exceeds limit: width=%g limit=%g", i, ln.Width, limit)
		}
	}
}

// 当第一行宽度与容器宽度恰好相等且后面紧跟一个显式换行时，不应产生额外的空行。
func TestNoBlankLineWhenEqualWidthThenNewline(t *testing.T) {
	r := NewRenderer()
	first := "SAMPLE-A"
	measured, err := r.LayoutLines(first, 0, body, 16, 16*1.2)
	if err != nil {
		t.Fatalf("measure error: %v", err)
	}
	if len(measured) != 1 {
		t.Fatalf("unexpected measured lines: %d", len(measured))
	}
	limit := measured[0].Width
	if limit <= 0 {
		t.Fatalf("invalid measured width: %g", limit)
	}

	lines, err := r.LayoutLines(first+"\nSAMPLE-B", limit, body, 16, 16*1.2)
	if err != nil {
		t.Fatalf("LayoutLines error: %v", err)
	}
	if got := len(lines); got != 2 {
		t.Fatalf("expected 2 lines without blank, got %d", got)
	}
	if lines[0].Content != first || lines[1].Content != "SAMPLE-B" {
		t.Fatalf("unexpected lines: %q / %q", lines[0].Content, lines[1].Content)
	}
}

func TestMonoFamilyIsWiderThanBoldSans(t *testing.T) {
	r := NewRenderer()
	mono, err := r.LayoutLines("iiiiiiii", 0, layout.FontSpec{Family: "Courier New"}, 16, 19.2)
	if err != nil {
		t.Fatalf("LayoutLines error: %v", err)
	}
	sans, err := r.LayoutLines("iiiiiiii", 0, body, 16, 19.2)
	if err != nil {
		t.Fatalf("LayoutLines error: %v", err)
	}
	if mono[0].Width <= sans[0].Width {
		t.Fatalf("monospace 'i' should be wider than proportional: mono=%g sans=%g", mono[0].Width, sans[0].Width)
	}
}

type fakeImages struct {
	img  image.Image
	err  error
	hits []string
}

func (f *fakeImages) Image(ctx context.Context, src string) (image.Image, error) {
	f.hits = append(f.hits, src)
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

func sampleDocument() *document.Document {
	doc := document.New(document.Landscape)
	text := document.NewElement(document.KindText).(*document.TextElement)
	text.Content = "Awarded to {{recipient_name}}"
	text.TextDecoration = "underline"
	doc.Add(text)
	logo := document.NewElement(document.KindLogo).(*document.ImageElement)
	logo.ImageURL = "https://example.com/logo.png"
	logo.Opacity = 0.5
	doc.Add(logo)
	doc.Add(document.NewElement(document.KindSignature))
	shape := document.NewElement(document.KindShape).(*document.ShapeElement)
	shape.BorderRadius = 12
	shape.FillColor = "#eeeeee"
	doc.Add(shape)
	doc.Add(document.NewElement(document.KindQRCode))
	return doc
}

// TestCaptureSupersamples 规范横向画布以 2 倍超采样得到约 2000×1414 像素。
func TestCaptureSupersamples(t *testing.T) {
	src := &fakeImages{img: image.NewRGBA(image.Rect(0, 0, 64, 64))}
	r := NewRendererWithOptions(Options{Images: src})
	res := layout.Build(sampleDocument(), binding.Context{
		binding.RecipientName: "Jane Doe",
		binding.CertificateID: "CERT-AB12-99",
	}, layout.BuildOptions{Mode: layout.ModeExport, Origin: "https://certs.example.com", Typesetter: r})

	img, err := r.Capture(context.Background(), res)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	b := img.Bounds()
	if math.Abs(float64(b.Dx())-2000) > 1 || math.Abs(float64(b.Dy())-1414) > 1 {
		t.Fatalf("unexpected raster size %dx%d", b.Dx(), b.Dy())
	}
	if len(src.hits) != 1 || src.hits[0] != "https://example.com/logo.png" {
		t.Fatalf("unexpected image loads: %v", src.hits)
	}
	// 画布角落应为白色背景。
	cr, cg, cb, _ := img.At(1, 1).RGBA()
	if cr>>8 < 250 || cg>>8 < 250 || cb>>8 < 250 {
		t.Fatalf("expected white background, got %v", img.At(1, 1))
	}
}

// TestFailedImageFallsBackToPlaceholder 图片加载失败不会中断渲染，并记录警告。
func TestFailedImageFallsBackToPlaceholder(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRendererWithOptions(Options{Images: &fakeImages{err: errors.New("404")}, Logger: zap.New(core)})
	res := layout.Build(sampleDocument(), nil, layout.BuildOptions{Typesetter: r})

	if _, err := r.Capture(context.Background(), res); err != nil {
		t.Fatalf("capture should degrade gracefully: %v", err)
	}
	if logs.FilterMessage("图片加载失败，绘制占位框").Len() != 1 {
		t.Fatalf("expected one image warning, got %d", logs.Len())
	}
}

func TestCaptureRejectsEmptyResult(t *testing.T) {
	r := NewRenderer()
	if _, err := r.Capture(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil result")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Capture(ctx, layout.Build(nil, nil, layout.BuildOptions{})); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRenderPDFAndEmbed(t *testing.T) {
	r := NewRenderer()
	doc := sampleDocument()
	pw, ph := doc.Page().Millimeters()
	vector := layout.Build(doc, nil, layout.BuildOptions{Surface: layout.Surface{Width: pw, Height: ph}, Typesetter: r})
	data, err := r.Render(vector)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("vector output is not a PDF")
	}

	img := image.NewRGBA(image.Rect(0, 0, 200, 141))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	embedded, err := EmbedPDF(img, pw, ph, "test")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if !bytes.HasPrefix(embedded, []byte("%PDF")) {
		t.Fatalf("embedded output is not a PDF")
	}
	if _, err := EmbedPDF(img, 0, ph, "test"); err == nil {
		t.Fatalf("expected error for zero page width")
	}
}
