package preset

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/diploma/binding"
	"github.com/ByLCY/diploma/document"
	"github.com/ByLCY/diploma/layout"
)

func TestBuiltinPresetsLoad(t *testing.T) {
	names := Names()
	if diff := cmp.Diff([]string{"classic", "minimal", "modern"}, names); diff != "" {
		t.Fatalf("unexpected preset names (-want +got):\n%s", diff)
	}
	for _, name := range names {
		p, err := Load(name)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if p.Title == "" || len(p.Document.Elements) == 0 {
			t.Fatalf("preset %s is empty: %+v", name, p)
		}
		if err := p.Document.Validate(); err != nil {
			t.Fatalf("preset %s has invalid ids: %v", name, err)
		}
		res := layout.Build(p.Document, binding.Context{binding.RecipientName: "Jane"}, layout.BuildOptions{})
		if len(res.Nodes) != len(p.Document.Elements) {
			t.Fatalf("preset %s renders %d of %d elements", name, len(res.Nodes), len(p.Document.Elements))
		}
	}
}

func TestLoadReturnsIndependentCopies(t *testing.T) {
	a, err := Load("classic")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a.Document.Remove(a.Document.Elements[0].Base().ID)
	a.Document.BackgroundColor = "#000000"

	b, err := Load("Classic")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(b.Document.Elements) == len(a.Document.Elements) || b.Document.BackgroundColor != "#fffdf5" {
		t.Fatalf("mutating one copy leaked into the library")
	}
	if _, err := Load("baroque"); err == nil {
		t.Fatalf("expected error for unknown preset")
	}
}

func TestParseElementAttributes(t *testing.T) {
	p, err := Parse(`
preset sample v1 {
  meta {
    title: "Sample"
  }
  canvas portrait {
    background: #eeeeee
    page: Letter
  }
  elements {
    text x 10 y 20 w 300 size 12pt weight bold color #ff0000 align left {
      "line one"
      "line two {{course_name}}"
    }
    shape circle x 40 y 40 w 50 h 50 fill #00ff00 stroke-width 0
    line x 50 y 60 w 200 stroke #333333 stroke-width 3
    qrcode x 90 y 90 size 80
    signature x 20 y 80 src "https://example.com/sig.png"
  }
}
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc := p.Document
	if doc.Orientation != document.Portrait || doc.BackgroundColor != "#eeeeee" {
		t.Fatalf("unexpected canvas: %+v", doc)
	}
	if doc.PageSize.Width != 215.9 || doc.PageSize.Height != 279.4 {
		t.Fatalf("unexpected page size: %+v", doc.PageSize)
	}
	if len(doc.Elements) != 5 {
		t.Fatalf("expected 5 elements, got %d", len(doc.Elements))
	}

	text := doc.Elements[0].(*document.TextElement)
	want := &document.TextElement{
		Common:         document.Common{ID: text.ID, X: 10, Y: 20, Width: 300, Opacity: 1},
		Content:        "line one\nline two {{course_name}}",
		FontSize:       16,
		FontWeight:     "bold",
		FontFamily:     "Helvetica",
		Color:          "#ff0000",
		Align:          "left",
		TextDecoration: "none",
	}
	if diff := cmp.Diff(want, text); diff != "" {
		t.Fatalf("text element mismatch (-want +got):\n%s", diff)
	}

	circle := doc.Elements[1].(*document.ShapeElement)
	if circle.ShapeType != document.ShapeCircle || circle.FillColor != "#00ff00" || circle.StrokeWidth != 0 {
		t.Fatalf("unexpected circle: %+v", circle)
	}
	line := doc.Elements[2].(*document.ShapeElement)
	if line.ShapeType != document.ShapeLine || line.StrokeWidth != 3 || line.Width != 200 {
		t.Fatalf("unexpected line: %+v", line)
	}
	qr := doc.Elements[3].(*document.QRCodeElement)
	if qr.Width != 80 || qr.Height != 80 {
		t.Fatalf("qrcode should be square: %+v", qr)
	}
	sig := doc.Elements[4].(*document.ImageElement)
	if sig.Kind() != document.KindSignature || sig.ImageURL != "https://example.com/sig.png" {
		t.Fatalf("unexpected signature: %+v", sig)
	}
}

func TestParseRejectsUnknownCommand(t *testing.T) {
	_, err := Parse(`preset bad v1 {
  canvas landscape {
  }
  elements {
    chart x 1 y 2
  }
}`)
	if err == nil {
		t.Fatalf("expected error for unknown element command")
	}
}
