package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sequentialIDs(t *testing.T) {
	t.Helper()
	orig := NewID
	n := 0
	NewID = func() string {
		n++
		return fmt.Sprintf("el-%d", n)
	}
	t.Cleanup(func() { NewID = orig })
}

// TestParseLegacyArray 旧版裸数组格式应补齐背景色与方向的缺省值。
func TestParseLegacyArray(t *testing.T) {
	doc, err := Parse([]byte(`[{"id":"1","type":"text","content":"X","x":10,"y":10}]`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.BackgroundColor != "#ffffff" {
		t.Fatalf("expected default background #ffffff, got %q", doc.BackgroundColor)
	}
	if doc.Orientation != Landscape {
		t.Fatalf("expected landscape, got %q", doc.Orientation)
	}
	if len(doc.Elements) != 1 {
		t.Fatalf("expected 1 element, got %d", len(doc.Elements))
	}
	text, ok := doc.Elements[0].(*TextElement)
	if !ok {
		t.Fatalf("expected *TextElement, got %T", doc.Elements[0])
	}
	if text.ID != "1" || text.Content != "X" || text.X != 10 || text.Y != 10 {
		t.Fatalf("unexpected text element: %+v", text)
	}
	if text.FontSize != 16 || text.Opacity != 1 {
		t.Fatalf("defaults not applied: fontSize=%g opacity=%g", text.FontSize, text.Opacity)
	}
}

func TestParseEnvelope(t *testing.T) {
	doc, err := Parse([]byte(`{
		"elements": [
			{"id":"a","type":"shape","shapeType":"circle","x":20,"y":30,"width":50,"height":50},
			{"id":"b","type":"signature","imageUrl":"https://example.com/s.png"},
			{"id":"c","type":"qrcode","width":80,"height":120}
		],
		"backgroundColor": "#fafafa",
		"backgroundImage": null,
		"orientation": "portrait"
	}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.Orientation != Portrait || doc.BackgroundColor != "#fafafa" || doc.BackgroundImage != "" {
		t.Fatalf("unexpected document props: %+v", doc)
	}
	if w, h := doc.CanvasSize(); w != 1000 || h != 1414 {
		t.Fatalf("portrait canvas should be 1000x1414, got %gx%g", w, h)
	}
	if got := doc.Page(); got.Width != 210 || got.Height != 297 {
		t.Fatalf("portrait page should be A4 portrait, got %+v", got)
	}
	if shape := doc.Elements[0].(*ShapeElement); shape.ShapeType != ShapeCircle {
		t.Fatalf("expected circle, got %q", shape.ShapeType)
	}
	if sig := doc.Elements[1].(*ImageElement); sig.Kind() != KindSignature || sig.ImageURL == "" {
		t.Fatalf("unexpected signature: %+v", sig)
	}
	if qr := doc.Elements[2].(*QRCodeElement); qr.Width != qr.Height || qr.Width != 120 {
		t.Fatalf("qrcode should be square 120, got %gx%g", qr.Width, qr.Height)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, input := range []string{"", "   ", "not json", "{broken", "42"} {
		if _, err := Parse([]byte(input)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", input, err)
		}
	}
}

// TestParseToleratesBadEntries 非对象条目跳过，非数值几何回落缺省，未知类型保留。
func TestParseToleratesBadEntries(t *testing.T) {
	sequentialIDs(t)
	doc, err := Parse([]byte(`{"elements":[
		42,
		{"type":"text","content":"A","x":"abc","y":"25"},
		{"id":"u","type":"hologram","x":5,"sparkle":true},
		{"id":"dup","type":"shape"},
		{"id":"dup","type":"shape"}
	]}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(doc.Elements) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(doc.Elements))
	}
	text := doc.Elements[0].(*TextElement)
	if text.X != 50 || text.Y != 25 {
		t.Fatalf("expected geometry defaults x=50 y=25, got x=%g y=%g", text.X, text.Y)
	}
	if text.ID == "" {
		t.Fatalf("missing id should be generated")
	}
	unknown, ok := doc.Elements[1].(*UnknownElement)
	if !ok || unknown.Kind() != "hologram" {
		t.Fatalf("expected unknown element kept, got %T", doc.Elements[1])
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("ids should be unique after parse: %v", err)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if got := again.Elements[1].(*UnknownElement); got.Type != "hologram" {
		t.Fatalf("unknown element type lost on round trip: %q", got.Type)
	}
}

func TestMarshalPersistedShape(t *testing.T) {
	doc := New(Landscape)
	doc.Add(NewElement(KindText))
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var shape map[string]any
	if err := json.Unmarshal(out, &shape); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"elements", "backgroundColor", "backgroundImage", "orientation"} {
		if _, ok := shape[key]; !ok {
			t.Fatalf("persisted shape missing key %q: %s", key, out)
		}
	}
	if shape["backgroundImage"] != nil {
		t.Fatalf("empty background image should persist as null, got %v", shape["backgroundImage"])
	}
	first := shape["elements"].([]any)[0].(map[string]any)
	if first["type"] != "text" || first["id"] == "" {
		t.Fatalf("element should carry id and type: %v", first)
	}
}

func TestAddAssignsFreshIDs(t *testing.T) {
	sequentialIDs(t)
	doc := New(Landscape)
	el := NewElement(KindShape)
	el.Base().ID = "ignored"
	id1 := doc.Add(el)
	id2 := doc.Add(NewElement(KindText))
	if id1 != "el-1" || id2 != "el-2" {
		t.Fatalf("unexpected ids %q %q", id1, id2)
	}
	if doc.Elements[len(doc.Elements)-1].Base().ID != id2 {
		t.Fatalf("added element should be topmost")
	}
}

func TestUpdateUnknownIDIsNoop(t *testing.T) {
	doc := New(Landscape)
	id := doc.Add(NewElement(KindText))
	before := doc.Clone()
	if doc.Update("missing", Patch{X: Float(10)}) {
		t.Fatalf("update of unknown id should report false")
	}
	if diff := cmp.Diff(before.Elements, doc.Elements); diff != "" {
		t.Fatalf("unknown id must not change document (-want +got):\n%s", diff)
	}

	if !doc.Update(id, Patch{X: Float(10), Content: String("Hi"), FillColor: String("#fff")}) {
		t.Fatalf("update of known id should report true")
	}
	text := doc.Find(id).(*TextElement)
	if text.X != 10 || text.Content != "Hi" {
		t.Fatalf("patch not merged: %+v", text)
	}
}

func TestQRCodePatchStaysSquare(t *testing.T) {
	doc := New(Landscape)
	id := doc.Add(NewElement(KindQRCode))
	doc.Update(id, Patch{Width: Float(140)})
	qr := doc.Find(id).(*QRCodeElement)
	if qr.Width != 140 || qr.Height != 140 {
		t.Fatalf("qrcode should stay square, got %gx%g", qr.Width, qr.Height)
	}
}

func TestReorder(t *testing.T) {
	sequentialIDs(t)
	for start := 0; start < 4; start++ {
		doc := New(Landscape)
		for i := 0; i < 4; i++ {
			doc.Add(NewElement(KindShape))
		}
		target := doc.IDs()[start]

		doc.Reorder(target, Front)
		ids := doc.IDs()
		if ids[len(ids)-1] != target {
			t.Fatalf("front: %q should paint last, got %v", target, ids)
		}
		doc.Reorder(target, Back)
		ids = doc.IDs()
		if ids[0] != target {
			t.Fatalf("back: %q should paint first, got %v", target, ids)
		}
	}
}

func TestReorderKeepsRelativeOrder(t *testing.T) {
	doc := New(Landscape)
	for _, id := range []string{"a", "b", "c", "d"} {
		el := NewElement(KindShape)
		el.Base().ID = id
		doc.Elements = append(doc.Elements, el)
	}
	doc.Reorder("b", Front)
	if diff := cmp.Diff([]string{"a", "c", "d", "b"}, doc.IDs()); diff != "" {
		t.Fatalf("front order mismatch (-want +got):\n%s", diff)
	}
	doc.Reorder("d", Back)
	if diff := cmp.Diff([]string{"d", "a", "c", "b"}, doc.IDs()); diff != "" {
		t.Fatalf("back order mismatch (-want +got):\n%s", diff)
	}
	if doc.Reorder("zzz", Front) {
		t.Fatalf("reorder of unknown id should report false")
	}
}

func TestRemove(t *testing.T) {
	doc := New(Landscape)
	id := doc.Add(NewElement(KindLogo))
	other := doc.Add(NewElement(KindText))
	if !doc.Remove(id) {
		t.Fatalf("remove should report true")
	}
	if doc.Find(id) != nil || doc.IndexOf(other) != 0 {
		t.Fatalf("unexpected ids after remove: %v", doc.IDs())
	}
	if doc.Remove(id) {
		t.Fatalf("second remove should report false")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	doc := New(Landscape)
	id := doc.Add(NewElement(KindText))
	copyDoc := doc.Clone()
	doc.Update(id, Patch{Content: String("changed")})
	doc.Add(NewElement(KindShape))
	if got := copyDoc.Find(id).(*TextElement).Content; got != "Text" {
		t.Fatalf("clone was affected by edit: %q", got)
	}
	if len(copyDoc.Elements) != 1 {
		t.Fatalf("clone was affected by add: %d elements", len(copyDoc.Elements))
	}
}

func TestClampPercent(t *testing.T) {
	cases := map[float64]float64{150: 100, -3: 0, 42: 42}
	for in, want := range cases {
		if got := ClampPercent(in); got != want {
			t.Fatalf("ClampPercent(%g) = %g, want %g", in, got, want)
		}
	}
}

func TestCanvasSizeByOrientation(t *testing.T) {
	if w, h := Landscape.CanvasSize(); w != 1000 || h != 707 {
		t.Fatalf("landscape canvas should be 1000x707, got %gx%g", w, h)
	}
	if w, h := Portrait.CanvasSize(); w != 1000 || h != 1414 {
		t.Fatalf("portrait canvas should be 1000x1414, got %gx%g", w, h)
	}
	if w, h := Orientation("sideways").CanvasSize(); w != 1000 || h != 707 {
		t.Fatalf("unknown orientation should fall back to landscape, got %gx%g", w, h)
	}
}

func TestUnknownElementKeepsResizeOnSave(t *testing.T) {
	doc, err := Parse([]byte(`{"elements":[{"id":"h","type":"hologram","x":10,"y":20,"glow":true}]}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !doc.Update("h", Patch{Width: Float(240), Height: Float(80)}) {
		t.Fatalf("update should find the unknown element")
	}
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	got := again.Elements[0].(*UnknownElement)
	if got.Width != 240 || got.Height != 80 || got.X != 10 || got.Y != 20 {
		t.Fatalf("resize lost on round trip: %+v", got.Common)
	}
	var raw struct {
		Elements []map[string]any `json:"elements"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw.Elements[0]["glow"] != true {
		t.Fatalf("unknown fields should be kept verbatim: %v", raw.Elements[0])
	}
}
