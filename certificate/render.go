package certificate

import (
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/ByLCY/diploma/binding"
	"github.com/ByLCY/diploma/document"
	"github.com/ByLCY/diploma/layout"
)

type fallbackLine struct {
	content string
	y       float64
	size    float64
	bold    bool
}

var fallbackLines = []fallbackLine{
	{"{{organization_name}}", 14, 22, true},
	{"Certificate of Completion", 27, 40, true},
	{"This certifies that", 40, 18, false},
	{"{{recipient_name}}", 51, 36, true},
	{"has successfully completed", 63, 18, false},
	{"{{course_name}}", 72, 26, true},
	{"Issued {{issue_date}}  ID {{certificate_id}}", 88, 14, false},
}

// FallbackDocument 直接由证书字段构造一个简单版面，用于快照缺失或无法解析的情况，
// 保证证书始终可以显示。
func FallbackDocument(r *Record) *document.Document {
	doc := document.New(document.Landscape)
	border := document.NewElement(document.KindShape).(*document.ShapeElement)
	border.Width, border.Height = 940, 650
	border.StrokeColor, border.StrokeWidth = "#1f2937", 3
	doc.Add(border)

	for _, line := range fallbackLines {
		text := document.NewElement(document.KindText).(*document.TextElement)
		text.Y, text.FontSize, text.Content = line.y, line.size, line.content
		text.Width = 860
		if line.bold {
			text.FontWeight = "bold"
		}
		doc.Add(text)
	}

	rule := document.NewElement(document.KindShape).(*document.ShapeElement)
	rule.ShapeType = document.ShapeLine
	rule.Y, rule.Width, rule.StrokeWidth = 57, 420, 1
	doc.Add(rule)

	if r != nil && r.ExpiryDate != "" {
		text := document.NewElement(document.KindText).(*document.TextElement)
		text.Y, text.FontSize, text.Content = 93, 12, "Valid until {{expiry_date}}"
		doc.Add(text)
	}

	qr := document.NewElement(document.KindQRCode)
	qr.Base().X, qr.Base().Y = 90, 82
	doc.Add(qr)
	return doc
}

// BuildRecord 用证书自身的绑定渲染其版面快照。快照缺失或无法解析时退回缺省版面。
func BuildRecord(r *Record, opts layout.BuildOptions) *layout.Result {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if r == nil {
		r = &Record{}
	}
	doc, err := r.Document()
	switch {
	case errors.Is(err, ErrNoRenderData):
		log.Debug("证书没有版面快照，使用缺省版面", zap.String("certificate_id", r.CertificateID))
		doc = FallbackDocument(r)
	case err != nil:
		log.Warn("版面快照无法解析，使用缺省版面", zap.String("certificate_id", r.CertificateID), zap.Error(err))
		doc = FallbackDocument(r)
	}
	return layout.Build(doc, r.Binding(), opts)
}

// Placeholders 列出模板文本元素引用的占位符（去重、排序），即颁发表单需要填写的字段。
func Placeholders(doc *document.Document) []string {
	if doc == nil {
		return nil
	}
	var names []string
	for _, el := range doc.Elements {
		if text, ok := el.(*document.TextElement); ok {
			names = append(names, binding.Placeholders(text.Content)...)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}
