package document

import (
	"encoding/json"
	"math"
)

// Kind 是元素的类型标签，对应持久化结构中的 "type" 字段。
type Kind string

const (
	KindText      Kind = "text"
	KindLogo      Kind = "logo"
	KindSignature Kind = "signature"
	KindShape     Kind = "shape"
	KindQRCode    Kind = "qrcode"
)

// Kinds 列出可由编辑器创建的全部元素类型。
var Kinds = []Kind{KindText, KindLogo, KindSignature, KindShape, KindQRCode}

// Element 是文档中的一个可定位视觉元素。
// 该接口是封闭的：只有本包内的变体可以实现它，渲染器对其做穷举匹配。
type Element interface {
	Base() *Common
	Kind() Kind
	clone() Element
	apply(p Patch)
}

// Common 保存所有元素共享的字段。x/y 为百分比（0-100），锚点为元素中心；
// width/height 为规范分辨率下的像素值，0 表示未设置。
type Common struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	Opacity float64 `json:"opacity"`
}

// Base 返回公共字段。
func (c *Common) Base() *Common { return c }

// TextElement 是可包含占位符的文本。
type TextElement struct {
	Common
	Content        string  `json:"content"`
	FontSize       float64 `json:"fontSize"`
	FontWeight     string  `json:"fontWeight"`
	FontFamily     string  `json:"fontFamily"`
	Color          string  `json:"color"`
	Align          string  `json:"align"`
	TextDecoration string  `json:"textDecoration"`
	Padding        float64 `json:"padding"`
}

// ImageElement 表示徽标或签名图片，Variant 区分 logo/signature。
type ImageElement struct {
	Common
	Variant  Kind   `json:"-"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// ShapeType 是形状种类。
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeLine      ShapeType = "line"
)

// ShapeElement 是矩形、圆或直线。
type ShapeElement struct {
	Common
	ShapeType    ShapeType `json:"shapeType"`
	FillColor    string    `json:"fillColor"`
	StrokeColor  string    `json:"strokeColor"`
	StrokeWidth  float64   `json:"strokeWidth"`
	BorderRadius float64   `json:"borderRadius"`
}

// QRCodeElement 是二维码占位，内容在渲染时由证书的验证地址生成，从不静态保存。
type QRCodeElement struct {
	Common
}

// UnknownElement 保留无法识别类型的原始数据，渲染时跳过。
type UnknownElement struct {
	Common
	Type string
	Raw  json.RawMessage
}

func (e *TextElement) Kind() Kind    { return KindText }
func (e *ShapeElement) Kind() Kind   { return KindShape }
func (e *QRCodeElement) Kind() Kind  { return KindQRCode }
func (e *UnknownElement) Kind() Kind { return Kind(e.Type) }

func (e *ImageElement) Kind() Kind {
	if e.Variant == KindSignature {
		return KindSignature
	}
	return KindLogo
}

func (e *TextElement) clone() Element  { c := *e; return &c }
func (e *ImageElement) clone() Element { c := *e; return &c }
func (e *ShapeElement) clone() Element { c := *e; return &c }
func (e *QRCodeElement) clone() Element {
	c := *e
	return &c
}

func (e *UnknownElement) clone() Element {
	c := *e
	c.Raw = append(json.RawMessage(nil), e.Raw...)
	return &c
}

// NewElement 按类型创建带缺省样式的元素，位置为画布中心，id 为空。
func NewElement(kind Kind) Element {
	common := Common{X: 50, Y: 50, Opacity: 1}
	switch kind {
	case KindText:
		return &TextElement{
			Common:         common,
			Content:        "Text",
			FontSize:       16,
			FontWeight:     "normal",
			FontFamily:     "Helvetica",
			Color:          "#000000",
			Align:          "center",
			TextDecoration: "none",
		}
	case KindLogo:
		common.Width, common.Height = 120, 120
		return &ImageElement{Common: common, Variant: KindLogo}
	case KindSignature:
		common.Width, common.Height = 160, 60
		return &ImageElement{Common: common, Variant: KindSignature}
	case KindShape:
		common.Width, common.Height = 200, 100
		return &ShapeElement{
			Common:      common,
			ShapeType:   ShapeRectangle,
			FillColor:   "transparent",
			StrokeColor: "#000000",
			StrokeWidth: 1,
		}
	case KindQRCode:
		common.Width, common.Height = 100, 100
		return &QRCodeElement{Common: common}
	default:
		return nil
	}
}

// Clone 深拷贝单个元素。
func Clone(el Element) Element {
	if el == nil {
		return nil
	}
	return el.clone()
}

// ClampPercent 将百分比坐标限制在 [0,100]，非数值回落到中心 50。
func ClampPercent(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 50
	}
	return math.Max(0, math.Min(100, v))
}

// ClampOpacity 将不透明度限制在 [0,1]，非数值回落到 1。
func ClampOpacity(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	return math.Max(0, math.Min(1, v))
}
