package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformed 表示数据无法解析为文档结构。
var ErrMalformed = errors.New("document: 文档结构无法解析")

// Parse 解析持久化的文档结构，兼容旧版的裸元素数组格式。
// 单个元素的问题（非对象、未知类型、非数值坐标）不会导致整体失败：
// 非对象条目被跳过，未知类型保留为 UnknownElement，几何值回落到缺省值。
func Parse(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: 内容为空", ErrMalformed)
	}

	var (
		doc         = New(Landscape)
		rawElements []json.RawMessage
	)
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &rawElements); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if raw, ok := envelope["elements"]; ok {
			// elements 不是数组时视为空列表，而不是放弃整个文档
			_ = json.Unmarshal(raw, &rawElements)
		}
		if s := rawString(envelope["backgroundColor"]); s != "" {
			doc.BackgroundColor = s
		}
		doc.BackgroundImage = rawString(envelope["backgroundImage"])
		doc.Orientation = Orientation(rawString(envelope["orientation"])).Normalize()
		doc.PageSize = DefaultPageSize(doc.Orientation)
		if raw, ok := envelope["pageSize"]; ok {
			var size PageSize
			if err := json.Unmarshal(raw, &size); err == nil && !size.IsZero() {
				if size.Unit == "" {
					size.Unit = "mm"
				}
				doc.PageSize = size
			}
		}
	default:
		return nil, fmt.Errorf("%w: 无法识别的起始字符 %q", ErrMalformed, trimmed[0])
	}

	for _, raw := range rawElements {
		if el := decodeElement(raw); el != nil {
			doc.Elements = append(doc.Elements, el)
		}
	}
	doc.ensureIDs()
	return doc, nil
}

// MarshalJSON 输出持久化结构：elements、backgroundColor、backgroundImage（string|null）、orientation、pageSize。
func (d Document) MarshalJSON() ([]byte, error) {
	elements := d.Elements
	if elements == nil {
		elements = []Element{}
	}
	var bg *string
	if d.BackgroundImage != "" {
		bg = &d.BackgroundImage
	}
	color := d.BackgroundColor
	if color == "" {
		color = DefaultBackgroundColor
	}
	return json.Marshal(struct {
		Elements        []Element   `json:"elements"`
		BackgroundColor string      `json:"backgroundColor"`
		BackgroundImage *string     `json:"backgroundImage"`
		Orientation     Orientation `json:"orientation"`
		PageSize        PageSize    `json:"pageSize"`
	}{elements, color, bg, d.Orientation.Normalize(), d.Page()})
}

// UnmarshalJSON 使用与 Parse 相同的宽松规则。
func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

func (e *TextElement) MarshalJSON() ([]byte, error) {
	type alias TextElement
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindText, (*alias)(e)})
}

func (e *ImageElement) MarshalJSON() ([]byte, error) {
	type alias ImageElement
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{e.Kind(), (*alias)(e)})
}

func (e *ShapeElement) MarshalJSON() ([]byte, error) {
	type alias ShapeElement
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindShape, (*alias)(e)})
}

func (e *QRCodeElement) MarshalJSON() ([]byte, error) {
	type alias QRCodeElement
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindQRCode, (*alias)(e)})
}

// MarshalJSON 原样输出未知元素，仅同步公共字段。
func (e *UnknownElement) MarshalJSON() ([]byte, error) {
	fields := map[string]any{}
	if len(e.Raw) > 0 {
		_ = json.Unmarshal(e.Raw, &fields)
	}
	fields["type"] = e.Type
	fields["id"] = e.ID
	fields["x"] = e.X
	fields["y"] = e.Y
	fields["opacity"] = e.Opacity
	for key, v := range map[string]float64{"width": e.Width, "height": e.Height} {
		if v > 0 {
			fields[key] = v
		} else {
			delete(fields, key)
		}
	}
	return json.Marshal(fields)
}

// decodeElement 宽松地解析单个元素：字段缺失或类型不符时使用缺省值。
func decodeElement(raw json.RawMessage) Element {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil
	}
	kind := Kind(strings.ToLower(strings.TrimSpace(str(fields, "type", ""))))

	el := NewElement(kind)
	if el == nil {
		unknown := &UnknownElement{Type: string(kind), Raw: append(json.RawMessage(nil), raw...)}
		unknown.Common = Common{X: 50, Y: 50, Opacity: 1}
		decodeCommon(&unknown.Common, fields)
		return unknown
	}
	decodeCommon(el.Base(), fields)

	switch e := el.(type) {
	case *TextElement:
		e.Content = str(fields, "content", "")
		e.FontSize = num(fields, "fontSize", e.FontSize)
		e.FontWeight = str(fields, "fontWeight", e.FontWeight)
		e.FontFamily = str(fields, "fontFamily", e.FontFamily)
		e.Color = str(fields, "color", e.Color)
		e.Align = str(fields, "align", e.Align)
		e.TextDecoration = str(fields, "textDecoration", e.TextDecoration)
		e.Padding = num(fields, "padding", e.Padding)
	case *ImageElement:
		e.ImageURL = str(fields, "imageUrl", "")
	case *ShapeElement:
		e.ShapeType = ShapeType(strings.ToLower(str(fields, "shapeType", string(e.ShapeType))))
		e.FillColor = str(fields, "fillColor", e.FillColor)
		e.StrokeColor = str(fields, "strokeColor", e.StrokeColor)
		e.StrokeWidth = num(fields, "strokeWidth", e.StrokeWidth)
		e.BorderRadius = num(fields, "borderRadius", e.BorderRadius)
	case *QRCodeElement:
		// 二维码强制为正方形，以较大的一边为准
		side := math.Max(e.Width, e.Height)
		e.Width, e.Height = side, side
	}
	return el
}

func decodeCommon(c *Common, fields map[string]any) {
	c.ID = str(fields, "id", "")
	c.X = num(fields, "x", 50)
	c.Y = num(fields, "y", 50)
	c.Width = num(fields, "width", c.Width)
	c.Height = num(fields, "height", c.Height)
	c.Opacity = num(fields, "opacity", 1)
}

// num 读取数值字段，兼容字符串形式的数字；缺失或非法时返回 def。
func num(fields map[string]any, key string, def float64) float64 {
	switch v := fields[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return def
		}
		return f
	default:
		return def
	}
}

// str 读取字符串字段；数字 id 等非字符串标量会被格式化。
func str(fields map[string]any, key, def string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return def
	}
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
