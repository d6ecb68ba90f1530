package document

// Patch 是对元素的部分更新，nil 字段表示不修改。
// 与元素类型无关的字段会被忽略，例如对形状设置 Content。
type Patch struct {
	X       *float64
	Y       *float64
	Width   *float64
	Height  *float64
	Opacity *float64

	Content        *string
	FontSize       *float64
	FontWeight     *string
	FontFamily     *string
	Color          *string
	Align          *string
	TextDecoration *string
	Padding        *float64

	ImageURL *string

	ShapeType    *ShapeType
	FillColor    *string
	StrokeColor  *string
	StrokeWidth  *float64
	BorderRadius *float64
}

// Float 返回 v 的指针，便于构造 Patch。
func Float(v float64) *float64 { return &v }

// String 返回 v 的指针，便于构造 Patch。
func String(v string) *string { return &v }

// Shape 返回 v 的指针，便于构造 Patch。
func Shape(v ShapeType) *ShapeType { return &v }

func (c *Common) applyCommon(p Patch) {
	if p.X != nil {
		c.X = *p.X
	}
	if p.Y != nil {
		c.Y = *p.Y
	}
	if p.Width != nil {
		c.Width = *p.Width
	}
	if p.Height != nil {
		c.Height = *p.Height
	}
	if p.Opacity != nil {
		c.Opacity = *p.Opacity
	}
}

func (e *TextElement) apply(p Patch) {
	e.applyCommon(p)
	setString(&e.Content, p.Content)
	setFloat(&e.FontSize, p.FontSize)
	setString(&e.FontWeight, p.FontWeight)
	setString(&e.FontFamily, p.FontFamily)
	setString(&e.Color, p.Color)
	setString(&e.Align, p.Align)
	setString(&e.TextDecoration, p.TextDecoration)
	setFloat(&e.Padding, p.Padding)
}

func (e *ImageElement) apply(p Patch) {
	e.applyCommon(p)
	setString(&e.ImageURL, p.ImageURL)
}

func (e *ShapeElement) apply(p Patch) {
	e.applyCommon(p)
	if p.ShapeType != nil {
		e.ShapeType = *p.ShapeType
	}
	setString(&e.FillColor, p.FillColor)
	setString(&e.StrokeColor, p.StrokeColor)
	setFloat(&e.StrokeWidth, p.StrokeWidth)
	setFloat(&e.BorderRadius, p.BorderRadius)
}

// 二维码始终为正方形：任一边的修改同时作用于另一边。
func (e *QRCodeElement) apply(p Patch) {
	e.applyCommon(p)
	switch {
	case p.Width != nil:
		e.Height = e.Width
	case p.Height != nil:
		e.Width = e.Height
	}
}

func (e *UnknownElement) apply(p Patch) {
	e.applyCommon(p)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
