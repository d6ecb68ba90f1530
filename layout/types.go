package layout

// 该文件定义渲染结果（可绘制的视觉树），供编辑器、预览、导出与验证页共用。
// 所有坐标与尺寸均为目标渲染面的像素值，原点在左上角。

// Result 是一次渲染的输出：按文档顺序排列、可直接绘制的节点。
type Result struct {
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	Scale      float64    `json:"scale"`
	Mode       Mode       `json:"mode"`
	Background Background `json:"background"`
	Nodes      []Node     `json:"nodes"`
	Unresolved []string   `json:"unresolved,omitempty"`
}

// Background 描述画布背景。
type Background struct {
	Color Color  `json:"color"`
	Image string `json:"image,omitempty"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Rect 是左上角定位的矩形。
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NodeKind 区分节点的绘制方式。
type NodeKind string

const (
	NodeText        NodeKind = "text"
	NodeImage       NodeKind = "image"
	NodeShape       NodeKind = "shape"
	NodeQRCode      NodeKind = "qrcode"
	NodePlaceholder NodeKind = "placeholder"
)

// Node 对应文档中的一个元素。Frame 已经应用了以自身中心为锚点的 -50%/-50% 平移。
type Node struct {
	ElementID   string          `json:"elementId"`
	Kind        NodeKind        `json:"kind"`
	CenterX     float64         `json:"centerX"`
	CenterY     float64         `json:"centerY"`
	Frame       Rect            `json:"frame"`
	Opacity     float64         `json:"opacity"`
	Text        *TextBox        `json:"text,omitempty"`
	Image       *ImageBox       `json:"image,omitempty"`
	Shape       *ShapeBox       `json:"shape,omitempty"`
	QRCode      *QRCodeBox      `json:"qrcode,omitempty"`
	Placeholder *PlaceholderBox `json:"placeholder,omitempty"`
}

// FontSpec 描述文本使用的字体。
type FontSpec struct {
	Family string `json:"family"`
	Weight string `json:"weight"`
}

// TextBox 表示一个已经完成占位符替换与换行的文本块。
type TextBox struct {
	Content    string     `json:"content"`
	Lines      []TextLine `json:"lines"`
	Font       FontSpec   `json:"font"`
	FontSize   float64    `json:"fontSize"`
	LineHeight float64    `json:"lineHeight"`
	Color      Color      `json:"color"`
	Align      string     `json:"align"`                // left/center/right
	Decoration string     `json:"decoration,omitempty"` // underline/line-through
	Padding    float64    `json:"padding"`
}

// TextLine 表示排版后的一行文本内容及其宽高。
type TextLine struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// ImageBox 引用一张需要绘制到 Frame 内的图片。
type ImageBox struct {
	Src string `json:"src"`
}

// ShapeKind 是绘制层面的形状。
type ShapeKind string

const (
	ShapeRect    ShapeKind = "rect"
	ShapeEllipse ShapeKind = "ellipse"
	// ShapeTopBorder 是零高度矩形，只绘制上边框，线宽即描边宽度。
	ShapeTopBorder ShapeKind = "top-border"
)

// ShapeBox 描述一个形状的样式。
type ShapeBox struct {
	Shape       ShapeKind `json:"shape"`
	FillColor   *Color    `json:"fillColor,omitempty"` // 为空表示不填充
	StrokeColor Color     `json:"strokeColor"`
	StrokeWidth float64   `json:"strokeWidth"`
	Radius      float64   `json:"radius,omitempty"`
}

// QRCodeBox 保存二维码内容，绘制时以高纠错等级实时编码。
type QRCodeBox struct {
	Payload string `json:"payload"`
	Level   string `json:"level"`
}

// PlaceholderBox 在缺少资源或处于编辑态时代替真实内容绘制。
type PlaceholderBox struct {
	Label string `json:"label"`
	Glyph string `json:"glyph"` // image/qrcode
}

// ImageSources 返回结果中引用的全部图片地址（含背景图），去重且保持出现顺序。
func (r *Result) ImageSources() []string {
	if r == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	add := func(src string) {
		if src == "" {
			return
		}
		if _, ok := seen[src]; ok {
			return
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	add(r.Background.Image)
	for _, n := range r.Nodes {
		if n.Image != nil {
			add(n.Image.Src)
		}
	}
	return out
}

// NodeFor 返回元素 id 对应的节点。
func (r *Result) NodeFor(id string) (Node, bool) {
	if r == nil {
		return Node{}, false
	}
	for _, n := range r.Nodes {
		if n.ElementID == id {
			return n, true
		}
	}
	return Node{}, false
}
