package document

// 该文件定义证书模板的文档模型：画布属性与元素列表，元素列表顺序即绘制顺序。

// Orientation 决定画布宽高比（约 1.414:1 或其倒数）。
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
)

// 画布的规范分辨率：元素尺寸与字号均按此宽度编写。高度按 1.414 的宽高比向下取整。
const (
	CanonicalWidth           = 1000.0
	AspectRatio              = 1.414
	CanonicalLandscapeHeight = 707.0
	CanonicalPortraitHeight  = 1414.0
)

// DefaultBackgroundColor 是缺省的画布背景色。
const DefaultBackgroundColor = "#ffffff"

// Normalize 将未知或空的方向归一为横向。
func (o Orientation) Normalize() Orientation {
	if o == Portrait {
		return Portrait
	}
	return Landscape
}

// CanvasSize 返回该方向下规范画布的像素尺寸（横向 1000×707，纵向 1000×1414）。
func (o Orientation) CanvasSize() (float64, float64) {
	if o.Normalize() == Portrait {
		return CanonicalWidth, CanonicalPortraitHeight
	}
	return CanonicalWidth, CanonicalLandscapeHeight
}

// PageSize 描述导出页面的物理尺寸。
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Unit   string  `json:"unit"`
}

// A4 纸张尺寸（毫米）。
const (
	a4Short = 210.0
	a4Long  = 297.0
)

// DefaultPageSize 返回与方向匹配的 A4 页面。
func DefaultPageSize(o Orientation) PageSize {
	if o.Normalize() == Portrait {
		return PageSize{Width: a4Short, Height: a4Long, Unit: "mm"}
	}
	return PageSize{Width: a4Long, Height: a4Short, Unit: "mm"}
}

// IsZero 判断页面尺寸是否未设置。
func (p PageSize) IsZero() bool { return p.Width <= 0 || p.Height <= 0 }

// Millimeters 将页面尺寸换算为毫米，未知单位按毫米处理。
func (p PageSize) Millimeters() (float64, float64) {
	factor := 1.0
	switch p.Unit {
	case "cm":
		factor = 10
	case "in":
		factor = 25.4
	case "pt":
		factor = 25.4 / 72
	}
	return p.Width * factor, p.Height * factor
}

// Document 是一张证书模板的声明式版面描述。
type Document struct {
	Elements        []Element
	BackgroundColor string
	BackgroundImage string // 空串表示无背景图，持久化为 null
	Orientation     Orientation
	PageSize        PageSize
}

// New 创建一个空白文档。
func New(o Orientation) *Document {
	o = o.Normalize()
	return &Document{
		Elements:        []Element{},
		BackgroundColor: DefaultBackgroundColor,
		Orientation:     o,
		PageSize:        DefaultPageSize(o),
	}
}

// CanvasSize 返回文档规范画布尺寸。
func (d *Document) CanvasSize() (float64, float64) {
	if d == nil {
		return Landscape.CanvasSize()
	}
	return d.Orientation.CanvasSize()
}

// Page 返回导出页面尺寸，未设置时按方向取 A4。
func (d *Document) Page() PageSize {
	if d == nil {
		return DefaultPageSize(Landscape)
	}
	if d.PageSize.IsZero() {
		return DefaultPageSize(d.Orientation)
	}
	return d.PageSize
}
