package canvasrenderer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"go.uber.org/zap"

	"github.com/ByLCY/diploma/layout"
	"github.com/ByLCY/diploma/renderer"
)

// DefaultSupersample 是位图导出的超采样倍数：规范画布 1000 宽输出 2000 像素。
const DefaultSupersample = 2.0

// ImageSource 根据图片地址返回已解码的图片。
type ImageSource interface {
	Image(ctx context.Context, src string) (image.Image, error)
}

// Renderer draws layout results via github.com/tdewolff/canvas.
// 布局结果的 1 个像素对应画布的 1 个单位（canvas 内部按 mm 处理）。
type Renderer struct {
	images      ImageSource
	supersample float64
	creator     string
	log         *zap.Logger

	fontMu       sync.Mutex
	fontFamilies map[string]*canvas.FontFamily
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ renderer.Capturer = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	Images      ImageSource // 为空时所有图片按缺失处理
	Supersample float64     // 栅格化倍数，<=0 时使用 DefaultSupersample
	Creator     string      // 写入 PDF 元数据
	Logger      *zap.Logger
}

// NewRenderer creates a renderer without an image source.
func NewRenderer() *Renderer { return NewRendererWithOptions(Options{}) }

// NewRendererWithOptions creates a renderer with injected dependencies.
func NewRendererWithOptions(opts Options) *Renderer {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ss := opts.Supersample
	if ss <= 0 {
		ss = DefaultSupersample
	}
	creator := opts.Creator
	if creator == "" {
		creator = "diploma"
	}
	return &Renderer{
		images:       opts.Images,
		supersample:  ss,
		creator:      creator,
		log:          log.Named("canvas"),
		fontFamilies: map[string]*canvas.FontFamily{},
	}
}

// Render 将结果绘制为单页矢量 PDF，页面尺寸等于结果尺寸（单位 mm）。
// 需要匹配纸张时应以纸张毫米尺寸作为 Surface 构建结果。
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	return r.RenderPDF(context.Background(), result)
}

// RenderPDF 与 Render 相同，但在加载图片时使用 ctx。
func (r *Renderer) RenderPDF(ctx context.Context, result *layout.Result) ([]byte, error) {
	c, err := r.draw(ctx, result)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	writer := pdf.New(&buf, result.Width, result.Height, nil)
	writer.SetInfo("Certificate", "", "", "", r.creator)
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// draw 在新的画布上绘制整个结果。
func (r *Renderer) draw(ctx context.Context, result *layout.Result) (*canvas.Canvas, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if result.Width <= 0 || result.Height <= 0 {
		return nil, fmt.Errorf("渲染面尺寸无效: %gx%g", result.Width, result.Height)
	}
	c := canvas.New(result.Width, result.Height)
	cctx := canvas.NewContext(c)
	cctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

	r.drawBackground(ctx, cctx, result)
	for _, node := range result.Nodes {
		if err := r.drawNode(ctx, cctx, node); err != nil {
			return nil, fmt.Errorf("绘制元素 %s 失败: %w", node.ElementID, err)
		}
	}
	return c, nil
}
