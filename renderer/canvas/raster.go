package canvasrenderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/diploma/layout"
)

var errNoImageSource = errors.New("未配置图片来源")

// Capture 实现 renderer.Capturer：按超采样倍数将结果栅格化（规范横向画布得到 2000×1414 像素）。
// 每次调用都绘制到新的画布，返回的图像不会被后续调用覆盖。
func (r *Renderer) Capture(ctx context.Context, result *layout.Result) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := r.draw(ctx, result)
	if err != nil {
		return nil, err
	}
	return rasterizer.Draw(c, canvas.DPMM(r.supersample), canvas.DefaultColorSpace), nil
}

// RenderPNG 栅格化结果并编码为 PNG。
func (r *Renderer) RenderPNG(ctx context.Context, result *layout.Result) ([]byte, error) {
	img, err := r.Capture(ctx, result)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// EncodePNG 将位图编码为 PNG 字节。
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("编码 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// EmbedPDF 将位图无边距地铺满一页 PDF，页面尺寸单位为 mm。
// 位图与页面宽高比不一致时按铺满缩放，多出的部分被页面裁掉。
func EmbedPDF(img image.Image, pageWidth, pageHeight float64, creator string) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("位图为空")
	}
	if pageWidth <= 0 || pageHeight <= 0 {
		return nil, fmt.Errorf("页面尺寸无效: %gx%g", pageWidth, pageHeight)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("位图尺寸为零")
	}

	c := canvas.New(pageWidth, pageHeight)
	cctx := canvas.NewContext(c)
	cctx.SetCoordSystem(canvas.CartesianIV)
	dpmm := math.Min(float64(b.Dx())/pageWidth, float64(b.Dy())/pageHeight)
	w := float64(b.Dx()) / dpmm
	h := float64(b.Dy()) / dpmm
	cctx.DrawImage((pageWidth-w)/2, (pageHeight-h)/2, img, canvas.DPMM(dpmm))

	var buf bytes.Buffer
	writer := pdf.New(&buf, pageWidth, pageHeight, nil)
	writer.SetInfo("Certificate", "", "", "", creator)
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}
