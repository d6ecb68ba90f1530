package canvasrenderer

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/skip2/go-qrcode"
	"github.com/tdewolff/canvas"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"

	"github.com/ByLCY/diploma/layout"
)

var (
	placeholderFill   = layout.Color{R: 243, G: 244, B: 246}
	placeholderStroke = layout.Color{R: 156, G: 163, B: 175}
	placeholderText   = layout.Color{R: 107, G: 114, B: 128}
)

func (r *Renderer) drawBackground(ctx context.Context, cctx *canvas.Context, result *layout.Result) {
	cctx.SetFillColor(colorFromLayout(result.Background.Color, 1))
	cctx.SetStrokeColor(canvas.Transparent)
	cctx.DrawPath(0, 0, canvas.Rectangle(result.Width, result.Height))

	if result.Background.Image == "" {
		return
	}
	img, err := r.loadImage(ctx, result.Background.Image)
	if err != nil {
		r.log.Warn("背景图加载失败，仅绘制背景色", zap.String("src", result.Background.Image), zap.Error(err))
		return
	}
	// 背景图铺满画布，超出部分裁掉。
	frame := layout.Rect{Width: result.Width, Height: result.Height}
	drawImageIn(cctx, img, frame, true)
}

func (r *Renderer) drawNode(ctx context.Context, cctx *canvas.Context, n layout.Node) error {
	alpha := n.Opacity
	if alpha <= 0 {
		return nil
	}
	switch n.Kind {
	case layout.NodeText:
		if n.Text == nil {
			return nil
		}
		return r.drawTextBox(cctx, n.Frame, *n.Text, alpha)
	case layout.NodeImage:
		if n.Image == nil {
			return nil
		}
		img, err := r.loadImage(ctx, n.Image.Src)
		if err != nil {
			// 图片下载或解码失败时与缺失图片一样绘制占位框。
			r.log.Warn("图片加载失败，绘制占位框", zap.String("src", n.Image.Src), zap.Error(err))
			return r.drawPlaceholder(cctx, n.Frame, layout.PlaceholderBox{Label: "Image", Glyph: "image"}, alpha)
		}
		drawImageIn(cctx, withOpacity(img, alpha), n.Frame, false)
		return nil
	case layout.NodeShape:
		if n.Shape == nil {
			return nil
		}
		drawShape(cctx, n.Frame, *n.Shape, alpha)
		return nil
	case layout.NodeQRCode:
		if n.QRCode == nil {
			return nil
		}
		return drawQRCode(cctx, n.Frame, *n.QRCode, alpha)
	case layout.NodePlaceholder:
		if n.Placeholder == nil {
			return nil
		}
		return r.drawPlaceholder(cctx, n.Frame, *n.Placeholder, alpha)
	default:
		return nil
	}
}

func (r *Renderer) loadImage(ctx context.Context, src string) (image.Image, error) {
	if r.images == nil {
		return nil, errNoImageSource
	}
	return r.images.Image(ctx, src)
}

func drawShape(cctx *canvas.Context, frame layout.Rect, s layout.ShapeBox, alpha float64) {
	stroke := canvas.Transparent
	if s.StrokeWidth > 0 {
		stroke = colorFromLayout(s.StrokeColor, alpha)
	}
	fill := canvas.Transparent
	if s.FillColor != nil {
		fill = colorFromLayout(*s.FillColor, alpha)
	}

	switch s.Shape {
	case layout.ShapeTopBorder:
		// 零高度盒子的上边框：以描边宽度为高度的实心条。
		if s.StrokeWidth <= 0 {
			return
		}
		cctx.SetFillColor(stroke)
		cctx.SetStrokeColor(canvas.Transparent)
		cctx.DrawPath(frame.X, frame.Y, canvas.Rectangle(frame.Width, s.StrokeWidth))
	case layout.ShapeEllipse:
		cctx.SetFillColor(fill)
		cctx.SetStrokeColor(stroke)
		cctx.SetStrokeWidth(s.StrokeWidth)
		cctx.DrawPath(frame.X+frame.Width/2, frame.Y+frame.Height/2, canvas.Ellipse(frame.Width/2, frame.Height/2))
	default:
		cctx.SetFillColor(fill)
		cctx.SetStrokeColor(stroke)
		cctx.SetStrokeWidth(s.StrokeWidth)
		if s.Radius > 0 {
			cctx.DrawPath(frame.X, frame.Y, canvas.RoundedRectangle(frame.Width, frame.Height, s.Radius))
			return
		}
		cctx.DrawPath(frame.X, frame.Y, canvas.Rectangle(frame.Width, frame.Height))
	}
}

// drawQRCode 以高纠错等级编码并按模块绘制矢量方块，尺寸与元素框成比例。
func drawQRCode(cctx *canvas.Context, frame layout.Rect, q layout.QRCodeBox, alpha float64) error {
	code, err := qrcode.New(q.Payload, recoveryLevel(q.Level))
	if err != nil {
		return err
	}
	code.DisableBorder = true
	bitmap := code.Bitmap()
	if len(bitmap) == 0 {
		return nil
	}
	side := math.Min(frame.Width, frame.Height)
	x0 := frame.X + (frame.Width-side)/2
	y0 := frame.Y + (frame.Height-side)/2
	module := side / float64(len(bitmap))

	cctx.SetStrokeColor(canvas.Transparent)
	cctx.SetFillColor(colorFromLayout(layout.Color{R: 255, G: 255, B: 255}, alpha))
	cctx.DrawPath(x0, y0, canvas.Rectangle(side, side))
	cctx.SetFillColor(colorFromLayout(layout.Color{}, alpha))
	for y, row := range bitmap {
		for x := 0; x < len(row); {
			if !row[x] {
				x++
				continue
			}
			// 合并同一行中连续的深色模块，减少路径数量。
			run := x
			for run < len(row) && row[run] {
				run++
			}
			cctx.DrawPath(x0+float64(x)*module, y0+float64(y)*module, canvas.Rectangle(float64(run-x)*module, module))
			x = run
		}
	}
	return nil
}

func recoveryLevel(level string) qrcode.RecoveryLevel {
	switch level {
	case "L":
		return qrcode.Low
	case "M":
		return qrcode.Medium
	case "Q":
		return qrcode.High
	default:
		return qrcode.Highest
	}
}

func (r *Renderer) drawPlaceholder(cctx *canvas.Context, frame layout.Rect, p layout.PlaceholderBox, alpha float64) error {
	cctx.SetFillColor(colorFromLayout(placeholderFill, alpha))
	cctx.SetStrokeColor(colorFromLayout(placeholderStroke, alpha))
	cctx.SetStrokeWidth(math.Max(math.Min(frame.Width, frame.Height)*0.01, 0.5))
	cctx.SetDashes(0, 4, 3)
	cctx.DrawPath(frame.X, frame.Y, canvas.Rectangle(frame.Width, frame.Height))
	cctx.SetDashes(0)

	if p.Glyph == "qrcode" {
		// 三个定位角的示意图形。
		side := math.Min(frame.Width, frame.Height) * 0.28
		cctx.SetFillColor(canvas.Transparent)
		cctx.SetStrokeWidth(side * 0.18)
		inset := side * 0.3
		for _, pt := range [][2]float64{
			{frame.X + inset, frame.Y + inset},
			{frame.X + frame.Width - inset - side, frame.Y + inset},
			{frame.X + inset, frame.Y + frame.Height - inset - side},
		} {
			cctx.DrawPath(pt[0], pt[1], canvas.Rectangle(side, side))
		}
	}
	if p.Label == "" {
		return nil
	}
	size := math.Max(math.Min(frame.Height*0.25, frame.Width/float64(len(p.Label)+1)), 1)
	tb := layout.TextBox{
		Content:  p.Label,
		Lines:    []layout.TextLine{{Content: p.Label, Height: size}},
		Font:     layout.FontSpec{Family: "sans", Weight: "normal"},
		FontSize: size,
		Color:    placeholderText,
		Align:    "center",
	}
	return r.drawTextBox(cctx, frame, tb, alpha)
}

// drawImageIn 将图片按比例放入 frame 并居中；cover 为 true 时铺满（超出部分由画布边界裁掉）。
func drawImageIn(cctx *canvas.Context, img image.Image, frame layout.Rect, cover bool) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || frame.Width <= 0 || frame.Height <= 0 {
		return
	}
	dpX := float64(b.Dx()) / frame.Width
	dpY := float64(b.Dy()) / frame.Height
	dpmm := math.Max(dpX, dpY)
	if cover {
		dpmm = math.Min(dpX, dpY)
	}
	w := float64(b.Dx()) / dpmm
	h := float64(b.Dy()) / dpmm
	cctx.DrawImage(frame.X+(frame.Width-w)/2, frame.Y+(frame.Height-h)/2, img, canvas.DPMM(dpmm))
}

// withOpacity 返回乘以统一透明度后的图片副本。
func withOpacity(img image.Image, alpha float64) image.Image {
	if alpha >= 1 {
		return img
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(clamp01(alpha) * 255))})
	xdraw.DrawMask(out, out.Bounds(), img, b.Min, mask, image.Point{}, xdraw.Over)
	return out
}

// colorFromLayout 返回预乘透明度后的 color.RGBA。
func colorFromLayout(c layout.Color, alpha float64) color.RGBA {
	n := color.NRGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: uint8(math.Round(clamp01(alpha) * 255))}
	return color.RGBAModel.Convert(n).(color.RGBA)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
