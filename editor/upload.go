package editor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"

	"github.com/ByLCY/diploma/assets"
)

// DefaultUploadSide 是上传图片缩放后的最长边。
const DefaultUploadSide = 800

const uploadJPEGQuality = 85

// UploadImage 解码上传的图片，按最长边 maxSide 等比缩小后重新编码为 data URI。
// 带透明通道的图片编码为 PNG，其余编码为 JPEG。
func (e *Editor) UploadImage(ctx context.Context, r io.Reader, maxSide int) (string, error) {
	if !e.caps.ImageUpload {
		return "", fmt.Errorf("%w: 上传图片", ErrCapabilityDenied)
	}
	if maxSide <= 0 {
		maxSide = DefaultUploadSide
	}
	src, format, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("解码上传图片失败: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img := downscale(src, maxSide)
	var buf bytes.Buffer
	mediaType := "image/jpeg"
	if hasAlpha(src) {
		mediaType = "image/png"
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: uploadJPEGQuality})
	}
	if err != nil {
		return "", fmt.Errorf("编码上传图片失败: %w", err)
	}
	e.log.Debug("图片已压缩",
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
		zap.Int("bytes", buf.Len()),
	)
	return assets.DataURI(mediaType, buf.Bytes()), nil
}

func downscale(src image.Image, maxSide int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return src
	}
	if w >= h {
		h = max(1, h*maxSide/w)
		w = maxSide
	} else {
		w = max(1, w*maxSide/h)
		h = maxSide
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// hasAlpha 判断图片是否存在非完全不透明的像素。
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}
