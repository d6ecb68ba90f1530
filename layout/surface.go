package layout

import (
	"math"
	"net/url"
	"strings"

	"github.com/ByLCY/diploma/document"
)

// Surface 是目标渲染面的像素尺寸：编辑器画布、预览卡片或导出画布。
type Surface struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// resolve 补全未设置的边：宽度缺失时使用规范尺寸，高度缺失时按规范宽高比推导。
func (s Surface) resolve(canonicalW, canonicalH float64) Surface {
	if !positive(s.Width) {
		return Surface{Width: canonicalW, Height: canonicalH}
	}
	if !positive(s.Height) {
		s.Height = s.Width * canonicalH / canonicalW
	}
	return s
}

// CanonicalSurface 返回文档的规范渲染面（横向 1000×707，纵向 1000×1414）。
func CanonicalSurface(doc *document.Document) Surface {
	w, h := doc.CanvasSize()
	return Surface{Width: w, Height: h}
}

// ScaleFor 返回从规范分辨率到目标宽度的缩放系数；规范宽度无效时为 1。
func ScaleFor(surfaceWidth, canonicalWidth float64) float64 {
	if !positive(canonicalWidth) || !positive(surfaceWidth) {
		return 1
	}
	return surfaceWidth / canonicalWidth
}

// Place 将百分比位置与规范尺寸映射到目标渲染面：
// 中心点为 (x% * W, y% * H)，尺寸按 scale 线性缩放，Frame 以中心为锚点。
func Place(x, y, width, height float64, s Surface, scale float64) (cx, cy float64, frame Rect) {
	cx = document.ClampPercent(x) / 100 * s.Width
	cy = document.ClampPercent(y) / 100 * s.Height
	w := nonNegative(width) * scale
	h := nonNegative(height) * scale
	return cx, cy, Rect{X: cx - w/2, Y: cy - h/2, Width: w, Height: h}
}

// VerificationURL 返回证书的公开验证地址 <origin>/verify/<certificateId>。
func VerificationURL(origin, certificateID string) string {
	return strings.TrimRight(origin, "/") + "/verify/" + url.PathEscape(certificateID)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func nonNegative(v float64) float64 {
	if !positive(v) {
		return 0
	}
	return v
}

// orDefault 在 v 非正或非数值时返回 def。
func orDefault(v, def float64) float64 {
	if positive(v) {
		return v
	}
	return def
}
