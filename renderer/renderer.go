package renderer

import (
	"context"
	"image"

	"github.com/ByLCY/diploma/layout"
)

// Renderer 将布局结果输出为最终文件，例如 PDF 或 PNG。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(result *layout.Result) ([]byte, error)
}

// Capturer 将布局结果栅格化为位图，导出流程通过它截取单个证书。
// 返回的图像归调用方所有，下一次 Capture 不会覆盖它。
type Capturer interface {
	Capture(ctx context.Context, result *layout.Result) (image.Image, error)
}
