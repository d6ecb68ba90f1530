package layout

import (
	"fmt"
	"strings"

	"github.com/ByLCY/diploma/document"
)

var pagePresets = map[string][2]float64{
	"A3":     {297, 420},
	"A4":     {210, 297},
	"A5":     {148, 210},
	"LETTER": {215.9, 279.4},
	"LEGAL":  {215.9, 355.6},
}

// PaperSize 返回标准纸张在给定方向下的毫米尺寸。
func PaperSize(name string, o document.Orientation) (document.PageSize, error) {
	base, ok := pagePresets[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return document.PageSize{}, fmt.Errorf("暂不支持的纸张尺寸：%s", name)
	}
	width, height := base[0], base[1]
	if o.Normalize() == document.Landscape {
		width, height = height, width
	}
	return document.PageSize{Width: width, Height: height, Unit: "mm"}, nil
}

// PageSurface 返回文档页面的毫米尺寸，作为矢量 PDF 的渲染面。
func PageSurface(doc *document.Document) Surface {
	w, h := doc.Page().Millimeters()
	return Surface{Width: w, Height: h}
}
