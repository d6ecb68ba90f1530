package canvasrenderer

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/diploma/fonts"
	"github.com/ByLCY/diploma/layout"
)

// LayoutLines 实现 layout.Typesetter 接口，使用贪心换行算法。
// 约定：fontSize/lineHeight/width 均为渲染面单位（画布单位），创建字体面时换算为 pt。
func (r *Renderer) LayoutLines(content string, width float64, font layout.FontSpec, fontSize, lineHeight float64) ([]layout.TextLine, error) {
	if fontSize <= 0 {
		return nil, fmt.Errorf("字号无效: %g", fontSize)
	}
	face, err := r.fontFace(font, fontSize, layout.Color{}, 1)
	if err != nil {
		return nil, err
	}

	lines := greedyWrapTokens(content, width, face)
	textHeight := face.Metrics().LineHeight
	if textHeight <= 0 {
		textHeight = fontSize
	}
	if lineHeight <= 0 {
		lineHeight = textHeight
	}
	leading := math.Max(lineHeight-textHeight, 0)
	if len(lines) == 0 {
		lines = []layout.TextLine{{Content: "", Width: 0, Height: textHeight}}
	}
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = textHeight
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

// drawTextBox 在 frame 内绘制文本：扣除内边距后按对齐方式水平定位，整体垂直居中。
func (r *Renderer) drawTextBox(cctx *canvas.Context, frame layout.Rect, tb layout.TextBox, alpha float64) error {
	face, err := r.fontFace(tb.Font, tb.FontSize, tb.Color, alpha)
	if err != nil {
		return err
	}

	lines := tb.Lines
	if len(lines) == 0 {
		lines = []layout.TextLine{{Content: tb.Content, Height: tb.LineHeight}}
	}

	inner := layout.Rect{
		X:      frame.X + tb.Padding,
		Y:      frame.Y + tb.Padding,
		Width:  math.Max(frame.Width-2*tb.Padding, 0),
		Height: math.Max(frame.Height-2*tb.Padding, 0),
	}
	total := 0.0
	for _, ln := range lines {
		total += ln.GapBefore + lineHeightOf(ln, tb)
	}

	var textAlign canvas.TextAlign
	var anchorX float64
	switch tb.Align {
	case "left":
		textAlign = canvas.Left
		anchorX = inner.X
	case "right":
		textAlign = canvas.Right
		anchorX = inner.X + inner.Width
	default:
		textAlign = canvas.Center
		anchorX = inner.X + inner.Width/2
	}

	metrics := face.Metrics()
	cursorY := inner.Y + math.Max(inner.Height-total, 0)/2
	for _, line := range lines {
		cursorY += line.GapBefore
		baseline := cursorY + metrics.Ascent
		cctx.DrawText(anchorX, baseline, canvas.NewTextLine(face, line.Content, textAlign))
		if tb.Decoration != "" && line.Content != "" {
			drawDecoration(cctx, tb, face, metrics, anchorX, baseline, line.Content, textAlign, alpha)
		}
		cursorY += lineHeightOf(line, tb)
	}
	return nil
}

func lineHeightOf(line layout.TextLine, tb layout.TextBox) float64 {
	if line.Height > 0 {
		return line.Height
	}
	if tb.FontSize > 0 {
		return tb.FontSize
	}
	return tb.LineHeight
}

// drawDecoration 绘制下划线或删除线，线宽约为字号的 6%。
func drawDecoration(cctx *canvas.Context, tb layout.TextBox, face *canvas.FontFace, metrics canvas.FontMetrics, anchorX, baseline float64, content string, align canvas.TextAlign, alpha float64) {
	w := face.TextWidth(content)
	x := anchorX
	switch align {
	case canvas.Center:
		x -= w / 2
	case canvas.Right:
		x -= w
	}
	thickness := math.Max(tb.FontSize*0.06, 0.1)
	y := baseline + thickness
	if tb.Decoration == "line-through" {
		y = baseline - metrics.XHeight/2 - thickness/2
	}
	cctx.SetFillColor(colorFromLayout(tb.Color, alpha))
	cctx.SetStrokeColor(canvas.Transparent)
	cctx.DrawPath(x, y, canvas.Rectangle(w, thickness))
}

// fontFace 创建字体面。size 为画布单位，canvas 的字号为 pt，这里做一次换算。
func (r *Renderer) fontFace(font layout.FontSpec, size float64, col layout.Color, alpha float64) (*canvas.FontFace, error) {
	family, err := r.ensureFontFamily(fonts.Collection(font.Family))
	if err != nil {
		return nil, err
	}
	style := canvas.FontRegular
	if font.Weight == "bold" {
		style = canvas.FontBold
	}
	return family.Face(toPt(size), colorFromLayout(col, alpha), style, canvas.FontNormal), nil
}

// ensureFontFamily 按字体集合缓存 FontFamily，每个集合加载其全部内置字重。
func (r *Renderer) ensureFontFamily(collection string) (*canvas.FontFamily, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if family, ok := r.fontFamilies[collection]; ok {
		return family, nil
	}
	family := canvas.NewFontFamily("diploma-" + collection)
	for _, style := range []struct {
		weight string
		style  canvas.FontStyle
	}{
		{"regular", canvas.FontRegular},
		{"bold", canvas.FontBold},
	} {
		data, err := fonts.Load(fonts.Path(collection, style.weight))
		if err != nil {
			return nil, err
		}
		if err := family.LoadFont(data, 0, style.style); err != nil {
			return nil, fmt.Errorf("加载字体 %s/%s 失败: %w", collection, style.weight, err)
		}
	}
	r.fontFamilies[collection] = family
	return family, nil
}

// toPt 将画布单位（mm）转换为点(pt)。
func toPt(mm float64) float64 { return mm * layout.MmToPt }

// greedyWrapTokens 优先在空白处分割，单词超过限制时在词内拆分；显式换行始终保留。
// width<=0 表示不限宽度。
func greedyWrapTokens(content string, width float64, face *canvas.FontFace) []layout.TextLine {
	limit := width
	if limit <= 0 {
		limit = math.MaxFloat64
	}

	tokens := tokenizeContent(content)
	var lines []layout.TextLine
	var builder strings.Builder
	currentWidth := 0.0

	emit := func(force bool) {
		if builder.Len() == 0 {
			if force {
				lines = append(lines, layout.TextLine{Content: "", Width: 0})
			}
			return
		}
		lineStr := strings.TrimRightFunc(builder.String(), unicode.IsSpace)
		lines = append(lines, layout.TextLine{
			Content: lineStr,
			Width:   face.TextWidth(lineStr),
		})
		builder.Reset()
		currentWidth = 0
	}

	appendToken := func(token string) {
		builder.WriteString(token)
		currentWidth += face.TextWidth(token)
	}

	for _, token := range tokens {
		if token == "\n" {
			emit(true)
			continue
		}
		isSpace := strings.TrimSpace(token) == ""
		if isSpace && builder.Len() == 0 && len(lines) > 0 {
			// 折行后的行首空白不计入下一行。
			continue
		}

		tokenWidth := face.TextWidth(token)
		if currentWidth > 0 && currentWidth+tokenWidth > limit {
			if isSpace {
				emit(false)
				continue
			}
			emit(false)
		}
		if tokenWidth <= limit {
			appendToken(token)
			continue
		}

		for _, chunk := range splitTokenByWidth(token, limit, face) {
			chunkWidth := face.TextWidth(chunk)
			if currentWidth > 0 && currentWidth+chunkWidth > limit {
				emit(false)
			}
			appendToken(chunk)
		}
	}

	emit(true)
	return lines
}

func tokenizeContent(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			tokens = append(tokens, "\n")
			lastWasSpace = false
			continue
		}
		isSpace := unicode.IsSpace(r)
		if builder.Len() == 0 {
			lastWasSpace = isSpace
		} else if lastWasSpace != isSpace {
			flush()
			lastWasSpace = isSpace
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

func splitTokenByWidth(token string, limit float64, face *canvas.FontFace) []string {
	if limit <= 0 || limit == math.MaxFloat64 {
		return []string{token}
	}
	var parts []string
	var builder strings.Builder
	for _, r := range token {
		builder.WriteRune(r)
		if face.TextWidth(builder.String()) > limit && builder.Len() > 1 {
			runes := []rune(builder.String())
			parts = append(parts, string(runes[:len(runes)-1]))
			builder.Reset()
			builder.WriteRune(r)
		}
	}
	if builder.Len() > 0 {
		parts = append(parts, builder.String())
	}
	return parts
}
