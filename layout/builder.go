package layout

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ByLCY/diploma/binding"
	"github.com/ByLCY/diploma/document"
)

const (
	defaultFontSize   = 16.0
	defaultLineFactor = 1.2
	defaultQRCodeSide = 100.0
)

var (
	white = Color{R: 255, G: 255, B: 255}
	black = Color{}
)

// Build 将文档与绑定上下文转换为按绘制顺序排列的视觉树。
// Build 是纯函数，对任何文档（包括 nil 与含未知类型的文档）都返回可绘制结果，从不 panic。
func Build(doc *document.Document, ctx binding.Context, opts BuildOptions) *Result {
	if doc == nil {
		doc = document.New(document.Landscape)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("layout")

	canonicalW, canonicalH := doc.CanvasSize()
	surface := opts.Surface.resolve(canonicalW, canonicalH)
	scale := ScaleFor(surface.Width, canonicalW)
	mode := opts.Mode
	if mode == "" {
		mode = ModeEditor
	}

	bg, err := parseColor(doc.BackgroundColor)
	if err != nil {
		bg = white
	}
	res := &Result{
		Width:      surface.Width,
		Height:     surface.Height,
		Scale:      scale,
		Mode:       mode,
		Background: Background{Color: bg, Image: doc.BackgroundImage},
		Nodes:      make([]Node, 0, len(doc.Elements)),
	}

	b := &builder{
		surface:    surface,
		scale:      scale,
		mode:       mode,
		origin:     opts.Origin,
		ctx:        ctx,
		typesetter: opts.Typesetter,
		log:        log,
		unresolved: map[string]struct{}{},
	}
	for i, el := range doc.Elements {
		node, ok := b.node(el)
		if !ok {
			log.Debug("跳过无法渲染的元素", zap.Int("index", i), zap.String("type", kindOf(el)))
			continue
		}
		res.Nodes = append(res.Nodes, node)
	}
	for name := range b.unresolved {
		res.Unresolved = append(res.Unresolved, name)
	}
	if len(res.Unresolved) > 0 {
		sort.Strings(res.Unresolved)
		log.Debug("存在未解析的占位符", zap.Strings("tokens", res.Unresolved))
	}
	return res
}

type builder struct {
	surface    Surface
	scale      float64
	mode       Mode
	origin     string
	ctx        binding.Context
	typesetter Typesetter
	log        *zap.Logger
	unresolved map[string]struct{}
}

// node 对元素变体做穷举匹配；新增变体时必须在此处补充分支。
func (b *builder) node(el document.Element) (Node, bool) {
	switch e := el.(type) {
	case *document.TextElement:
		if e == nil {
			return Node{}, false
		}
		return b.textNode(e), true
	case *document.ImageElement:
		if e == nil {
			return Node{}, false
		}
		return b.imageNode(e), true
	case *document.ShapeElement:
		if e == nil {
			return Node{}, false
		}
		return b.shapeNode(e), true
	case *document.QRCodeElement:
		if e == nil {
			return Node{}, false
		}
		return b.qrNode(e), true
	case *document.UnknownElement:
		return Node{}, false
	default:
		return Node{}, false
	}
}

func (b *builder) base(c *document.Common, kind NodeKind, width, height float64) Node {
	cx, cy, frame := Place(c.X, c.Y, width, height, b.surface, b.scale)
	return Node{
		ElementID: c.ID,
		Kind:      kind,
		CenterX:   cx,
		CenterY:   cy,
		Frame:     frame,
		Opacity:   document.ClampOpacity(c.Opacity),
	}
}

func (b *builder) textNode(e *document.TextElement) Node {
	interp := binding.Interpolate(e.Content, b.ctx)
	for _, name := range interp.Unresolved {
		b.unresolved[name] = struct{}{}
	}

	fontSize := orDefault(e.FontSize, defaultFontSize) * b.scale
	lineHeight := fontSize * defaultLineFactor
	padding := nonNegative(e.Padding) * b.scale
	font := FontSpec{Family: e.FontFamily, Weight: normalizeWeight(e.FontWeight)}
	align := normalizeAlign(e.Align)

	boxWidth := nonNegative(e.Width) * b.scale
	wrapWidth := 0.0
	if boxWidth > 0 {
		wrapWidth = math.Max(boxWidth-2*padding, 0)
	}
	lines := b.layoutLines(interp.Text, wrapWidth, font, fontSize, lineHeight)

	contentW, contentH := 0.0, 0.0
	for _, ln := range lines {
		contentW = math.Max(contentW, ln.Width)
		contentH += ln.Height + ln.GapBefore
	}
	if boxWidth <= 0 {
		boxWidth = contentW + 2*padding
	}
	boxHeight := math.Max(nonNegative(e.Height)*b.scale, contentH+2*padding)

	// 尺寸已经是目标像素，使用 scale=1 放置。
	n := b.base(&e.Common, NodeText, boxWidth, boxHeight)
	n.Frame = centered(n.CenterX, n.CenterY, boxWidth, boxHeight)

	color, err := parseColor(e.Color)
	if err != nil {
		color = black
	}
	n.Text = &TextBox{
		Content:    interp.Text,
		Lines:      lines,
		Font:       font,
		FontSize:   fontSize,
		LineHeight: lineHeight,
		Color:      color,
		Align:      align,
		Decoration: normalizeDecoration(e.TextDecoration),
		Padding:    padding,
	}
	return n
}

// layoutLines 优先使用排版后端，失败或缺失时回落到按换行拆分并估算宽度。
func (b *builder) layoutLines(content string, width float64, font FontSpec, fontSize, lineHeight float64) []TextLine {
	if b.typesetter != nil {
		lines, err := b.typesetter.LayoutLines(content, width, font, fontSize, lineHeight)
		if err == nil && len(lines) > 0 {
			return lines
		}
		if err != nil {
			b.log.Warn("文本排版失败，使用估算宽度", zap.Error(err))
		}
	}
	parts := strings.Split(content, "\n")
	lines := make([]TextLine, 0, len(parts))
	for i, p := range parts {
		ln := TextLine{Content: p, Width: estimateTextWidth(p, fontSize), Height: fontSize}
		if i > 0 {
			ln.GapBefore = math.Max(lineHeight-fontSize, 0)
		}
		lines = append(lines, ln)
	}
	return lines
}

func (b *builder) imageNode(e *document.ImageElement) Node {
	w, h := e.Width, e.Height
	if e.Kind() == document.KindSignature {
		w, h = orDefault(w, 160), orDefault(h, 60)
	} else {
		w, h = orDefault(w, 120), orDefault(h, 120)
	}
	src := strings.TrimSpace(e.ImageURL)
	if src == "" {
		n := b.base(&e.Common, NodePlaceholder, w, h)
		label := "Logo"
		if e.Kind() == document.KindSignature {
			label = "Signature"
		}
		n.Placeholder = &PlaceholderBox{Label: label, Glyph: "image"}
		return n
	}
	n := b.base(&e.Common, NodeImage, w, h)
	n.Image = &ImageBox{Src: src}
	return n
}

func (b *builder) shapeNode(e *document.ShapeElement) Node {
	w, h := orDefault(e.Width, 200), orDefault(e.Height, 100)
	stroke := nonNegative(e.StrokeWidth) * b.scale
	box := &ShapeBox{StrokeWidth: stroke}
	if c, err := parseColor(e.StrokeColor); err == nil {
		box.StrokeColor = c
	}
	if c, ok := parseFill(e.FillColor); ok {
		box.FillColor = &c
	}

	var n Node
	switch e.ShapeType {
	case document.ShapeCircle:
		n = b.base(&e.Common, NodeShape, w, h)
		box.Shape = ShapeEllipse
		box.Radius = math.Min(n.Frame.Width, n.Frame.Height) / 2
	case document.ShapeLine:
		// 直线是零高度的盒子，只绘制上边框。
		n = b.base(&e.Common, NodeShape, w, 0)
		box.Shape = ShapeTopBorder
		box.FillColor = nil
	default:
		n = b.base(&e.Common, NodeShape, w, h)
		box.Shape = ShapeRect
		box.Radius = math.Min(nonNegative(e.BorderRadius)*b.scale, math.Min(n.Frame.Width, n.Frame.Height)/2)
	}
	n.Shape = box
	return n
}

func (b *builder) qrNode(e *document.QRCodeElement) Node {
	side := orDefault(math.Max(nonNegative(e.Width), nonNegative(e.Height)), defaultQRCodeSide)
	id := strings.TrimSpace(b.ctx[binding.CertificateID])
	if !b.mode.liveQRCode() || id == "" {
		n := b.base(&e.Common, NodePlaceholder, side, side)
		n.Placeholder = &PlaceholderBox{Label: "QR", Glyph: "qrcode"}
		return n
	}
	n := b.base(&e.Common, NodeQRCode, side, side)
	n.QRCode = &QRCodeBox{Payload: VerificationURL(b.origin, id), Level: "H"}
	return n
}

func centered(cx, cy, w, h float64) Rect {
	return Rect{X: cx - w/2, Y: cy - h/2, Width: w, Height: h}
}

func kindOf(el document.Element) string {
	if el == nil {
		return "<nil>"
	}
	return string(el.Kind())
}

func normalizeWeight(w string) string {
	w = strings.ToLower(strings.TrimSpace(w))
	switch w {
	case "bold", "bolder":
		return "bold"
	case "", "normal", "lighter":
		return "normal"
	}
	if n, err := strconv.Atoi(w); err == nil && n >= 600 {
		return "bold"
	}
	return "normal"
}

func normalizeAlign(a string) string {
	switch strings.ToLower(strings.TrimSpace(a)) {
	case "left", "start":
		return "left"
	case "right", "end":
		return "right"
	default:
		return "center"
	}
}

func normalizeDecoration(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "underline":
		return "underline"
	case "line-through":
		return "line-through"
	default:
		return ""
	}
}

// parseFill 解析填充色；空串、transparent 或非法值表示不填充。
func parseFill(value string) (Color, bool) {
	v := strings.TrimSpace(strings.ToLower(value))
	if v == "" || v == "transparent" || v == "none" {
		return Color{}, false
	}
	c, err := parseColor(v)
	if err != nil {
		return Color{}, false
	}
	return c, true
}

var namedColors = map[string]Color{
	"black": black,
	"white": white,
	"red":   {R: 255},
	"green": {G: 128},
	"blue":  {B: 255},
	"gray":  {R: 128, G: 128, B: 128},
	"grey":  {R: 128, G: 128, B: 128},
	"gold":  {R: 255, G: 215},
	"navy":  {B: 128},
}

// parseColor 解析 #rgb、#rrggbb、#rrggbbaa（忽略透明度）或常见颜色名。
func parseColor(value string) (Color, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if c, ok := namedColors[value]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(value, "#")
	if !isHex(hex) {
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	switch len(hex) {
	case 3:
		return Color{
			R: mustHex(strings.Repeat(string(hex[0]), 2)),
			G: mustHex(strings.Repeat(string(hex[1]), 2)),
			B: mustHex(strings.Repeat(string(hex[2]), 2)),
		}, nil
	case 6, 8:
		return Color{
			R: mustHex(hex[0:2]),
			G: mustHex(hex[2:4]),
			B: mustHex(hex[4:6]),
		}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

func mustHex(v string) int {
	n, err := strconv.ParseInt(v, 16, 0)
	if err != nil {
		return 0
	}
	return int(n)
}

func estimateTextWidth(content string, fontSize float64) float64 {
	if fontSize <= 0 {
		fontSize = defaultFontSize
	}
	count := utf8.RuneCountInString(content)
	if count == 0 {
		return 0
	}
	return fontSize * 0.55 * float64(count)
}
