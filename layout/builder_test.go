package layout

import (
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ByLCY/diploma/binding"
	"github.com/ByLCY/diploma/document"
)

// stubTypesetter 是一个最小实现，仅用于测试，避免引入 renderer 造成循环依赖。
// 每个字符宽度为 0.5 * fontSize，按空格贪心折行。
type stubTypesetter struct{}

func (s *stubTypesetter) LayoutLines(content string, width float64, font FontSpec, fontSize, lineHeight float64) ([]TextLine, error) {
	charW := fontSize * 0.5
	var lines []TextLine
	for _, para := range strings.Split(content, "\n") {
		words := strings.Fields(para)
		cur := ""
		flush := func() {
			ln := TextLine{Content: cur, Width: float64(len([]rune(cur))) * charW, Height: fontSize}
			if len(lines) > 0 {
				ln.GapBefore = lineHeight - fontSize
			}
			lines = append(lines, ln)
			cur = ""
		}
		for _, w := range words {
			next := w
			if cur != "" {
				next = cur + " " + w
			}
			if width > 0 && cur != "" && float64(len([]rune(next)))*charW > width {
				flush()
				next = w
			}
			cur = next
		}
		flush()
	}
	return lines, nil
}

const eps = 1e-6

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func textAt(x, y float64, content string) *document.TextElement {
	el := document.NewElement(document.KindText).(*document.TextElement)
	el.X, el.Y = x, y
	el.Content = content
	return el
}

// TestBuildSubstitutesAndCenters 文本占位符替换后以元素中心定位在画布中央。
func TestBuildSubstitutesAndCenters(t *testing.T) {
	doc := document.New(document.Landscape)
	id := doc.Add(textAt(50, 50, "Hello {{recipient_name}}"))

	res := Build(doc, binding.Context{binding.RecipientName: "Jane Doe"}, BuildOptions{Typesetter: &stubTypesetter{}})
	if len(res.Nodes) != 1 {
		t.Fatalf("期望 1 个节点，实际 %d", len(res.Nodes))
	}
	n := res.Nodes[0]
	if n.ElementID != id || n.Text == nil {
		t.Fatalf("节点不是文本节点: %+v", n)
	}
	if n.Text.Content != "Hello Jane Doe" {
		t.Fatalf("替换结果错误: %q", n.Text.Content)
	}
	if !near(n.CenterX, 500) || !near(n.CenterY, 353.5) {
		t.Fatalf("中心点错误: (%g,%g)", n.CenterX, n.CenterY)
	}
	if !near(n.Frame.X+n.Frame.Width/2, n.CenterX) || !near(n.Frame.Y+n.Frame.Height/2, n.CenterY) {
		t.Fatalf("Frame 未以中心为锚点: %+v", n.Frame)
	}
}

// TestBuildCanonicalLandscapeSurface 空白横向文档得到 1000×707 的白色画布。
func TestBuildCanonicalLandscapeSurface(t *testing.T) {
	doc, err := document.Parse([]byte(`{"elements":[],"backgroundImage":null,"backgroundColor":"#ffffff","orientation":"landscape"}`))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	res := Build(doc, nil, BuildOptions{})
	if res.Width != 1000 || res.Height != 707 {
		t.Fatalf("画布尺寸错误: %gx%g", res.Width, res.Height)
	}
	if res.Background.Color != (Color{R: 255, G: 255, B: 255}) || res.Background.Image != "" {
		t.Fatalf("背景错误: %+v", res.Background)
	}
	if res.Scale != 1 {
		t.Fatalf("规范画布的缩放应为 1，实际 %g", res.Scale)
	}

	portrait := Build(document.New(document.Portrait), nil, BuildOptions{})
	if portrait.Width != 1000 || portrait.Height != 1414 {
		t.Fatalf("纵向画布尺寸错误: %gx%g", portrait.Width, portrait.Height)
	}
}

// TestBuildClampsCorruptedPosition 越界坐标被限制到画布边缘而不是丢弃。
func TestBuildClampsCorruptedPosition(t *testing.T) {
	doc := document.New(document.Landscape)
	doc.Add(textAt(150, -20, "edge"))
	el := document.NewElement(document.KindShape)
	el.Base().X = math.NaN()
	doc.Add(el)

	res := Build(doc, nil, BuildOptions{})
	if len(res.Nodes) != 2 {
		t.Fatalf("越界元素不应被丢弃，节点数 %d", len(res.Nodes))
	}
	if !near(res.Nodes[0].CenterX, 1000) || !near(res.Nodes[0].CenterY, 0) {
		t.Fatalf("坐标未被限制: (%g,%g)", res.Nodes[0].CenterX, res.Nodes[0].CenterY)
	}
	if !near(res.Nodes[1].CenterX, 500) {
		t.Fatalf("NaN 坐标应回落到中心，实际 %g", res.Nodes[1].CenterX)
	}
}

// TestBuildScaleInvariance 同一文档在不同宽度下的相对位置与宽高比一致。
func TestBuildScaleInvariance(t *testing.T) {
	doc := document.New(document.Landscape)
	doc.Add(textAt(30, 20, "Certificate of Completion"))
	wrapped := textAt(50, 60, "{{course_name}} awarded to {{recipient_name}}")
	wrapped.Width = 300
	wrapped.Padding = 8
	doc.Add(wrapped)
	logo := document.NewElement(document.KindLogo)
	logo.(*document.ImageElement).ImageURL = "https://example.com/logo.png"
	doc.Add(logo)
	circle := document.NewElement(document.KindShape).(*document.ShapeElement)
	circle.ShapeType = document.ShapeCircle
	circle.X, circle.Y = 80, 80
	doc.Add(circle)
	doc.Add(document.NewElement(document.KindQRCode))

	ctx := binding.Context{binding.CourseName: "Go", binding.RecipientName: "Ada", binding.CertificateID: "CERT-AB12-99"}
	for _, ts := range []Typesetter{nil, &stubTypesetter{}} {
		big := Build(doc, ctx, BuildOptions{Surface: Surface{Width: 2000}, Mode: ModeExport, Typesetter: ts})
		small := Build(doc, ctx, BuildOptions{Surface: Surface{Width: 250}, Mode: ModeExport, Typesetter: ts})
		if len(big.Nodes) != len(small.Nodes) {
			t.Fatalf("节点数量不一致: %d vs %d", len(big.Nodes), len(small.Nodes))
		}
		if !near(big.Width/big.Height, small.Width/small.Height) {
			t.Fatalf("画布宽高比不一致")
		}
		for i := range big.Nodes {
			a, b := big.Nodes[i], small.Nodes[i]
			pairs := [][2]float64{
				{a.CenterX / big.Width, b.CenterX / small.Width},
				{a.CenterY / big.Height, b.CenterY / small.Height},
				{a.Frame.Width / big.Width, b.Frame.Width / small.Width},
				{a.Frame.Height / big.Width, b.Frame.Height / small.Width},
			}
			for j, p := range pairs {
				if math.Abs(p[0]-p[1]) > 1e-3 {
					t.Fatalf("节点 %d (%s) 第 %d 项相对几何不一致: %g vs %g", i, a.Kind, j, p[0], p[1])
				}
			}
		}
	}
}

// TestBuildQRCodePayload 导出场景编码验证地址，编辑场景只绘制占位。
func TestBuildQRCodePayload(t *testing.T) {
	doc := document.New(document.Landscape)
	qr := document.NewElement(document.KindQRCode)
	qr.Base().Width, qr.Base().Height = 80, 120
	doc.Add(qr)
	ctx := binding.Context{binding.CertificateID: "CERT-AB12-99"}

	res := Build(doc, ctx, BuildOptions{Mode: ModeExport, Origin: "https://certs.example.com"})
	n := res.Nodes[0]
	if n.Kind != NodeQRCode || n.QRCode == nil {
		t.Fatalf("导出场景应生成二维码节点: %+v", n)
	}
	if n.QRCode.Payload != "https://certs.example.com/verify/CERT-AB12-99" {
		t.Fatalf("二维码内容错误: %s", n.QRCode.Payload)
	}
	if n.Frame.Width != n.Frame.Height || n.Frame.Width != 120 {
		t.Fatalf("二维码应为正方形且取较大边: %+v", n.Frame)
	}

	for _, mode := range []Mode{ModeEditor, ModePreview} {
		res := Build(doc, ctx, BuildOptions{Mode: mode, Origin: "https://certs.example.com"})
		if res.Nodes[0].Kind != NodePlaceholder || res.Nodes[0].Placeholder.Glyph != "qrcode" {
			t.Fatalf("%s 场景应绘制二维码占位: %+v", mode, res.Nodes[0])
		}
	}

	noID := Build(doc, nil, BuildOptions{Mode: ModeVerification})
	if noID.Nodes[0].Kind != NodePlaceholder {
		t.Fatalf("缺少证书编号时应绘制占位")
	}
}

// TestBuildMissingImagePlaceholder 缺少图片地址时绘制带标签的占位框。
func TestBuildMissingImagePlaceholder(t *testing.T) {
	doc := document.New(document.Landscape)
	doc.Add(document.NewElement(document.KindLogo))
	doc.Add(document.NewElement(document.KindSignature))

	res := Build(doc, nil, BuildOptions{})
	if len(res.Nodes) != 2 {
		t.Fatalf("期望 2 个节点，实际 %d", len(res.Nodes))
	}
	for i, want := range []string{"Logo", "Signature"} {
		n := res.Nodes[i]
		if n.Kind != NodePlaceholder || n.Placeholder == nil || n.Placeholder.Label != want {
			t.Fatalf("节点 %d 占位错误: %+v", i, n)
		}
	}
	if res.Nodes[1].Frame.Width != 160 || res.Nodes[1].Frame.Height != 60 {
		t.Fatalf("签名占位尺寸错误: %+v", res.Nodes[1].Frame)
	}
}

// TestBuildShapes 圆形取半径为较小边一半，直线为只有上边框的零高度盒子。
func TestBuildShapes(t *testing.T) {
	doc := document.New(document.Landscape)
	circle := document.NewElement(document.KindShape).(*document.ShapeElement)
	circle.ShapeType = document.ShapeCircle
	circle.Width, circle.Height = 100, 60
	circle.FillColor = "#ff0000"
	doc.Add(circle)
	line := document.NewElement(document.KindShape).(*document.ShapeElement)
	line.ShapeType = document.ShapeLine
	line.StrokeWidth = 3
	doc.Add(line)

	res := Build(doc, nil, BuildOptions{Surface: Surface{Width: 500}})
	c := res.Nodes[0].Shape
	if c.Shape != ShapeEllipse || !near(c.Radius, 15) {
		t.Fatalf("圆形节点错误: %+v", c)
	}
	if c.FillColor == nil || *c.FillColor != (Color{R: 255}) {
		t.Fatalf("填充色错误: %+v", c.FillColor)
	}
	l := res.Nodes[1]
	if l.Shape.Shape != ShapeTopBorder || l.Frame.Height != 0 || !near(l.Shape.StrokeWidth, 1.5) {
		t.Fatalf("直线节点错误: %+v %+v", l.Frame, l.Shape)
	}
	if l.Shape.FillColor != nil {
		t.Fatalf("直线不应填充")
	}
}

// TestBuildSkipsUnknownAndRemoved 未知类型与已删除的元素不会出现在结果中。
func TestBuildSkipsUnknownAndRemoved(t *testing.T) {
	doc, err := document.Parse([]byte(`{"elements":[
		{"id":"a","type":"text","content":"A","x":10,"y":10},
		{"id":"b","type":"chart","x":20,"y":20},
		{"id":"c","type":"text","content":"C","x":30,"y":30}
	],"backgroundColor":"#ffffff","orientation":"landscape"}`))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	doc.Elements = append(doc.Elements, nil)
	if !doc.Remove("c") {
		t.Fatalf("删除失败")
	}

	res := Build(doc, nil, BuildOptions{})
	if len(res.Nodes) != 1 || res.Nodes[0].ElementID != "a" {
		t.Fatalf("期望只剩元素 a，实际 %+v", res.Nodes)
	}
	if _, ok := res.NodeFor("c"); ok {
		t.Fatalf("已删除元素仍被渲染")
	}
}

// TestBuildLogsUnresolvedTokens 未解析的占位符原样保留并记录日志。
func TestBuildLogsUnresolvedTokens(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	doc := document.New(document.Landscape)
	doc.Add(textAt(50, 50, "{{recipient_name}} expires {{expiry_date}} {{mystery}}"))

	res := Build(doc, binding.Context{binding.RecipientName: "Jane"}, BuildOptions{Logger: zap.New(core)})
	if got := res.Nodes[0].Text.Content; got != "Jane expires {{expiry_date}} {{mystery}}" {
		t.Fatalf("未解析占位符应保留原样: %q", got)
	}
	if len(res.Unresolved) != 2 || res.Unresolved[0] != "expiry_date" || res.Unresolved[1] != "mystery" {
		t.Fatalf("未解析列表错误: %v", res.Unresolved)
	}
	if logs.FilterMessage("存在未解析的占位符").Len() != 1 {
		t.Fatalf("未记录未解析占位符日志")
	}
}

// TestBuildWrapsWithinWidth 设置宽度的文本按宽度折行，Frame 高度覆盖全部行。
func TestBuildWrapsWithinWidth(t *testing.T) {
	doc := document.New(document.Landscape)
	el := textAt(50, 50, "one two three four five six seven eight")
	el.Width = 100
	doc.Add(el)

	res := Build(doc, nil, BuildOptions{Typesetter: &stubTypesetter{}})
	tb := res.Nodes[0].Text
	if len(tb.Lines) < 2 {
		t.Fatalf("期望折行，实际 %d 行", len(tb.Lines))
	}
	total := 0.0
	for _, ln := range tb.Lines {
		if ln.Width > 100+eps {
			t.Fatalf("行宽超出: %q %g", ln.Content, ln.Width)
		}
		total += ln.Height + ln.GapBefore
	}
	if res.Nodes[0].Frame.Height+eps < total {
		t.Fatalf("Frame 高度 %g 小于内容高度 %g", res.Nodes[0].Frame.Height, total)
	}
}
