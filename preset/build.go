package preset

import (
	"fmt"
	"strings"

	"github.com/ByLCY/diploma/document"
	"github.com/ByLCY/diploma/dsl"
	"github.com/ByLCY/diploma/layout"
)

// 元素命令支持的属性名，其余参数按位置参数处理（例如 shape 的形状类型）。
var attrKeys = map[string]struct{}{
	"x": {}, "y": {}, "w": {}, "h": {}, "width": {}, "height": {}, "size": {},
	"weight": {}, "family": {}, "color": {}, "align": {}, "decoration": {}, "padding": {},
	"opacity": {}, "fill": {}, "stroke": {}, "stroke-width": {}, "radius": {}, "src": {},
}

// Build 根据 DSL AST 生成模板。
func Build(ast *dsl.Document) (*Preset, error) {
	if ast == nil {
		return nil, fmt.Errorf("文档为空")
	}
	p := &Preset{Name: strings.ToLower(ast.Name)}
	var canvas *dsl.CanvasSection
	var elements *dsl.ElementsSection
	for _, sec := range ast.Sections {
		switch {
		case sec.Meta != nil:
			collectMeta(p, sec.Meta)
		case sec.Canvas != nil:
			canvas = sec.Canvas
		case sec.Elements != nil:
			elements = sec.Elements
		}
	}
	if canvas == nil {
		return nil, fmt.Errorf("模板 %s 缺少 canvas 段落", ast.Name)
	}

	doc, err := buildCanvas(canvas)
	if err != nil {
		return nil, err
	}
	if elements != nil && elements.Block != nil {
		for _, st := range elements.Block.Statements {
			if st.Command == nil {
				continue
			}
			el, err := buildElement(st.Command)
			if err != nil {
				return nil, fmt.Errorf("第 %d 行: %w", st.Command.Pos.Line, err)
			}
			doc.Add(el)
		}
	}
	p.Document = doc
	return p, nil
}

func collectMeta(p *Preset, meta *dsl.MetaSection) {
	if meta.Block == nil {
		return
	}
	for _, st := range meta.Block.Statements {
		if st.Assignment == nil || st.Assignment.Value == nil {
			continue
		}
		v := st.Assignment.Value
		switch st.Assignment.Key {
		case "title":
			p.Title = v.Text()
		case "description":
			p.Description = v.Text()
		case "tags":
			for _, item := range v.Array {
				p.Tags = append(p.Tags, item.Text())
			}
		}
	}
}

func buildCanvas(sec *dsl.CanvasSection) (*document.Document, error) {
	var o document.Orientation
	switch sec.Orientation {
	case "landscape":
		o = document.Landscape
	case "portrait":
		o = document.Portrait
	default:
		return nil, fmt.Errorf("未知的画布方向：%s", sec.Orientation)
	}
	doc := document.New(o)
	if sec.Block == nil {
		return doc, nil
	}
	for _, st := range sec.Block.Statements {
		if st.Assignment == nil || st.Assignment.Value == nil {
			continue
		}
		v := st.Assignment.Value.Text()
		switch st.Assignment.Key {
		case "background":
			doc.BackgroundColor = v
		case "background-image":
			doc.BackgroundImage = v
		case "page":
			size, err := layout.PaperSize(v, o)
			if err != nil {
				return nil, err
			}
			doc.PageSize = size
		}
	}
	return doc, nil
}

func buildElement(cmd *dsl.Command) (document.Element, error) {
	positional, attrs := parseArgs(cmd.Args)
	var el document.Element
	switch cmd.Name {
	case "text":
		text := document.NewElement(document.KindText).(*document.TextElement)
		text.Content = blockText(cmd.Block)
		setString(&text.FontWeight, attrs, "weight")
		setString(&text.FontFamily, attrs, "family")
		setString(&text.Color, attrs, "color")
		setString(&text.Align, attrs, "align")
		setString(&text.TextDecoration, attrs, "decoration")
		setLength(&text.FontSize, attrs, "size")
		setLength(&text.Padding, attrs, "padding")
		el = text
	case "logo", "signature":
		img := document.NewElement(document.Kind(cmd.Name)).(*document.ImageElement)
		setString(&img.ImageURL, attrs, "src")
		el = img
	case "shape", "line":
		shape := document.NewElement(document.KindShape).(*document.ShapeElement)
		kind := "line"
		if cmd.Name == "shape" {
			kind = "rect"
			if len(positional) > 0 {
				kind = positional[0]
			}
		}
		switch kind {
		case "rect", "rectangle":
			shape.ShapeType = document.ShapeRectangle
		case "circle", "ellipse":
			shape.ShapeType = document.ShapeCircle
		case "line":
			shape.ShapeType = document.ShapeLine
		default:
			return nil, fmt.Errorf("未知的形状：%s", kind)
		}
		setString(&shape.FillColor, attrs, "fill")
		setString(&shape.StrokeColor, attrs, "stroke")
		setLength(&shape.StrokeWidth, attrs, "stroke-width")
		setLength(&shape.BorderRadius, attrs, "radius")
		el = shape
	case "qrcode":
		qr := document.NewElement(document.KindQRCode)
		if v, ok := length(attrs, "size"); ok {
			qr.Base().Width, qr.Base().Height = v, v
		}
		el = qr
	default:
		return nil, fmt.Errorf("未知的元素命令：%s", cmd.Name)
	}

	base := el.Base()
	setLength(&base.X, attrs, "x")
	setLength(&base.Y, attrs, "y")
	setLength(&base.Width, attrs, "w")
	setLength(&base.Width, attrs, "width")
	setLength(&base.Height, attrs, "h")
	setLength(&base.Height, attrs, "height")
	setLength(&base.Opacity, attrs, "opacity")
	return el, nil
}

// parseArgs 将 "key value" 形式的参数收集为属性，其余参数按位置返回。
func parseArgs(args []*dsl.Arg) ([]string, map[string]string) {
	var positional []string
	attrs := map[string]string{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if _, ok := attrKeys[arg.Text()]; ok && arg.IsIdent() && i+1 < len(args) {
			attrs[arg.Text()] = args[i+1].Text()
			i++
			continue
		}
		positional = append(positional, arg.Text())
	}
	return positional, attrs
}

func blockText(block *dsl.Block) string {
	if block == nil {
		return ""
	}
	var parts []string
	for _, st := range block.Statements {
		if st.Text != nil {
			parts = append(parts, string(*st.Text))
		}
	}
	return strings.Join(parts, "\n")
}

func setString(dst *string, attrs map[string]string, key string) {
	if v, ok := attrs[key]; ok {
		*dst = v
	}
}

func setLength(dst *float64, attrs map[string]string, key string) {
	if v, ok := length(attrs, key); ok {
		*dst = v
	}
}

func length(attrs map[string]string, key string) (float64, bool) {
	raw, ok := attrs[key]
	if !ok {
		return 0, false
	}
	l, ok := layout.ParseLength(raw)
	if !ok {
		return 0, false
	}
	return l.ToPX(), true
}
