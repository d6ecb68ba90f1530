// Package dsl 解析内置证书模板的描述语言：
//
//	preset classic v1 {
//	  meta { title: "Classic" }
//	  canvas landscape { background: #fffdf5  page: A4 }
//	  elements {
//	    text x 50 y 28 size 44 weight bold { "Certificate of Completion" }
//	    qrcode x 84 y 82 size 96
//	  }
//	}
package dsl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	presetLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})\b`},
		{Name: "Number", Pattern: `-?(?:\d+\.\d+|\d+)(?:px|pt|mm|%)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Punct", Pattern: `[:;,{}\[\]]`},
	})

	presetParser = participle.MustBuild[Document](
		participle.Lexer(presetLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment"),
		participle.UseLookahead(2),
	)
)

// Document 是一个模板文件的根节点。
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'preset' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Section 是 meta、canvas 或 elements 段落之一。
type Section struct {
	Meta     *MetaSection     `parser:"  @@"`
	Canvas   *CanvasSection   `parser:"| @@"`
	Elements *ElementsSection `parser:"| @@"`
}

// Kind 返回段落名称。
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Meta != nil:
		return "meta"
	case s.Canvas != nil:
		return "canvas"
	case s.Elements != nil:
		return "elements"
	default:
		return "unknown"
	}
}

type MetaSection struct {
	Block *Block `parser:"'meta' @@"`
}

// CanvasSection 给出画布方向，块内是背景与纸张设置。
type CanvasSection struct {
	Orientation string `parser:"'canvas' @Ident"`
	Block       *Block `parser:"@@"`
}

// ElementsSection 按绘制顺序列出元素命令。
type ElementsSection struct {
	Block *Block `parser:"'elements' @@"`
}

// Block 是花括号包围的语句列表，语句以换行或分号分隔。
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

type Statement struct {
	Assignment *Assignment    `parser:"  @@"`
	Command    *Command       `parser:"| @@"`
	Text       *StringLiteral `parser:"| @String"`
}

// Assignment 形如 key: value。
type Assignment struct {
	Key   string `parser:"@Ident ':'"`
	Value *Value `parser:"@@"`
}

// Command 是一条元素命令：名称、参数，以及可选的文本块。
type Command struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"@Ident"`
	Args  []*Arg         `parser:"@@*"`
	Block *Block         `parser:"@@?"`
}

// Arg 是命令的单个参数。
type Arg struct {
	Ident  *string        `parser:"  @Ident"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	String *StringLiteral `parser:"| @String"`
}

// Text 返回参数的字面值，字符串已去掉引号。
func (a *Arg) Text() string {
	switch {
	case a == nil:
		return ""
	case a.Ident != nil:
		return *a.Ident
	case a.Number != nil:
		return *a.Number
	case a.Color != nil:
		return *a.Color
	case a.String != nil:
		return string(*a.String)
	default:
		return ""
	}
}

// IsIdent 判断参数是否为裸标识符。
func (a *Arg) IsIdent() bool { return a != nil && a.Ident != nil }

// Value 是赋值语句右侧的值。
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Ident  *string        `parser:"| @Ident"`
	Array  []*Value       `parser:"| '[' ( Newline | ',' )* ( @@ ( Newline | ',' )* )* ']'"`
}

// Text 返回标量值的字面文本，数组返回空串。
func (v *Value) Text() string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Ident != nil:
		return *v.Ident
	default:
		return ""
	}
}

// StringLiteral 在捕获时去掉引号并处理转义。
type StringLiteral string

func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("字符串缺少内容")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse 从 io.Reader 解析模板。
func Parse(r io.Reader) (*Document, error) {
	return presetParser.Parse("", r)
}

// ParseString 从字符串解析模板。
func ParseString(input string) (*Document, error) {
	return presetParser.ParseString("", input)
}
