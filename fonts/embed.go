package fonts

import (
	"fmt"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
)

// 内置字体集合名称。
const (
	Sans = "sans"
	Mono = "mono"
)

var builtin = map[string][]byte{
	"sans/regular":     goregular.TTF,
	"sans/medium":      gomedium.TTF,
	"sans/bold":        gobold.TTF,
	"sans/italic":      goitalic.TTF,
	"sans/bold-italic": gobolditalic.TTF,
	"mono/regular":     gomono.TTF,
	"mono/bold":        gomonobold.TTF,
}

// Load 返回内置字体的字节数据，path 可写为 "embed:sans/bold" 或直接 "sans/bold"。
func Load(path string) ([]byte, error) {
	target := strings.ToLower(strings.TrimPrefix(path, "embed:"))
	data, ok := builtin[target]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败: 不存在", target)
	}
	return data, nil
}

// Collection 将模板中的 fontFamily（如 Helvetica、Georgia、Courier New）映射到内置字体集合。
// 无法识别的字体族使用无衬线字体。
func Collection(family string) string {
	f := strings.ToLower(family)
	switch {
	case strings.Contains(f, "mono"), strings.Contains(f, "courier"), strings.Contains(f, "consolas"):
		return Mono
	default:
		return Sans
	}
}

// Path 返回某个字体集合在给定粗细下的内置路径，mono 没有 medium 字重时回落到 regular。
func Path(collection, weight string) string {
	key := collection + "/" + weight
	if _, ok := builtin[key]; ok {
		return key
	}
	return collection + "/regular"
}
