package preset

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/ByLCY/diploma/document"
	"github.com/ByLCY/diploma/dsl"
)

//go:embed templates/*.cert
var templateFS embed.FS

// Preset 是一份内置模板：元信息加上可直接编辑的文档。
type Preset struct {
	Name        string
	Title       string
	Description string
	Tags        []string
	Document    *document.Document
}

var (
	loadOnce sync.Once
	library  map[string]*Preset
	loadErr  error
)

func loadLibrary() {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		loadErr = fmt.Errorf("读取内置模板失败: %w", err)
		return
	}
	library = make(map[string]*Preset, len(entries))
	for _, entry := range entries {
		name := path.Join("templates", entry.Name())
		data, err := templateFS.ReadFile(name)
		if err != nil {
			loadErr = fmt.Errorf("读取内置模板 %s 失败: %w", name, err)
			return
		}
		p, err := Parse(string(data))
		if err != nil {
			loadErr = fmt.Errorf("解析内置模板 %s 失败: %w", name, err)
			return
		}
		library[p.Name] = p
	}
}

// Names 返回全部内置模板名称（按字母序）。
func Names() []string {
	loadOnce.Do(loadLibrary)
	names := make([]string, 0, len(library))
	for name := range library {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load 返回内置模板的独立副本，调用方可以随意修改其文档。
func Load(name string) (*Preset, error) {
	loadOnce.Do(loadLibrary)
	if loadErr != nil {
		return nil, loadErr
	}
	p, ok := library[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("未知的内置模板：%s", name)
	}
	out := *p
	out.Tags = append([]string(nil), p.Tags...)
	out.Document = p.Document.Clone()
	return &out, nil
}

// Parse 将 preset DSL 文本转换为模板。
func Parse(src string) (*Preset, error) {
	ast, err := dsl.ParseString(src)
	if err != nil {
		return nil, err
	}
	return Build(ast)
}
