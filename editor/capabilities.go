package editor

import "github.com/ByLCY/diploma/document"

// Capabilities 描述编辑器对外开放的工具集合，由调用方按套餐等规则构造后传入。
// 文档与渲染核心不感知这些限制。
type Capabilities struct {
	Elements        map[document.Kind]bool // 可添加的元素类型
	BackgroundImage bool                   // 允许设置背景图
	ImageUpload     bool                   // 允许上传图片
	Orientation     bool                   // 允许切换画布方向
}

// FullCapabilities 开放全部工具。
func FullCapabilities() Capabilities {
	kinds := make(map[document.Kind]bool, len(document.Kinds))
	for _, k := range document.Kinds {
		kinds[k] = true
	}
	return Capabilities{Elements: kinds, BackgroundImage: true, ImageUpload: true, Orientation: true}
}

// BasicCapabilities 只开放文本、形状与徽标，不允许上传图片与二维码。
func BasicCapabilities() Capabilities {
	return Capabilities{
		Elements: map[document.Kind]bool{
			document.KindText:  true,
			document.KindShape: true,
			document.KindLogo:  true,
		},
		Orientation: true,
	}
}

// Allows 判断是否可以添加 kind 类型的元素。
func (c Capabilities) Allows(kind document.Kind) bool {
	return c.Elements[kind]
}

// Kinds 按工具栏顺序返回可添加的元素类型。
func (c Capabilities) Kinds() []document.Kind {
	var out []document.Kind
	for _, k := range document.Kinds {
		if c.Allows(k) {
			out = append(out, k)
		}
	}
	return out
}
