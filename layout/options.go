package layout

import "go.uber.org/zap"

// Mode 标识渲染发生的场景，仅影响二维码等与场景相关的绘制方式。
type Mode string

const (
	ModeEditor       Mode = "editor"
	ModePreview      Mode = "preview"
	ModeExport       Mode = "export"
	ModeVerification Mode = "verification"
)

// liveQRCode 判断该场景下二维码是否编码真实验证地址。
func (m Mode) liveQRCode() bool {
	return m == ModeExport || m == ModeVerification
}

// BuildOptions 配置渲染阶段所需的依赖。Surface 为零值时使用文档的规范画布尺寸。
type BuildOptions struct {
	Surface    Surface
	Mode       Mode
	Origin     string // 验证地址前缀，例如 https://certs.example.com
	Typesetter Typesetter
	Logger     *zap.Logger
}

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行。width<=0 表示不折行。
type Typesetter interface {
	LayoutLines(content string, width float64, font FontSpec, fontSize, lineHeight float64) ([]TextLine, error)
}
