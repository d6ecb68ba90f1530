package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ByLCY/diploma/assets"
	"github.com/ByLCY/diploma/binding"
	"github.com/ByLCY/diploma/certificate"
	"github.com/ByLCY/diploma/config"
	"github.com/ByLCY/diploma/document"
	"github.com/ByLCY/diploma/export"
	"github.com/ByLCY/diploma/layout"
	"github.com/ByLCY/diploma/logger"
	"github.com/ByLCY/diploma/preset"
	"github.com/ByLCY/diploma/renderer"
	canvasrenderer "github.com/ByLCY/diploma/renderer/canvas"
)

// toolchain 是命令行共用的加载器、渲染器与导出配置。
type toolchain struct {
	cfg      *config.Config
	log      *zap.Logger
	renderer *canvasrenderer.Renderer
	assets   *assets.Loader
}

func newToolchain(assetDir string) (*toolchain, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Server.Environment)
	if err != nil {
		return nil, err
	}
	if assetDir != "" {
		cfg.Assets.BaseDir = assetDir
	}
	loader := assets.NewLoader(assets.Options{
		BaseDir:       cfg.Assets.BaseDir,
		Timeout:       cfg.Assets.Timeout,
		TTL:           cfg.Assets.CacheTTL,
		MaxBytes:      cfg.Assets.MaxBytes,
		Concurrency:   cfg.Assets.Concurrency,
		AllowAbsolute: cfg.Assets.AllowAbsolute,
		Logger:        log,
	})
	r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		Images:      loader,
		Supersample: cfg.Export.Supersample,
		Creator:     cfg.Export.Creator,
		Logger:      log,
	})
	return &toolchain{cfg: cfg, log: log, renderer: r, assets: loader}, nil
}

func (tc *toolchain) exporter(format export.Format) (*export.Exporter, error) {
	return export.New(export.Options{
		Capturer:    tc.renderer,
		Assets:      tc.assets,
		Typesetter:  tc.renderer,
		Format:      format,
		Origin:      tc.cfg.Server.Origin,
		SettleDelay: tc.cfg.Export.SettleDelay,
		Creator:     tc.cfg.Export.Creator,
		Logger:      tc.log,
		OnProgress: func(p export.Progress) {
			tc.log.Debug("导出进度", zap.Stringer("progress", p))
		},
	})
}

// loadDocument 从 JSON 文件或内置模板名读取文档。
func loadDocument(input, presetName string) (*document.Document, error) {
	switch {
	case input != "" && presetName != "":
		return nil, fmt.Errorf("--in 与 --preset 只能指定一个")
	case presetName != "":
		p, err := preset.Load(presetName)
		if err != nil {
			return nil, err
		}
		return p.Document, nil
	case input != "":
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, fmt.Errorf("读取文档 %s 失败: %w", input, err)
		}
		if strings.EqualFold(filepath.Ext(input), ".cert") {
			p, err := preset.Parse(string(data))
			if err != nil {
				return nil, err
			}
			return p.Document, nil
		}
		return document.Parse(data)
	default:
		return nil, fmt.Errorf("需要 --in 或 --preset")
	}
}

// loadBindings 合并 JSON 文件与 --set key=value 形式的绑定值。
func loadBindings(path string, pairs []string) (binding.Context, error) {
	ctx := binding.Context{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取绑定数据失败: %w", err)
		}
		if err := json.Unmarshal(data, &ctx); err != nil {
			return nil, fmt.Errorf("解析绑定数据失败: %w", err)
		}
	}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("无效的绑定 %q，应为 key=value", pair)
		}
		ctx[strings.TrimSpace(k)] = v
	}
	return ctx, nil
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return nil
}

func newRenderCmd() *cobra.Command {
	var (
		input, presetName, dataPath, output, format, debugPath string
		pairs                                                  []string
		vector, outline                                        bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "将模板与绑定数据渲染为 PNG 或 PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(input, presetName)
			if err != nil {
				return err
			}
			ctx, err := loadBindings(dataPath, pairs)
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			baseDir := ""
			if input != "" {
				baseDir = filepath.Dir(input)
			}
			tc, err := newToolchain(baseDir)
			if err != nil {
				return err
			}
			defer tc.log.Sync()

			if debugPath != "" || outline || vector {
				if err := tc.describe(cmd.Context(), doc, ctx, debugPath, outline, vector, output); err != nil {
					return err
				}
				if vector {
					fmt.Printf("已生成矢量 PDF：%s\n", output)
					return nil
				}
			}

			exp, err := tc.exporter(f)
			if err != nil {
				return err
			}
			data, err := exp.Export(cmd.Context(), export.Item{Document: doc, Binding: ctx})
			if err != nil {
				return err
			}
			if err := writeOutput(output, data); err != nil {
				return err
			}
			fmt.Printf("已生成 %s：%s\n", strings.ToUpper(string(f)), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "in", "", "文档 JSON 或 .cert 模板路径")
	cmd.Flags().StringVar(&presetName, "preset", "", "内置模板名称")
	cmd.Flags().StringVar(&dataPath, "data", "", "绑定数据 JSON 文件")
	cmd.Flags().StringArrayVar(&pairs, "set", nil, "绑定值 key=value，可重复")
	cmd.Flags().StringVarP(&output, "out", "o", "output/certificate.png", "输出路径")
	cmd.Flags().StringVar(&format, "format", "png", "输出格式 png|pdf")
	cmd.Flags().StringVar(&debugPath, "debug", "", "布局调试 JSON 输出路径")
	cmd.Flags().BoolVar(&outline, "outline", false, "在标准输出打印布局概要")
	cmd.Flags().BoolVar(&vector, "vector", false, "按纸张毫米尺寸输出矢量 PDF")
	return cmd
}

// describe 输出调试信息；vector 为真时同时按纸张尺寸写出矢量 PDF。
func (tc *toolchain) describe(ctx context.Context, doc *document.Document, bindings binding.Context, debugPath string, outline, vector bool, output string) error {
	opts := layout.BuildOptions{
		Mode:       layout.ModeExport,
		Origin:     tc.cfg.Server.Origin,
		Typesetter: tc.renderer,
		Logger:     tc.log,
	}
	if vector {
		opts.Surface = layout.PageSurface(doc)
	}
	result := layout.Build(doc, bindings, opts)
	if srcs := result.ImageSources(); len(srcs) > 0 {
		if err := tc.assets.Preload(ctx, srcs); err != nil {
			tc.log.Warn("部分图片预取失败", zap.Error(err))
		}
	}
	if debugPath != "" {
		if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
			return fmt.Errorf("创建调试目录失败: %w", err)
		}
		if err := layout.WriteDebugJSON(result, debugPath); err != nil {
			return fmt.Errorf("输出调试 JSON 失败: %w", err)
		}
	}
	if outline {
		if err := layout.WriteOutline(os.Stdout, result); err != nil {
			return err
		}
	}
	if !vector {
		return nil
	}
	var r renderer.Renderer = tc.renderer
	pdfBytes, err := r.Render(result)
	if err != nil {
		return fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	return writeOutput(output, pdfBytes)
}

func newBatchCmd() *cobra.Command {
	var input, presetName, recordsPath, output, format string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "按证书记录批量导出并打包为 zip",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(recordsPath)
			if err != nil {
				return fmt.Errorf("读取证书记录失败: %w", err)
			}
			var records []*certificate.Record
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("解析证书记录失败: %w", err)
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			tc, err := newToolchain("")
			if err != nil {
				return err
			}
			defer tc.log.Sync()

			var items []export.Item
			if input != "" || presetName != "" {
				tpl, err := loadDocument(input, presetName)
				if err != nil {
					return err
				}
				items = export.TemplateItems(tpl, records)
			} else {
				for _, rec := range records {
					items = append(items, export.RecordItem(rec))
				}
			}

			exp, err := tc.exporter(f)
			if err != nil {
				return err
			}
			job, err := exp.Batch(cmd.Context(), items)
			if err != nil {
				return err
			}
			if err := writeOutput(output, job.Archive()); err != nil {
				return err
			}
			report := job.Report()
			fmt.Printf("任务 %s：共 %d 份，成功 %d，失败 %d，已写入 %s\n",
				report.JobID, report.Total, report.Succeeded, report.Failed, output)
			for _, fail := range report.Failures {
				fmt.Printf("  #%d %s: %s\n", fail.Index+1, fail.Name, fail.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "in", "", "统一使用的模板文档，缺省时使用各记录的版面快照")
	cmd.Flags().StringVar(&presetName, "preset", "", "统一使用的内置模板")
	cmd.Flags().StringVar(&recordsPath, "records", "", "证书记录 JSON 数组")
	cmd.Flags().StringVarP(&output, "out", "o", "output/certificates.zip", "zip 输出路径")
	cmd.Flags().StringVar(&format, "format", "pdf", "条目格式 png|pdf")
	_ = cmd.MarkFlagRequired("records")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "列出内置模板",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range preset.Names() {
				p, err := preset.Load(name)
				if err != nil {
					return err
				}
				fmt.Printf("%-10s %s  %s\n", p.Name, p.Title, p.Description)
				if names := certificate.Placeholders(p.Document); len(names) > 0 {
					fmt.Printf("%-10s 占位符：%s\n", "", strings.Join(names, ", "))
				}
			}
			return nil
		},
	}
}
