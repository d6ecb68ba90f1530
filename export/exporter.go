package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/ByLCY/diploma/binding"
	"github.com/ByLCY/diploma/certificate"
	"github.com/ByLCY/diploma/document"
	"github.com/ByLCY/diploma/layout"
	"github.com/ByLCY/diploma/metrics"
	"github.com/ByLCY/diploma/renderer"
	canvasrenderer "github.com/ByLCY/diploma/renderer/canvas"
)

// ErrCaptureUnavailable 表示栅格化能力本身不可用（而不是某一张证书渲染失败），
// 整个任务失败，调用方可以稍后重试。
var ErrCaptureUnavailable = errors.New("export: 截图能力不可用")

// Format 是单个证书的输出格式。
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ParseFormat 解析输出格式，空串视为 PNG。
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("不支持的导出格式：%s", s)
	}
}

// Preloader 在截图前预取并解码图片，返回即表示资源就绪。
type Preloader interface {
	Preload(ctx context.Context, srcs []string) error
}

// Item 是一个待导出的证书：版面加上绑定。
type Item struct {
	Name     string
	Document *document.Document
	Binding  binding.Context
	Err      error // 非空时条目不渲染，直接记为失败
}

// RecordItem 使用证书自身的版面快照；快照缺失或无法解析时使用缺省版面。
func RecordItem(rec *certificate.Record) Item {
	if rec == nil {
		return Item{Err: certificate.ErrNilRecord}
	}
	doc, err := rec.Document()
	if err != nil {
		doc = certificate.FallbackDocument(rec)
	}
	return Item{Name: rec.CertificateID, Document: doc, Binding: rec.Binding()}
}

// TemplateItems 用同一份模板为每条记录生成导出条目。
func TemplateItems(tpl *document.Document, records []*certificate.Record) []Item {
	items := make([]Item, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			items = append(items, Item{Err: certificate.ErrNilRecord})
			continue
		}
		items = append(items, Item{Name: rec.CertificateID, Document: tpl, Binding: rec.Binding()})
	}
	return items
}

// Options 配置 Exporter。
type Options struct {
	Capturer    renderer.Capturer
	Assets      Preloader
	Typesetter  layout.Typesetter
	Format      Format
	Origin      string        // 二维码验证地址前缀
	SettleDelay time.Duration // 资源就绪后额外等待的时间，缺省为 0
	Creator     string        // PDF 元信息
	Node        *snowflake.Node
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	OnProgress  func(Progress)
}

// Exporter 将证书版面栅格化为 PNG 或整页 PDF，并支持顺序批量导出。
type Exporter struct {
	capturer    renderer.Capturer
	assets      Preloader
	typesetter  layout.Typesetter
	format      Format
	origin      string
	settleDelay time.Duration
	creator     string
	node        *snowflake.Node
	metrics     *metrics.Metrics
	log         *zap.Logger
	onProgress  func(Progress)
}

// New 创建 Exporter。
func New(opts Options) (*Exporter, error) {
	node := opts.Node
	if node == nil {
		var err error
		if node, err = snowflake.NewNode(1); err != nil {
			return nil, fmt.Errorf("创建任务编号生成器失败: %w", err)
		}
	}
	format := opts.Format
	if format == "" {
		format = FormatPNG
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{
		capturer:    opts.Capturer,
		assets:      opts.Assets,
		typesetter:  opts.Typesetter,
		format:      format,
		origin:      opts.Origin,
		settleDelay: opts.SettleDelay,
		creator:     opts.Creator,
		node:        node,
		metrics:     opts.Metrics,
		log:         log.Named("export"),
		onProgress:  opts.OnProgress,
	}, nil
}

// Format 返回输出格式。
func (e *Exporter) Format() Format { return e.format }

// Export 导出单个证书。
func (e *Exporter) Export(ctx context.Context, item Item) ([]byte, error) {
	if e.capturer == nil {
		return nil, ErrCaptureUnavailable
	}
	return e.safeExport(ctx, item)
}

// Batch 按输入顺序逐个导出并打包为 zip。单个条目的失败只记录在报告中；
// 只有截图能力不可用、打包失败或 ctx 被取消时任务才会失败。
// 无论成功与否都会返回 Job，失败时 error 与 Job.Err 相同。
func (e *Exporter) Batch(ctx context.Context, items []Item) (*Job, error) {
	job := newJob(e.node.Generate().String(), len(items), e.onProgress)
	log := e.log.With(zap.String("job_id", job.ID))
	log.Info("开始批量导出", zap.Int("total", len(items)), zap.String("format", string(e.format)))

	if e.capturer == nil {
		e.metrics.IncExportJob(string(StateFailed))
		return job, job.fail(ErrCaptureUnavailable)
	}

	archive := newArchive()
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			log.Warn("批量导出已取消", zap.Int("index", i), zap.Error(err))
			e.metrics.IncExportJob(string(StateFailed))
			return job, job.fail(err)
		}
		job.transition(StateRendering, i)
		data, err := e.safeExport(ctx, item)
		switch {
		case errors.Is(err, ErrCaptureUnavailable):
			log.Error("截图能力不可用，终止批量导出", zap.Int("index", i), zap.Error(err))
			e.metrics.IncExportJob(string(StateFailed))
			return job, job.fail(err)
		case ctx.Err() != nil:
			e.metrics.IncExportJob(string(StateFailed))
			return job, job.fail(ctx.Err())
		case err == nil:
			err = archive.add(i, item.Name, e.format, data)
			if err != nil {
				e.metrics.IncExportJob(string(StateFailed))
				return job, job.fail(fmt.Errorf("写入压缩包失败: %w", err))
			}
			e.metrics.IncExportItem("succeeded")
		default:
			log.Warn("证书导出失败，跳过", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
			e.metrics.IncExportItem("failed")
		}
		job.record(i, item.Name, err)
	}

	job.transition(StateArchiving, len(items))
	data, err := archive.close()
	if err != nil {
		e.metrics.IncExportJob(string(StateFailed))
		return job, job.fail(fmt.Errorf("生成压缩包失败: %w", err))
	}
	job.finish(data)
	e.metrics.IncExportJob(string(StateDone))
	report := job.Report()
	log.Info("批量导出完成", zap.Int("succeeded", report.Succeeded), zap.Int("failed", report.Failed))
	return job, nil
}

// safeExport 拒绝预先标记为无效的条目，并把截图或编码过程中的 panic
// 转成该条目的错误，避免一张证书中断整个批次。
func (e *Exporter) safeExport(ctx context.Context, item Item) (data []byte, err error) {
	if item.Err != nil {
		return nil, item.Err
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("导出证书时发生异常", zap.String("name", item.Name), zap.Any("panic", r))
			data, err = nil, fmt.Errorf("导出证书时发生异常: %v", r)
		}
	}()
	return e.exportOne(ctx, item)
}

// exportOne 渲染、等待资源就绪、截图并编码一个条目。
func (e *Exporter) exportOne(ctx context.Context, item Item) ([]byte, error) {
	start := time.Now()
	doc := item.Document
	if doc == nil {
		doc = document.New(document.Landscape)
	}
	result := layout.Build(doc, item.Binding, layout.BuildOptions{
		Mode:       layout.ModeExport,
		Origin:     e.origin,
		Typesetter: e.typesetter,
		Logger:     e.log,
	})

	if err := e.awaitAssets(ctx, result); err != nil {
		return nil, err
	}

	img, err := e.capturer.Capture(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("截图失败: %w", err)
	}
	data, err := e.encode(img, doc)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveRender(string(e.format), time.Since(start))
	return data, nil
}

// awaitAssets 等待结果引用的全部图片预取完成，再按配置额外等待一段时间。
// 单张图片失败不阻止截图，绘制时会以占位框代替。
func (e *Exporter) awaitAssets(ctx context.Context, result *layout.Result) error {
	if e.assets != nil {
		if srcs := result.ImageSources(); len(srcs) > 0 {
			err := e.assets.Preload(ctx, srcs)
			e.metrics.IncAssetPrefetch(err == nil)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				e.log.Warn("部分图片预取失败", zap.Error(err))
			}
		}
	}
	if e.settleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(e.settleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Exporter) encode(img image.Image, doc *document.Document) ([]byte, error) {
	switch e.format {
	case FormatPDF:
		w, h := doc.Page().Millimeters()
		if doc.Orientation.Normalize() == document.Landscape && w < h || doc.Orientation.Normalize() == document.Portrait && w > h {
			w, h = h, w
		}
		return canvasrenderer.EmbedPDF(img, w, h, e.creator)
	default:
		return canvasrenderer.EncodePNG(img)
	}
}
