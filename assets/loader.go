package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// 缺省参数。
const (
	DefaultTimeout     = 10 * time.Second
	DefaultTTL         = 10 * time.Minute
	DefaultMaxBytes    = 10 << 20
	defaultConcurrency = 4
)

var (
	// ErrUnsupportedSource 表示无法识别的图片地址形式。
	ErrUnsupportedSource = errors.New("不支持的图片地址")
	// ErrOutsideBaseDir 表示本地路径指向资源目录之外。
	ErrOutsideBaseDir = errors.New("图片路径超出资源目录")
)

// Options 配置 Loader。
type Options struct {
	BaseDir      string        // 相对路径的根目录；为空时拒绝相对路径
	HTTPClient   *http.Client  // 为空时使用带 Timeout 的默认客户端
	Timeout      time.Duration // 单个远程图片的下载超时
	TTL          time.Duration // 解码结果（包括失败）的缓存时间
	MaxBytes     int64         // 单张图片的最大字节数
	Concurrency  int           // Preload 的并发数
	CacheEntries int           // 缓存条目上限，缺省 256
	// AllowAbsolute 为 true 时允许绝对路径与 file:// 地址，否则只能读取 BaseDir 之内的文件
	AllowAbsolute bool
	Logger        *zap.Logger
}

type result struct {
	img image.Image
	err error
}

// Loader 按地址获取并解码图片：data: URI、http(s) 地址与本地文件。
// 解码结果按地址缓存，Preload 完成后渲染阶段不再发起网络请求。
type Loader struct {
	baseDir     string
	absolute    bool
	client      *http.Client
	timeout     time.Duration
	ttl         time.Duration
	maxBytes    int64
	concurrency int
	cache       *memo
	log         *zap.Logger
}

// NewLoader 创建图片加载器。
func NewLoader(opts Options) *Loader {
	l := &Loader{
		baseDir:     opts.BaseDir,
		absolute:    opts.AllowAbsolute,
		client:      opts.HTTPClient,
		timeout:     opts.Timeout,
		ttl:         opts.TTL,
		maxBytes:    opts.MaxBytes,
		concurrency: opts.Concurrency,
		cache:       newMemo(opts.CacheEntries),
		log:         opts.Logger,
	}
	if l.timeout <= 0 {
		l.timeout = DefaultTimeout
	}
	if l.ttl <= 0 {
		l.ttl = DefaultTTL
	}
	if l.maxBytes <= 0 {
		l.maxBytes = DefaultMaxBytes
	}
	if l.concurrency <= 0 {
		l.concurrency = defaultConcurrency
	}
	if l.client == nil {
		l.client = &http.Client{Timeout: l.timeout}
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	l.log = l.log.Named("assets")
	return l
}

// Image 返回 src 对应的已解码图片，失败结果同样会被缓存直到过期。
func (l *Loader) Image(ctx context.Context, src string) (image.Image, error) {
	src = strings.TrimSpace(src)
	if r, ok := l.cache.get(src); ok {
		return r.img, r.err
	}
	data, err := l.Fetch(ctx, src)
	if err != nil {
		if ctx.Err() == nil {
			l.cache.put(src, result{err: err}, l.ttl)
		}
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		err = fmt.Errorf("解码图片 %s 失败: %w", shorten(src), err)
	}
	l.cache.put(src, result{img: img, err: err}, l.ttl)
	return img, err
}

// Preload 并发获取并解码全部图片，返回即表示资源已就绪（成功或已确认失败）。
// 单张图片失败只记录日志并汇总到返回的错误中；ctx 取消时返回 ctx 的错误。
func (l *Loader) Preload(ctx context.Context, srcs []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	failures := make([]error, len(srcs))
	for i, src := range srcs {
		g.Go(func() error {
			if _, err := l.Image(gctx, src); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.log.Warn("预加载图片失败", zap.String("src", shorten(src)), zap.Error(err))
				failures[i] = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(failures...)
}

// Fetch 返回 src 的原始字节。
func (l *Loader) Fetch(ctx context.Context, src string) ([]byte, error) {
	switch {
	case src == "":
		return nil, fmt.Errorf("%w: 地址为空", ErrUnsupportedSource)
	case strings.HasPrefix(src, "data:"):
		return decodeDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetchHTTP(ctx, src)
	case strings.HasPrefix(src, "file://"):
		if !l.absolute {
			return nil, fmt.Errorf("%w: 不允许 file:// 地址 %s", ErrOutsideBaseDir, src)
		}
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("解析文件地址 %s 失败: %w", src, err)
		}
		return l.readFile(u.Path)
	case strings.Contains(src, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, shorten(src))
	default:
		return l.readFile(src)
	}
}

func (l *Loader) fetchHTTP(ctx context.Context, src string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载图片 %s 失败: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载图片 %s 失败: HTTP %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("图片 %s 超过 %d 字节", src, l.maxBytes)
	}
	return data, nil
}

// readFile 读取本地图片。相对路径经 os.Root 解析，不能借助 .. 或符号链接离开 BaseDir。
func (l *Loader) readFile(name string) ([]byte, error) {
	if filepath.IsAbs(name) {
		if !l.absolute {
			return nil, fmt.Errorf("%w: 不允许绝对路径 %s", ErrOutsideBaseDir, name)
		}
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("读取图片 %s 失败: %w", name, err)
		}
		defer f.Close()
		return l.readLimited(name, f)
	}
	if l.baseDir == "" {
		return nil, fmt.Errorf("未指定资源目录时不允许直接使用相对路径：%s", name)
	}
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideBaseDir, name)
	}
	root, err := os.OpenRoot(l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("打开资源目录 %s 失败: %w", l.baseDir, err)
	}
	defer root.Close()
	f, err := root.Open(local)
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", name, err)
	}
	defer f.Close()
	return l.readLimited(name, f)
}

func (l *Loader) readLimited(name string, f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("读取图片 %s 失败: 是一个目录", name)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("图片 %s 超过 %d 字节", name, l.maxBytes)
	}
	data, err := io.ReadAll(io.LimitReader(f, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", name, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("图片 %s 超过 %d 字节", name, l.maxBytes)
	}
	return data, nil
}

// decodeDataURI 解析 data:[<mediatype>][;base64],<data>。
func decodeDataURI(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: data URI 缺少逗号", ErrUnsupportedSource)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("解码 data URI 失败: %w", err)
		}
		return data, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("解码 data URI 失败: %w", err)
	}
	return []byte(data), nil
}

// DataURI 将字节编码为 base64 data URI。
func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// shorten 避免在日志和错误中输出完整的 data URI。
func shorten(src string) string {
	if len(src) > 96 {
		return src[:96] + "..."
	}
	return src
}
