package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ByLCY/diploma/assets"
	"github.com/ByLCY/diploma/config"
	"github.com/ByLCY/diploma/export"
	"github.com/ByLCY/diploma/logger"
	"github.com/ByLCY/diploma/metrics"
	canvasrenderer "github.com/ByLCY/diploma/renderer/canvas"
	"github.com/ByLCY/diploma/storage"
	"github.com/ByLCY/diploma/store"
)

// Module 组装 HTTP 服务所需的全部依赖，调用方需提供 *config.Config。
var Module = fx.Module("server",
	fx.Provide(
		NewLogger,
		NewMetrics,
		NewStorage,
		NewBackend,
		NewAssets,
		NewRenderer,
		NewExportOptions,
		fx.Annotate(func(cfg *config.Config) string { return cfg.Server.Origin }, fx.ResultTags(`name:"origin"`)),
		New,
	),
	fx.Invoke(RunHTTP),
)

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Server.Environment)
}

func NewMetrics(cfg *config.Config) *metrics.Metrics {
	return metrics.New(nil, metrics.Config{ServiceName: "diploma", Environment: cfg.Server.Environment})
}

// NewStorage 按 STORAGE_TYPE 选择 GCS 或本地存储。
func NewStorage(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (storage.Client, error) {
	var (
		client storage.Client
		err    error
	)
	switch cfg.Storage.Type {
	case "gcs":
		if cfg.GCS.BucketName == "" {
			return nil, errors.New("STORAGE_TYPE=gcs 时必须设置 GCS_BUCKET_NAME")
		}
		client, err = storage.NewGCS(context.Background(), cfg.GCS.BucketName, cfg.GCS.CredentialsPath)
	case "local", "":
		client, err = storage.NewLocal(cfg.Storage.LocalPath, cfg.Storage.LocalURL, cfg.Storage.SecretKey)
	default:
		return nil, fmt.Errorf("未知的存储类型: %s", cfg.Storage.Type)
	}
	if err != nil {
		return nil, err
	}
	log.Info("存储已初始化", zap.String("type", cfg.Storage.Type))
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})
	return client, nil
}

// NewBackend 配置了数据库时使用 MySQL，否则退回内存存储。
func NewBackend(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (Backend, error) {
	if !cfg.Database.Enabled() {
		log.Warn("未配置数据库，证书数据仅保存在内存中")
		return store.NewMemory(), nil
	}
	db, err := store.OpenMySQL(cfg.Database.DSN(), log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return closeDB(db) }})
	return store.NewGorm(db), nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func NewAssets(cfg *config.Config, log *zap.Logger) *assets.Loader {
	return assets.NewLoader(assets.Options{
		BaseDir:       cfg.Assets.BaseDir,
		Timeout:       cfg.Assets.Timeout,
		TTL:           cfg.Assets.CacheTTL,
		MaxBytes:      cfg.Assets.MaxBytes,
		Concurrency:   cfg.Assets.Concurrency,
		AllowAbsolute: cfg.Assets.AllowAbsolute,
		Logger:        log,
	})
}

func NewRenderer(cfg *config.Config, loader *assets.Loader, log *zap.Logger) *canvasrenderer.Renderer {
	return canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		Images:      loader,
		Supersample: cfg.Export.Supersample,
		Creator:     cfg.Export.Creator,
		Logger:      log,
	})
}

// ExportParams 是导出配置的依赖，Node 缺省时由 Exporter 自行创建。
type ExportParams struct {
	fx.In

	Config   *config.Config
	Renderer *canvasrenderer.Renderer
	Assets   *assets.Loader
	Metrics  *metrics.Metrics
	Node     *snowflake.Node `optional:"true"`
	Logger   *zap.Logger
}

func NewExportOptions(p ExportParams) (export.Options, error) {
	format, err := export.ParseFormat(p.Config.Export.Format)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		Capturer:    p.Renderer,
		Assets:      p.Assets,
		Typesetter:  p.Renderer,
		Format:      format,
		Origin:      p.Config.Server.Origin,
		SettleDelay: p.Config.Export.SettleDelay,
		Creator:     p.Config.Export.Creator,
		Node:        p.Node,
		Metrics:     p.Metrics,
		Logger:      p.Logger,
	}, nil
}

// RunHTTP 在 fx 生命周期内启动与关闭 HTTP 服务。
func RunHTTP(lc fx.Lifecycle, cfg *config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%s", cfg.Server.Port),
		Handler:      s.Engine(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("HTTP 服务启动",
					zap.String("addr", srv.Addr),
					zap.String("environment", cfg.Server.Environment),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP 服务异常退出", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("HTTP 服务关闭")
			return srv.Shutdown(ctx)
		},
	})
}
