package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ByLCY/diploma/certificate"
	"github.com/ByLCY/diploma/export"
	"github.com/ByLCY/diploma/logger"
	"github.com/ByLCY/diploma/metrics"
	canvasrenderer "github.com/ByLCY/diploma/renderer/canvas"
	"github.com/ByLCY/diploma/storage"
)

// Backend 是服务端需要的上游能力：模板持久化、颁发与验证。
type Backend interface {
	certificate.TemplateSource
	certificate.Issuer
	certificate.Verifier
}

// Params 是 Server 的依赖。Storage 为空时批量导出直接返回 zip。
type Params struct {
	fx.In

	Backend       Backend
	Renderer      *canvasrenderer.Renderer
	ExportOptions export.Options
	Storage       storage.Client   `optional:"true"`
	Metrics       *metrics.Metrics `optional:"true"`
	Origin        string           `name:"origin"`
	Logger        *zap.Logger
}

// Server 是证书验证、预览与导出的 HTTP 适配层。
type Server struct {
	backend   Backend
	renderer  *canvasrenderer.Renderer
	exportOpt export.Options
	storage   storage.Client
	metrics   *metrics.Metrics
	origin    string
	log       *zap.Logger
}

// New 创建 Server。
func New(p Params) *Server {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts := p.ExportOptions
	if opts.Capturer == nil && p.Renderer != nil {
		opts.Capturer = p.Renderer
	}
	if opts.Typesetter == nil && p.Renderer != nil {
		opts.Typesetter = p.Renderer
	}
	if opts.Origin == "" {
		opts.Origin = p.Origin
	}
	if opts.Metrics == nil {
		opts.Metrics = p.Metrics
	}
	if opts.Logger == nil {
		opts.Logger = log
	}
	return &Server{
		backend:   p.Backend,
		renderer:  p.Renderer,
		exportOpt: opts,
		storage:   p.Storage,
		metrics:   p.Metrics,
		origin:    p.Origin,
		log:       log.Named("server"),
	}
}

// Engine 构造注册好全部路由的 gin 引擎。
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(s.log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Disposition", logger.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes 注册路由。
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.GET("/presets", s.listPresets)

	r.GET("/verify/:id", s.verify)
	r.GET("/verify/:id/image.png", s.verifyImage)
	r.GET("/verify/:id/certificate.pdf", s.verifyPDF)

	r.POST("/certificates", s.issue)
	r.POST("/preview", s.preview)
	r.POST("/export/batch", s.exportBatch)

	if local, ok := s.storage.(*storage.Local); ok {
		r.GET("/files/*object", s.serveFile(local))
	}
}
