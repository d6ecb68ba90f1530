package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ByLCY/diploma/binding"
	"github.com/ByLCY/diploma/certificate"
	"github.com/ByLCY/diploma/document"
	"github.com/ByLCY/diploma/export"
	"github.com/ByLCY/diploma/layout"
	"github.com/ByLCY/diploma/preset"
	"github.com/ByLCY/diploma/storage"
)

const (
	defaultPreviewWidth = 400.0
	maxSurfaceWidth     = 4000.0
	archiveURLExpiry    = 24 * time.Hour
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /presets
func (s *Server) listPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": preset.Names()})
}

// GET /verify/:id?width=1000
func (s *Server) verify(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	width, err := surfaceWidth(c.Query("width"), document.CanonicalWidth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result := certificate.BuildRecord(rec, layout.BuildOptions{
		Surface:    layout.Surface{Width: width},
		Mode:       layout.ModeVerification,
		Origin:     s.origin,
		Typesetter: s.renderer,
		Logger:     s.log,
	})
	rec.RenderData = nil
	c.JSON(http.StatusOK, gin.H{
		"certificate":     rec,
		"verificationUrl": rec.VerificationURL(s.origin),
		"layout":          result,
	})
}

// GET /verify/:id/image.png
func (s *Server) verifyImage(c *gin.Context) {
	s.verifyFile(c, export.FormatPNG, "image/png")
}

// GET /verify/:id/certificate.pdf
func (s *Server) verifyPDF(c *gin.Context) {
	s.verifyFile(c, export.FormatPDF, "application/pdf")
}

func (s *Server) verifyFile(c *gin.Context, format export.Format, contentType string) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	exp, err := s.exporter(format)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	data, err := exp.Export(c.Request.Context(), export.RecordItem(rec))
	if err != nil {
		s.log.Error("导出证书失败", zap.String("certificate_id", rec.CertificateID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.CertificateID+"."+string(format)))
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) lookup(c *gin.Context) (*certificate.Record, bool) {
	rec, err := s.backend.Verify(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, certificate.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "证书不存在"})
		return nil, false
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return rec, true
}

// POST /certificates
func (s *Server) issue(c *gin.Context) {
	var req certificate.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.backend.Issue(c.Request.Context(), req)
	switch {
	case errors.Is(err, certificate.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"certificate":     rec,
		"verificationUrl": rec.VerificationURL(s.origin),
	})
}

type previewRequest struct {
	Document json.RawMessage `json:"document"`
	Bindings binding.Context `json:"bindings"`
}

// POST /preview?width=400
func (s *Server) preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := document.Parse(req.Document)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	width, err := surfaceWidth(c.Query("width"), defaultPreviewWidth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start := time.Now()
	result := layout.Build(doc, req.Bindings, layout.BuildOptions{
		Surface:    layout.Surface{Width: width},
		Mode:       layout.ModePreview,
		Origin:     s.origin,
		Typesetter: s.renderer,
		Logger:     s.log,
	})
	data, err := s.renderer.RenderPNG(c.Request.Context(), result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.metrics.ObserveRender("png", time.Since(start))
	c.Header("X-Preview-Placeholders", strings.Join(certificate.Placeholders(doc), ","))
	c.Data(http.StatusOK, "image/png", data)
}

type batchRequest struct {
	TemplateID string                `json:"templateId"`
	Document   json.RawMessage       `json:"document"`
	Format     string                `json:"format"`
	Records    []*certificate.Record `json:"records" binding:"required"`
}

// POST /export/batch
// 未提供模板时每条记录使用自身的版面快照。
func (s *Server) exportBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	var tpl *document.Document
	switch {
	case len(req.Document) > 0:
		if tpl, err = document.Parse(req.Document); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	case req.TemplateID != "":
		if tpl, err = certificate.LoadTemplate(ctx, s.backend, req.TemplateID); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, certificate.ErrNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
	}
	var items []export.Item
	if tpl != nil {
		items = export.TemplateItems(tpl, req.Records)
	} else {
		for _, rec := range req.Records {
			items = append(items, export.RecordItem(rec))
		}
	}

	exp, err := s.exporter(format)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	job, err := exp.Batch(ctx, items)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "report": job.Report()})
		return
	}

	report := job.Report()
	if s.storage == nil {
		encoded, _ := json.Marshal(report)
		c.Header("X-Export-Report", string(encoded))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "certificates-"+job.ID+".zip"))
		c.Data(http.StatusOK, "application/zip", job.Archive())
		return
	}

	name := storage.ArchiveObjectName(job.ID, time.Now())
	if _, err := s.storage.Upload(ctx, bytes.NewReader(job.Archive()), name, "application/zip"); err != nil {
		s.log.Error("上传压缩包失败", zap.String("job_id", job.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "report": report})
		return
	}
	url, err := s.storage.SignedURL(name, archiveURLExpiry)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report, "url": url, "object": name})
}

// serveFile 校验本地签名地址后返回对象内容。
func (s *Server) serveFile(local *storage.Local) gin.HandlerFunc {
	return func(c *gin.Context) {
		object := strings.TrimPrefix(c.Param("object"), "/")
		expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
		if err != nil || !local.VerifySignedURL(object, expires, c.Query("signature")) {
			c.JSON(http.StatusForbidden, gin.H{"error": "签名无效或已过期"})
			return
		}
		rc, err := local.Read(c.Request.Context(), object)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "文件不存在"})
			return
		}
		defer rc.Close()
		contentType := mime.TypeByExtension(path.Ext(object))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
	}
}

func (s *Server) exporter(format export.Format) (*export.Exporter, error) {
	opts := s.exportOpt
	opts.Format = format
	return export.New(opts)
}

// surfaceWidth 解析目标宽度，空串使用缺省值。
func surfaceWidth(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	w, err := strconv.ParseFloat(raw, 64)
	if err != nil || w <= 0 || w > maxSurfaceWidth {
		return 0, fmt.Errorf("width 需要在 (0, %.0f] 之间", maxSurfaceWidth)
	}
	return w, nil
}
