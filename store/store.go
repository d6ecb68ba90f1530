package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ByLCY/diploma/certificate"
	"github.com/ByLCY/diploma/document"
)

// issue 读取模板并生成带快照的证书记录。TemplateID 为空时记录不带快照。
func issue(ctx context.Context, src certificate.TemplateSource, req certificate.IssueRequest, now time.Time) (*certificate.Record, error) {
	var tpl *document.Document
	if req.TemplateID != "" {
		doc, err := certificate.LoadTemplate(ctx, src, req.TemplateID)
		if err != nil {
			if errors.Is(err, certificate.ErrNotFound) {
				return nil, fmt.Errorf("模板 %s: %w", req.TemplateID, err)
			}
			return nil, err
		}
		tpl = doc
	}
	return certificate.NewRecord(req, tpl, now)
}
