package certificate

import (
	"context"
	"errors"

	"github.com/ByLCY/diploma/document"
)

// ErrNotFound 表示模板或证书不存在。
var ErrNotFound = errors.New("记录不存在")

// TemplateSource 负责模板的持久化。Load 返回持久化的原始结构，调用方用 document.Parse 解析。
type TemplateSource interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, doc *document.Document) error
}

// Issuer 颁发证书并在记录中保存模板快照。
type Issuer interface {
	Issue(ctx context.Context, req IssueRequest) (*Record, error)
}

// Verifier 按编号查询证书。旧记录可能没有 RenderData。
type Verifier interface {
	Verify(ctx context.Context, certificateID string) (*Record, error)
}

// LoadTemplate 从 src 读取并解析模板。
func LoadTemplate(ctx context.Context, src TemplateSource, id string) (*document.Document, error) {
	data, err := src.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return document.Parse(data)
}
