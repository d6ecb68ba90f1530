package certificate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ByLCY/diploma/binding"
	"github.com/ByLCY/diploma/document"
	"github.com/ByLCY/diploma/layout"
)

// DateLayout 是颁发日期与过期日期的缺省格式。
const DateLayout = "2006-01-02"

// ErrNoRenderData 表示证书记录没有版面快照（旧数据）。
var ErrNoRenderData = errors.New("证书没有版面快照")

// ErrNilRecord 表示批量输入中的某条记录为空（例如 JSON 中的 null）。
var ErrNilRecord = errors.New("证书记录为空")

// Record 是一张已颁发的证书。RenderData 是颁发时模板文档的 JSON 快照，
// 与模板之后的修改或删除无关。
type Record struct {
	CertificateID    string          `json:"certificateId"`
	RecipientName    string          `json:"recipientName"`
	CourseName       string          `json:"courseName"`
	OrganizationName string          `json:"organizationName"`
	IssueDate        string          `json:"issueDate"`
	ExpiryDate       string          `json:"expiryDate,omitempty"`
	CertificateType  string          `json:"certificateType,omitempty"`
	TemplateID       string          `json:"templateId,omitempty"`
	RenderData       json.RawMessage `json:"renderData,omitempty"`
}

// Clone 返回记录的副本，RenderData 字节不与原记录共享。
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.RenderData = bytes.Clone(r.RenderData)
	return &out
}

// Binding 返回该证书的缺省占位符绑定。过期日期与证书类型只在存在时绑定，
// 否则对应占位符保持原样。
func (r *Record) Binding() binding.Context {
	if r == nil {
		return binding.Context{}
	}
	ctx := binding.Context{
		binding.RecipientName:    r.RecipientName,
		binding.CourseName:       r.CourseName,
		binding.OrganizationName: r.OrganizationName,
		binding.IssueDate:        r.IssueDate,
		binding.CertificateID:    r.CertificateID,
	}
	if r.ExpiryDate != "" {
		ctx[binding.ExpiryDate] = r.ExpiryDate
	}
	if r.CertificateType != "" {
		ctx[binding.CertificateType] = r.CertificateType
	}
	return ctx
}

// VerificationURL 返回该证书的公开验证地址。
func (r *Record) VerificationURL(origin string) string {
	return layout.VerificationURL(origin, r.CertificateID)
}

// Document 解析 RenderData 快照。
func (r *Record) Document() (*document.Document, error) {
	if r == nil {
		return nil, ErrNilRecord
	}
	if len(bytes.TrimSpace(r.RenderData)) == 0 || string(bytes.TrimSpace(r.RenderData)) == "null" {
		return nil, ErrNoRenderData
	}
	return document.Parse(r.RenderData)
}

// Snapshot 将文档序列化为独立的快照字节。
func Snapshot(doc *document.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: 文档为空", document.ErrMalformed)
	}
	data, err := json.Marshal(doc.Clone())
	if err != nil {
		return nil, fmt.Errorf("序列化版面快照失败: %w", err)
	}
	return data, nil
}

// IssueRequest 是颁发证书所需的表单字段。
type IssueRequest struct {
	TemplateID       string `json:"templateId"`
	CertificateID    string `json:"certificateId,omitempty"` // 为空时自动生成
	RecipientName    string `json:"recipientName"`
	CourseName       string `json:"courseName"`
	OrganizationName string `json:"organizationName"`
	IssueDate        string `json:"issueDate,omitempty"` // 为空时取当天
	ExpiryDate       string `json:"expiryDate,omitempty"`
	CertificateType  string `json:"certificateType,omitempty"`
}

// Validate 检查必填字段。
func (req IssueRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(req.RecipientName) == "" {
		missing = append(missing, "recipientName")
	}
	if strings.TrimSpace(req.CourseName) == "" {
		missing = append(missing, "courseName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("缺少必填字段：%s", strings.Join(missing, ", "))
	}
	return nil
}

// NewRecord 根据颁发请求和模板文档生成证书记录，模板被深拷贝进 RenderData。
// template 为 nil 时记录不带快照，渲染时使用缺省版面。
func NewRecord(req IssueRequest, template *document.Document, now time.Time) (*Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rec := &Record{
		CertificateID:    req.CertificateID,
		RecipientName:    req.RecipientName,
		CourseName:       req.CourseName,
		OrganizationName: req.OrganizationName,
		IssueDate:        req.IssueDate,
		ExpiryDate:       req.ExpiryDate,
		CertificateType:  req.CertificateType,
		TemplateID:       req.TemplateID,
	}
	if rec.CertificateID == "" {
		rec.CertificateID = NewCertificateID()
	}
	if rec.IssueDate == "" {
		rec.IssueDate = now.Format(DateLayout)
	}
	if template != nil {
		data, err := Snapshot(template)
		if err != nil {
			return nil, err
		}
		rec.RenderData = data
	}
	return rec, nil
}

const idAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewCertificateID 生成 "CERT-XXXX-NN" 形式的证书编号。
func NewCertificateID() string {
	raw := uuid.New()
	var b strings.Builder
	b.WriteString("CERT-")
	for _, v := range raw[:4] {
		b.WriteByte(idAlphabet[int(v)%len(idAlphabet)])
	}
	fmt.Fprintf(&b, "-%02d", int(raw[4])%100)
	return b.String()
}
