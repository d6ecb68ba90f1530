package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ByLCY/diploma/certificate"
	"github.com/ByLCY/diploma/document"
)

// TemplateModel 是模板表的一行。
type TemplateModel struct {
	ID        string         `gorm:"primaryKey;type:varchar(191)"`
	Data      datatypes.JSON `gorm:"type:json;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName sets the database table name.
func (TemplateModel) TableName() string { return "certificate_templates" }

// CertificateModel 是证书表的一行，RenderData 为颁发时的版面快照。
type CertificateModel struct {
	CertificateID    string `gorm:"primaryKey;type:varchar(64)"`
	RecipientName    string `gorm:"type:varchar(255);not null"`
	CourseName       string `gorm:"type:varchar(255);not null"`
	OrganizationName string `gorm:"type:varchar(255)"`
	IssueDate        string `gorm:"type:varchar(32)"`
	ExpiryDate       string `gorm:"type:varchar(32)"`
	CertificateType  string `gorm:"type:varchar(64)"`
	TemplateID       string `gorm:"type:varchar(191);index"`
	RenderData       datatypes.JSON
	CreatedAt        time.Time
}

// TableName sets the database table name.
func (CertificateModel) TableName() string { return "certificates" }

func toModel(rec *certificate.Record) CertificateModel {
	return CertificateModel{
		CertificateID:    rec.CertificateID,
		RecipientName:    rec.RecipientName,
		CourseName:       rec.CourseName,
		OrganizationName: rec.OrganizationName,
		IssueDate:        rec.IssueDate,
		ExpiryDate:       rec.ExpiryDate,
		CertificateType:  rec.CertificateType,
		TemplateID:       rec.TemplateID,
		RenderData:       datatypes.JSON(rec.RenderData),
	}
}

func fromModel(m CertificateModel) *certificate.Record {
	rec := &certificate.Record{
		CertificateID:    m.CertificateID,
		RecipientName:    m.RecipientName,
		CourseName:       m.CourseName,
		OrganizationName: m.OrganizationName,
		IssueDate:        m.IssueDate,
		ExpiryDate:       m.ExpiryDate,
		CertificateType:  m.CertificateType,
		TemplateID:       m.TemplateID,
	}
	if len(m.RenderData) > 0 {
		rec.RenderData = json.RawMessage(m.RenderData)
	}
	return rec
}

// OpenMySQL 连接数据库并迁移表结构。
func OpenMySQL(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if err := db.AutoMigrate(&TemplateModel{}, &CertificateModel{}); err != nil {
		return nil, fmt.Errorf("迁移数据库失败: %w", err)
	}
	if log != nil {
		log.Info("数据库已连接")
	}
	return db, nil
}

// Gorm 是基于 gorm 的模板与证书存储。
type Gorm struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGorm 使用已打开的连接创建存储。
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db, now: time.Now}
}

// Load 返回模板的持久化结构。
func (g *Gorm) Load(ctx context.Context, id string) ([]byte, error) {
	var m TemplateModel
	err := g.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, certificate.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取模板失败: %w", err)
	}
	return []byte(m.Data), nil
}

// Save 新建或覆盖模板。
func (g *Gorm) Save(ctx context.Context, id string, doc *document.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("序列化模板失败: %w", err)
	}
	m := TemplateModel{ID: id, Data: datatypes.JSON(data)}
	if err := g.db.WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("保存模板失败: %w", err)
	}
	return nil
}

// Issue 颁发证书并写入证书表。
func (g *Gorm) Issue(ctx context.Context, req certificate.IssueRequest) (*certificate.Record, error) {
	rec, err := issue(ctx, g, req, g.now())
	if err != nil {
		return nil, err
	}
	m := toModel(rec)
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("保存证书失败: %w", err)
	}
	return rec, nil
}

// Verify 按编号查询证书。
func (g *Gorm) Verify(ctx context.Context, certificateID string) (*certificate.Record, error) {
	var m CertificateModel
	err := g.db.WithContext(ctx).First(&m, "certificate_id = ?", certificateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, certificate.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询证书失败: %w", err)
	}
	return fromModel(m), nil
}

var (
	_ certificate.TemplateSource = (*Gorm)(nil)
	_ certificate.Issuer         = (*Gorm)(nil)
	_ certificate.Verifier       = (*Gorm)(nil)
)
