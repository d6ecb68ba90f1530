package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ByLCY/diploma/certificate"
	"github.com/ByLCY/diploma/document"
)

// Memory 是进程内的模板与证书存储，用于命令行与测试。
type Memory struct {
	mu        sync.RWMutex
	templates map[string][]byte
	records   map[string]*certificate.Record
	now       func() time.Time
}

// NewMemory 创建空的内存存储。
func NewMemory() *Memory {
	return &Memory{
		templates: map[string][]byte{},
		records:   map[string]*certificate.Record{},
		now:       time.Now,
	}
}

// Load 返回模板的持久化结构。
func (m *Memory) Load(ctx context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.templates[id]
	if !ok {
		return nil, certificate.ErrNotFound
	}
	return bytes.Clone(data), nil
}

// Save 保存模板。
func (m *Memory) Save(ctx context.Context, id string, doc *document.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("序列化模板失败: %w", err)
	}
	return m.SaveRaw(ctx, id, data)
}

// SaveRaw 原样保存模板数据，旧版的裸数组格式也可以写入。
func (m *Memory) SaveRaw(ctx context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[id] = bytes.Clone(data)
	return nil
}

// Delete 删除模板。已颁发证书的快照不受影响。
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.templates, id)
	return nil
}

// Issue 颁发证书。
func (m *Memory) Issue(ctx context.Context, req certificate.IssueRequest) (*certificate.Record, error) {
	rec, err := issue(ctx, m, req, m.now())
	if err != nil {
		return nil, err
	}
	if err := m.Put(ctx, rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Put 写入一条证书记录（覆盖同编号的记录）。
func (m *Memory) Put(ctx context.Context, rec *certificate.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.CertificateID] = rec.Clone()
	return nil
}

// Verify 按编号查询证书。
func (m *Memory) Verify(ctx context.Context, certificateID string) (*certificate.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[certificateID]
	if !ok {
		return nil, certificate.ErrNotFound
	}
	return rec.Clone(), nil
}

var (
	_ certificate.TemplateSource = (*Memory)(nil)
	_ certificate.Issuer         = (*Memory)(nil)
	_ certificate.Verifier       = (*Memory)(nil)
)
