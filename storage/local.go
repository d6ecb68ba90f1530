package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Local 将对象保存在本地目录，通过 HMAC 签名 URL 提供临时访问。
type Local struct {
	basePath  string
	baseURL   string
	secretKey string
	now       func() time.Time
}

// NewLocal 创建本地存储，目录不存在时自动创建。
func NewLocal(basePath, baseURL, secretKey string) (*Local, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	if secretKey == "" {
		secretKey = "default-local-storage-key"
	}
	if baseURL == "" {
		baseURL = "internal://storage"
	}
	return &Local{
		basePath:  basePath,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		now:       time.Now,
	}, nil
}

func (l *Local) path(objectName string) (string, error) {
	full := filepath.Join(l.basePath, filepath.FromSlash(objectName))
	rel, err := filepath.Rel(l.basePath, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("非法的对象名：%s", objectName)
	}
	return full, nil
}

// Upload 写入对象，父目录按需创建。
func (l *Local) Upload(ctx context.Context, r io.Reader, objectName, contentType string) (*UploadResult, error) {
	full, err := l.path(objectName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("创建文件 %s 失败: %w", full, err)
	}
	defer f.Close()
	size, err := io.Copy(f, r)
	if err != nil {
		return nil, fmt.Errorf("写入文件失败: %w", err)
	}
	return &UploadResult{
		ObjectName: objectName,
		PublicURL:  l.baseURL + "/" + objectName,
		Size:       size,
	}, nil
}

// Delete 删除对象，对象不存在时不报错。
func (l *Local) Delete(ctx context.Context, objectName string) error {
	full, err := l.path(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件 %s 失败: %w", full, err)
	}
	l.cleanEmptyDirs(filepath.Dir(full))
	return nil
}

// cleanEmptyDirs 向上删除空目录，直到 basePath。
func (l *Local) cleanEmptyDirs(dir string) {
	for dir != l.basePath && dir != "." && dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}

// Read 打开对象。
func (l *Local) Read(ctx context.Context, objectName string) (io.ReadCloser, error) {
	full, err := l.path(objectName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("打开文件 %s 失败: %w", full, err)
	}
	return f, nil
}

// SignedURL 生成带过期时间与签名的访问地址。
func (l *Local) SignedURL(objectName string, expiry time.Duration) (string, error) {
	expiresAt := l.now().Add(expiry).Unix()
	signature := l.sign(fmt.Sprintf("%s:%d", objectName, expiresAt))
	return fmt.Sprintf("%s/%s?expires=%d&signature=%s", l.baseURL, objectName, expiresAt, signature), nil
}

// VerifySignedURL 校验签名与过期时间。
func (l *Local) VerifySignedURL(objectName string, expiresAt int64, signature string) bool {
	if l.now().Unix() > expiresAt {
		return false
	}
	expected := l.sign(fmt.Sprintf("%s:%d", objectName, expiresAt))
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (l *Local) sign(message string) string {
	h := hmac.New(sha256.New, []byte(l.secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// BasePath 返回存储目录。
func (l *Local) BasePath() string { return l.basePath }

// Close 对本地存储是空操作。
func (l *Local) Close() error { return nil }

var _ Client = (*Local)(nil)
