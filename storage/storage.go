package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Client 是导出归档的存储接口，本地与 GCS 实现都满足它。
type Client interface {
	Upload(ctx context.Context, r io.Reader, objectName, contentType string) (*UploadResult, error)
	Delete(ctx context.Context, objectName string) error
	Read(ctx context.Context, objectName string) (io.ReadCloser, error)
	SignedURL(objectName string, expiry time.Duration) (string, error)
	Close() error
}

// UploadResult 是一次上传的结果。
type UploadResult struct {
	ObjectName string `json:"object_name"`
	PublicURL  string `json:"public_url"`
	Size       int64  `json:"size"`
}

// ArchiveObjectName 返回批量导出压缩包的对象名。
func ArchiveObjectName(jobID string, now time.Time) string {
	return fmt.Sprintf("exports/%s/%d_certificates.zip", jobID, now.Unix())
}

// CertificateObjectName 返回单张证书文件的对象名。
func CertificateObjectName(certificateID, ext string, now time.Time) string {
	return fmt.Sprintf("certificates/%s/%d_%s.%s", certificateID, now.Unix(), certificateID, ext)
}
