package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS 将对象保存到 Google Cloud Storage。
type GCS struct {
	client *gcs.Client
	bucket string
}

// NewGCS 创建 GCS 客户端。credentialsPath 为空时使用默认凭据。
func NewGCS(ctx context.Context, bucket, credentialsPath string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("未配置 GCS bucket")
	}
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 GCS 客户端失败: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Upload 上传对象。
func (g *GCS) Upload(ctx context.Context, r io.Reader, objectName, contentType string) (*UploadResult, error) {
	w := g.client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	size, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("上传到 GCS 失败: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("上传到 GCS 失败: %w", err)
	}
	return &UploadResult{
		ObjectName: objectName,
		PublicURL:  fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, objectName),
		Size:       size,
	}, nil
}

// Delete 删除对象，对象不存在时不报错。
func (g *GCS) Delete(ctx context.Context, objectName string) error {
	err := g.client.Bucket(g.bucket).Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("删除 GCS 对象失败: %w", err)
	}
	return nil
}

// Read 读取对象。
func (g *GCS) Read(ctx context.Context, objectName string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取 GCS 对象失败: %w", err)
	}
	return r, nil
}

// SignedURL 生成 V4 签名的 GET 地址。
func (g *GCS) SignedURL(objectName string, expiry time.Duration) (string, error) {
	url, err := g.client.Bucket(g.bucket).SignedURL(objectName, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		return "", fmt.Errorf("生成签名地址失败: %w", err)
	}
	return url, nil
}

// Close 关闭客户端。
func (g *GCS) Close() error { return g.client.Close() }

var _ Client = (*GCS)(nil)
