package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 汇总服务端与命令行共用的配置。
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Storage  StorageConfig  `json:"storage"`
	GCS      GCSConfig      `json:"gcs"`
	Export   ExportConfig   `json:"export"`
	Assets   AssetsConfig   `json:"assets"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
	Origin      string `json:"origin"` // 验证地址前缀，写入二维码
}

// DatabaseConfig 为空 Host 时使用内存存储。
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
}

type StorageConfig struct {
	Type      string `json:"type"`       // "gcs" or "local"
	LocalPath string `json:"local_path"` // 本地存储目录
	LocalURL  string `json:"local_url"`  // 本地文件的访问前缀
	SecretKey string `json:"secret_key"` // 本地签名 URL 的密钥
}

type GCSConfig struct {
	BucketName      string `json:"bucket_name"`
	ProjectID       string `json:"project_id"`
	CredentialsPath string `json:"credentials_path"`
}

type ExportConfig struct {
	Format      string        `json:"format"`       // png | pdf
	SettleDelay time.Duration `json:"settle_delay"` // 资源就绪后的额外等待
	Supersample float64       `json:"supersample"`
	Creator     string        `json:"creator"`
}

type AssetsConfig struct {
	BaseDir     string        `json:"base_dir"`
	Timeout     time.Duration `json:"timeout"`
	CacheTTL    time.Duration `json:"cache_ttl"`
	MaxBytes    int64         `json:"max_bytes"`
	Concurrency int           `json:"concurrency"`
	// AllowAbsolute 允许模板引用 BaseDir 之外的绝对路径与 file:// 地址
	AllowAbsolute bool `json:"allow_absolute"`
}

// Enabled 判断是否配置了数据库。
func (d *DatabaseConfig) Enabled() bool { return d.Host != "" }

// DSN 返回 MySQL 连接串。Host 以 / 开头时按 Unix socket 连接。
func (d *DatabaseConfig) DSN() string {
	addr := fmt.Sprintf("tcp(%s:%s)", d.Host, d.Port)
	if len(d.Host) > 0 && d.Host[0] == '/' {
		addr = fmt.Sprintf("unix(%s)", d.Host)
	}
	return fmt.Sprintf("%s:%s@%s/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, addr, d.DBName)
}

// findProjectRoot 向上查找 go.mod 所在目录。
func findProjectRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Load 依次尝试加载项目根目录与当前目录的 .env，然后从环境变量读取配置。
func Load() (*Config, error) {
	var envPaths []string
	if projectRoot := findProjectRoot(); projectRoot != "" {
		envPaths = append(envPaths, filepath.Join(projectRoot, ".env"))
	}
	envPaths = append(envPaths, ".env")
	for _, envPath := range envPaths {
		if err := godotenv.Load(envPath); err == nil {
			break
		}
	}
	return FromEnv()
}

// FromEnv 只读取环境变量，不加载 .env。
func FromEnv() (*Config, error) {
	settle, err := getDuration("EXPORT_SETTLE_DELAY", 0)
	if err != nil {
		return nil, err
	}
	timeout, err := getDuration("ASSET_FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	ttl, err := getDuration("ASSET_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	supersample, err := strconv.ParseFloat(getEnv("EXPORT_SUPERSAMPLE", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("EXPORT_SUPERSAMPLE 无效: %w", err)
	}
	maxBytes, err := strconv.ParseInt(getEnv("ASSET_MAX_BYTES", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ASSET_MAX_BYTES 无效: %w", err)
	}
	concurrency, err := strconv.Atoi(getEnv("ASSET_CONCURRENCY", "4"))
	if err != nil {
		return nil, fmt.Errorf("ASSET_CONCURRENCY 无效: %w", err)
	}
	allowAbsolute, err := strconv.ParseBool(getEnv("ASSET_ALLOW_ABSOLUTE", "false"))
	if err != nil {
		return nil, fmt.Errorf("ASSET_ALLOW_ABSOLUTE 无效: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8081"),
			Environment: getEnv("ENVIRONMENT", "development"),
			Origin:      getEnv("VERIFY_ORIGIN", "http://localhost:8081"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "diploma"),
		},
		Storage: StorageConfig{
			Type:      getEnv("STORAGE_TYPE", "local"),
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./storage"),
			LocalURL:  getEnv("STORAGE_LOCAL_URL", "http://localhost:8081/files"),
			SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		},
		GCS: GCSConfig{
			BucketName:      getEnv("GCS_BUCKET_NAME", ""),
			ProjectID:       getEnv("GOOGLE_CLOUD_PROJECT", ""),
			CredentialsPath: getEnv("GCS_CREDENTIALS_PATH", ""),
		},
		Export: ExportConfig{
			Format:      getEnv("EXPORT_FORMAT", "pdf"),
			SettleDelay: settle,
			Supersample: supersample,
			Creator:     getEnv("EXPORT_CREATOR", "diploma"),
		},
		Assets: AssetsConfig{
			BaseDir:       getEnv("ASSET_BASE_DIR", "."),
			Timeout:       timeout,
			CacheTTL:      ttl,
			MaxBytes:      maxBytes,
			Concurrency:   concurrency,
			AllowAbsolute: allowAbsolute,
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s 无效: %w", key, err)
	}
	return d, nil
}
