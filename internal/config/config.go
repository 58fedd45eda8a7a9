package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr          string
	DatabaseURL   string
	DataDir       string
	UploadDir     string
	TemplatesDir  string
	HistoryDir    string
	MigrationsDir string
	CORSOrigin    string
	// Redis is optional; sessions stay in memory when it is empty.
	RedisURL   string
	SessionTTL time.Duration
	// Meilisearch is optional; search falls back to the in-memory index.
	MeiliURL       string
	MeiliMasterKey string
	// S3-compatible uploads; the local upload dir is used when S3Endpoint is empty.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	// SMTP Configuration
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	// Report mail defaults for the .msg export and send_report.
	MailFrom       string
	MailTo         []string
	MaxUploadBytes int64
	LogLevel       string
	LogFormat      string
}

func Load() Config {
	dataDir := getenv("TASKDOC_DATA_DIR", "./data")
	uploads, templates, history := DataPaths(dataDir)
	return Config{
		Addr:           getenv("TASKDOC_ADDR", ":8888"),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		DataDir:        dataDir,
		UploadDir:      getenv("TASKDOC_UPLOAD_DIR", uploads),
		TemplatesDir:   getenv("TASKDOC_TEMPLATES_DIR", templates),
		HistoryDir:     getenv("TASKDOC_HISTORY_DIR", history),
		MigrationsDir:  getenv("TASKDOC_MIGRATIONS_DIR", ""),
		CORSOrigin:     getenv("TASKDOC_CORS_ORIGIN", "*"),
		RedisURL:       getenv("REDIS_URL", ""),
		SessionTTL:     time.Duration(getenvInt("TASKDOC_SESSION_TTL_SECONDS", 86400)) * time.Second,
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
		S3Endpoint:     getenv("S3_ENDPOINT", ""),
		S3AccessKey:    getenv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getenv("S3_SECRET_KEY", ""),
		S3Bucket:       getenv("S3_BUCKET", "taskdoc"),
		S3UseSSL:       getenvBool("S3_USE_SSL", false),
		// SMTP - empty by default, send_report disabled if not configured
		SMTPHost:       getenv("SMTP_HOST", ""),
		SMTPPort:       getenv("SMTP_PORT", "587"),
		SMTPUsername:   getenv("SMTP_USERNAME", ""),
		SMTPPassword:   getenv("SMTP_PASSWORD", ""),
		SMTPFrom:       getenv("SMTP_FROM", ""),
		SMTPFromName:   getenv("SMTP_FROM_NAME", "Task Reports"),
		MailFrom:       getenv("TASKDOC_MAIL_FROM", "system@company.com"),
		MailTo:         getenvList("TASKDOC_MAIL_TO", []string{"recipient@company.com"}),
		MaxUploadBytes: int64(getenvInt("TASKDOC_MAX_UPLOAD_MB", 16)) << 20,
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "json"),
	}
}

// DataPaths returns the default upload, template and history directories
// under a data directory.
func DataPaths(dataDir string) (uploads, templates, history string) {
	return filepath.Join(dataDir, "uploads"), filepath.Join(dataDir, "templates"), filepath.Join(dataDir, "history")
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getenvList splits a comma separated value, dropping blank entries.
func getenvList(key string, fallback []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
