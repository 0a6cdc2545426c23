package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:3001",
}

// Server holds the Asset Store settings.
type Server struct {
	Port           string
	DatabaseDriver string
	DatabaseDSN    string
	UploadDir      string
	CORSOrigins    []string
	LogMode        string
	RedisAddr      string
	Minio          Minio
}

// Minio configures the optional object storage backend. It is enabled only
// when endpoint, credentials and bucket are all set.
type Minio struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (m Minio) Enabled() bool {
	return m.Endpoint != "" && m.AccessKey != "" && m.SecretKey != "" && m.Bucket != ""
}

// LoadServer reads the Asset Store settings from .env and the environment.
func LoadServer() Server {
	_ = godotenv.Load()

	s := Server{
		Port:           envOr("PORT", "8000"),
		DatabaseDriver: strings.TrimSpace(os.Getenv("DATABASE_DRIVER")),
		DatabaseDSN:    envOr("DATABASE_DSN", "holodeck.db"),
		UploadDir:      envOr("UPLOAD_DIR", "./uploads"),
		LogMode:        envOr("LOG_MODE", "dev"),
		RedisAddr:      strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		CORSOrigins:    defaultCORSOrigins,
		Minio: Minio{
			Endpoint:  strings.TrimSpace(os.Getenv("MINIO_ENDPOINT")),
			AccessKey: strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY")),
			Bucket:    strings.TrimSpace(os.Getenv("MINIO_BUCKET")),
			UseSSL:    Bool("MINIO_USE_SSL", false),
		},
	}
	if raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); raw != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			s.CORSOrigins = origins
		}
	}
	return s
}

func envOr(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}
