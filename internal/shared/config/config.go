package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ScannerErrorPolicy controls what the upload pipeline does when the malware
// scanner itself fails: "allow" proceeds (fail-open), "reject" refuses the
// upload (fail-closed).
type ScannerErrorPolicy string

const (
	ScannerErrorAllow  ScannerErrorPolicy = "allow"
	ScannerErrorReject ScannerErrorPolicy = "reject"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	UploadsPrefix   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	MaxUploadBytes     int64
	UploadWindow       time.Duration
	UploadMaxPerWindow int

	ClamdAddr      string
	OnScannerError ScannerErrorPolicy
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of a local env file for dev convenience.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		UploadsPrefix:   getEnv("UPLOADS_PREFIX", "uploads"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		MaxUploadBytes:     getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		UploadWindow:       getEnvDuration("UPLOAD_WINDOW", 15*time.Minute),
		UploadMaxPerWindow: int(getEnvInt64("UPLOAD_MAX_PER_WINDOW", 5)),

		ClamdAddr:      getEnv("CLAMD_ADDR", ""),
		OnScannerError: normalizeScannerPolicy(getEnv("SCANNER_ON_ERROR", "allow")),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeScannerPolicy(raw string) ScannerErrorPolicy {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "reject", "closed", "fail-closed":
		return ScannerErrorReject
	default:
		return ScannerErrorAllow
	}
}
