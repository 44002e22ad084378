package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string
	AdminToken      string

	// Photo storage
	PhotoStoreType string
	LocalStoreDir  string
	PhotoBaseURL   string
	AWSRegion      string
	S3Bucket       string
	S3Prefix       string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Vision provider
	VisionProvider   string
	GeminiAPIKey     string
	OpenAIAPIKey     string
	RelevanceModel   string
	AnalysisModel    string
	RelevanceTimeout time.Duration
	AnalysisTimeout  time.Duration
	SettingsDocURL   string
	SettingsCacheTTL time.Duration

	// Invocation queue
	QueueMaxConcurrent int
	QueueMinInterval   time.Duration

	// Credits
	FreeCredits          int
	ReferralBonusInviter int
	ReferralBonusInvited int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

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
		AdminToken:      getEnv("ADMIN_TOKEN", ""),

		PhotoStoreType: normalizeStoreType(getEnv("PHOTO_STORE", "local")),
		LocalStoreDir:  getEnv("LOCAL_STORE_DIR", "./photos"),
		PhotoBaseURL:   getEnv("PHOTO_BASE_URL", "http://localhost:8080/photos"),
		AWSRegion:      getEnv("AWS_REGION", ""),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Prefix:       getEnv("S3_PREFIX", "photos/"),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", ""),
		MinioRegion:    getEnv("MINIO_REGION", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", true),

		VisionProvider:   normalizeProvider(getEnv("VISION_PROVIDER", "gemini")),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		RelevanceModel:   getEnv("RELEVANCE_MODEL", "gemini-2.5-flash"),
		AnalysisModel:    getEnv("ANALYSIS_MODEL", "gemini-2.5-pro"),
		RelevanceTimeout: getEnvSeconds("RELEVANCE_TIMEOUT_SECONDS", 120),
		AnalysisTimeout:  getEnvSeconds("ANALYSIS_TIMEOUT_SECONDS", 180),
		SettingsDocURL:   getEnv("SETTINGS_DOC_URL", ""),
		SettingsCacheTTL: getEnvSeconds("SETTINGS_CACHE_TTL_SECONDS", 300),

		QueueMaxConcurrent: getEnvInt("QUEUE_MAX_CONCURRENT", 1),
		QueueMinInterval:   getEnvSeconds("QUEUE_MIN_INTERVAL_SECONDS", 30),

		FreeCredits:          getEnvInt("FREE_CREDITS", 5),
		ReferralBonusInviter: getEnvInt("REFERRAL_BONUS_INVITER", 5),
		ReferralBonusInvited: getEnvInt("REFERRAL_BONUS_INVITED", 5),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config: %s invalid bool %q, using %v", key, raw, def)
		return def
	}
	return val
}

func getEnvSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defSeconds)) * time.Second
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
	case "minio":
		return "minio"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	default:
		return "gemini"
	}
}
