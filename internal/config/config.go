package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	LogLevel   string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPath     string

	JWTSecret    string
	JWTPublicKey string
	JWTJWKSURL   string
	JWTIssuer    string
	JWTAudience  string

	WebhookPublicKey string

	VAPIDSubject    string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	WebPushTTL      int

	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string
	FirebaseProjectID          string
	FirebaseClientEmail        string
	FirebasePrivateKey         string

	SendWebhookData        bool
	NotifiableStatuses     []string
	DispatchMaxConcurrency int
	PipelineTimeout        time.Duration

	AuditEnabled           bool
	AuditSink              string
	AuditDir               string
	AuditS3Bucket          string
	AuditS3Prefix          string
	AuditS3Endpoint        string
	AuditS3Region          string
	AuditS3AccessKeyID     string
	AuditS3SecretAccessKey string

	RedisURL            string
	EventDedupeTTL      time.Duration
	WebhookQueueEnabled bool
	WorkerCount         int

	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	// TrustProxy lets X-Forwarded-For / X-Real-IP decide the client IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	serverPort := firstEnv("SERVER_PORT", "PORT")
	if serverPort == "" {
		serverPort = "3000"
	}

	dbDriver := os.Getenv("DB_DRIVER")
	if dbDriver == "" {
		dbDriver = "postgres"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	dbSSLMode := os.Getenv("DB_SSLMODE")
	if dbSSLMode == "" {
		dbSSLMode = "require"
	}

	// Fallback credential path used by the Google SDKs.
	firebasePath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
	if firebasePath == "" {
		firebasePath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}

	auditDir := os.Getenv("AUDIT_DIR")
	if auditDir == "" {
		auditDir = "TEMP_WEBHOOKS"
	}

	auditSink := strings.ToLower(os.Getenv("AUDIT_SINK"))
	if auditSink == "" {
		auditSink = "file"
	}

	auditRegion := os.Getenv("AUDIT_S3_REGION")
	if auditRegion == "" {
		auditRegion = "auto"
	}

	return &Config{
		ServerPort: serverPort,
		LogLevel:   os.Getenv("LOG_LEVEL"),

		DBDriver:   dbDriver,
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     dbPort,
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  dbSSLMode,
		DBPath:     os.Getenv("DB_PATH"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTPublicKey: os.Getenv("JWT_PUBLIC_KEY"),
		JWTJWKSURL:   firstEnv("JWT_JWKS_URI", "JWKS_URI"),
		JWTIssuer:    firstEnv("JWT_ISSUER", "ISSUER"),
		JWTAudience:  firstEnv("JWT_AUDIENCE", "AUDIENCE"),

		WebhookPublicKey: firstEnv("WEBHOOK_PUBLIC_KEY", "FIREBLOCKS_WEBHOOK_PUBLIC_KEY"),

		VAPIDSubject:    os.Getenv("VAPID_SUBJECT"),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		WebPushTTL:      getIntEnv("WEB_PUSH_TTL", 2419200),

		FirebaseServiceAccountJSON: os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"),
		FirebaseServiceAccountPath: firebasePath,
		FirebaseProjectID:          os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseClientEmail:        os.Getenv("FIREBASE_CLIENT_EMAIL"),
		FirebasePrivateKey:         os.Getenv("FIREBASE_PRIVATE_KEY"),

		SendWebhookData:        GetBooleanEnv("SEND_WEBHOOK_DATA"),
		NotifiableStatuses:     splitList(os.Getenv("NOTIFIABLE_STATUSES")),
		DispatchMaxConcurrency: getIntEnv("DISPATCH_MAX_CONCURRENCY", 0),
		PipelineTimeout:        getDurationEnv("PIPELINE_TIMEOUT", 30*time.Second),

		AuditEnabled:           GetBooleanEnv("AUDIT_ENABLED") || GetBooleanEnv("TMP_SAVE"),
		AuditSink:              auditSink,
		AuditDir:               auditDir,
		AuditS3Bucket:          os.Getenv("AUDIT_S3_BUCKET"),
		AuditS3Prefix:          os.Getenv("AUDIT_S3_PREFIX"),
		AuditS3Endpoint:        os.Getenv("AUDIT_S3_ENDPOINT"),
		AuditS3Region:          auditRegion,
		AuditS3AccessKeyID:     os.Getenv("AUDIT_S3_ACCESS_KEY_ID"),
		AuditS3SecretAccessKey: os.Getenv("AUDIT_S3_SECRET_ACCESS_KEY"),

		RedisURL:            os.Getenv("REDIS_URL"),
		EventDedupeTTL:      getDurationEnv("EVENT_DEDUPE_TTL", 24*time.Hour),
		WebhookQueueEnabled: GetBooleanEnv("WEBHOOK_QUEUE_ENABLED"),
		WorkerCount:         getIntEnv("WORKER_COUNT", 2),

		CORSAllowedOrigins: splitList(firstEnv("CORS_ALLOWED_ORIGINS", "ORIGIN_WEB_SDK")),
		RateLimitRequests:  getIntEnv("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", 15*time.Minute),
		TrustProxy:         GetBooleanEnv("TRUST_PROXY"),
	}, nil
}

// FCMConfigured reports whether any Firebase credential source is set.
func (c *Config) FCMConfigured() bool {
	return c.FirebaseServiceAccountJSON != "" ||
		c.FirebaseServiceAccountPath != "" ||
		(c.FirebaseProjectID != "" && c.FirebaseClientEmail != "" && c.FirebasePrivateKey != "")
}

// WebPushConfigured reports whether the VAPID key pair and subject are all set.
func (c *Config) WebPushConfigured() bool {
	return c.VAPIDSubject != "" && c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// GetBooleanEnv treats "true", "1" and "yes" (any case) as true.
func GetBooleanEnv(key string) bool {
	return parseBool(os.Getenv(key))
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getIntEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Invalid duration for %s=%q, using %v", key, raw, def)
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
