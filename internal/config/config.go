package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	SessionTTL        time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string
	OTPSMS       bool // also text the code when the voter has a phone on file

	OTPTTL         time.Duration
	OTPSingleUse   bool
	OTPMaxAttempts int

	FaceThreshold     float64 // cosine distance at or below which two faces are the same person
	FaceModel         string
	EmbeddingURL      string
	EmbeddingTimeout  time.Duration
	ArchiveSnapshots  bool
	VoterRosterPath   string
	ElectionTimezone  string
	AdminUsername     string
	AdminPasswordHash string // bcrypt
	AdminEmails       []string
	GoogleClientID    string
	AllowedOrigins    []string // CORS allowed origins
	TrustProxyHeaders bool     // take the client IP from X-Forwarded-For / X-Real-Ip
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	EligibleVoters string
	EnrolledVoters string
	OtpChallenges  string
	Elections      string
	Candidates     string
	Ballots        string
	Sessions       string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			EligibleVoters: getEnv("DYNAMO_TABLE_ELIGIBLE_VOTERS", "eligible_voters"),
			EnrolledVoters: getEnv("DYNAMO_TABLE_ENROLLED_VOTERS", "enrolled_voters"),
			OtpChallenges:  getEnv("DYNAMO_TABLE_OTP_CHALLENGES", "otp_challenges"),
			Elections:      getEnv("DYNAMO_TABLE_ELECTIONS", "elections"),
			Candidates:     getEnv("DYNAMO_TABLE_CANDIDATES", "candidates"),
			Ballots:        getEnv("DYNAMO_TABLE_BALLOTS", "ballots"),
			Sessions:       getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
		},
		S3BucketName:      getEnv("S3_BUCKET_NAME", "securevote-snapshots"),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 12*time.Hour),
		SessionTTL:        getEnvDuration("SESSION_TTL", 12*time.Hour),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "1025"),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@securevote.local"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SNSRegion:         getEnv("SNS_REGION", "us-east-1"),
		OTPSMS:            getEnvBool("OTP_SMS", false),
		OTPTTL:            getEnvDuration("OTP_TTL", 5*time.Minute),
		OTPSingleUse:      getEnvBool("OTP_SINGLE_USE", false),
		OTPMaxAttempts:    getEnvInt("OTP_MAX_ATTEMPTS", 5),
		FaceThreshold:     getEnvFloat("FACE_THRESHOLD", 0.35),
		FaceModel:         getEnv("FACE_MODEL", "Facenet512"),
		EmbeddingURL:      getEnv("EMBEDDING_URL", "http://localhost:5005"),
		EmbeddingTimeout:  getEnvDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		ArchiveSnapshots:  getEnvBool("ARCHIVE_SNAPSHOTS", false),
		VoterRosterPath:   getEnv("VOTER_ROSTER_PATH", "students.xlsx"),
		ElectionTimezone:  getEnv("ELECTION_TIMEZONE", "Asia/Kolkata"),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		AdminEmails:       splitList(getEnv("ADMIN_EMAILS", "")),
		GoogleClientID:    getEnv("GOOGLE_CLIENT_ID", ""),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("5m", "12h") or a bare number of minutes.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if minutes := getEnvInt(key, 0); minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return fallback
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
