package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// Config is the immutable process configuration, built once at startup and
// passed by reference into each component. Components never read the
// environment after construction.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// Filesystem layout.
	VideoDir      string // root under which per-asset directories are created
	TempUploadDir string // staging area swept on startup
	CatalogPath   string // durable catalog document

	// External encoder binaries.
	FFmpegPath  string
	FFprobePath string

	// Produced manifest/thumbnail paths are prefixed with CDNURL when set.
	CDNURL string

	// Query parameter name clients attach the signing token under.
	URISigningParam string

	// Token signing and verification.
	JWTIssuer        string
	JWTAudience      string
	JWTPrimaryKid    string
	JWTPrimarySecret string
	JWTAlgorithm     string
	TokenLifetime    time.Duration
	RenewalWindow    time.Duration
}

// FromEnv builds a Config from environment variables, applying defaults for
// everything except the signing secret, which deliberately has no default.
// Secret presence is enforced by the token authority's constructor, so a
// misconfigured deployment fails at startup rather than at first issuance.
func FromEnv() *Config {
	return &Config{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		VideoDir:      GetEnv("VIDEO_DIR", "public/videos"),
		TempUploadDir: GetEnv("TEMP_UPLOAD_DIR", "temp-uploads"),
		CatalogPath:   GetEnv("CATALOG_PATH", "public/data.json"),

		FFmpegPath:  GetEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: GetEnv("FFPROBE_PATH", "ffprobe"),

		CDNURL: GetEnv("CDN_URL", ""),

		URISigningParam: GetEnv("URI_SIGNING_PARAM", "URISigningPackage"),

		JWTIssuer:        GetEnv("JWT_ISSUER", "CDN URI Authority"),
		JWTAudience:      GetEnv("JWT_AUDIENCE", "mycdn"),
		JWTPrimaryKid:    GetEnv("JWT_PRIMARY_KID", "primary-key-2024"),
		JWTPrimarySecret: GetEnv("JWT_PRIMARY_SECRET", ""),
		JWTAlgorithm:     GetEnv("JWT_ALGORITHM", "HS256"),
		TokenLifetime:    time.Duration(GetEnvInt("JWT_EXPIRES_IN", 3600)) * time.Second,
		RenewalWindow:    time.Duration(GetEnvInt("JWT_RENEWAL_DURATION", 300)) * time.Second,
	}
}
