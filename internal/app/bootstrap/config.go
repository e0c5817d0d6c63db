// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/features/media"
	"github.com/dalemusser/tourdesk/internal/app/system/auditlog"
	"github.com/dalemusser/tourdesk/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "TOURDESK"

// minProdSecretLen is the shortest JWT secret accepted in prod.
const minProdSecretLen = 32

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: TOURDESK_MONGO_URI, TOURDESK_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "tourdesk", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "jwt_secret", Default: "", Desc: "Bearer token signing secret (32+ chars in production)"},
	{Name: "jwt_expires_in", Default: "7d", Desc: "Bearer token lifetime (e.g., 7d, 168h, 30m)"},

	// Login throttling
	{Name: "login_rate_per_minute", Default: 10, Desc: "Login requests per minute per client IP (0 disables)"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Failed logins per email before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed logins"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding the limit"},

	{Name: "cors_origins", Default: "", Desc: "Comma-separated origins allowed to call /api (blank allows any)"},

	// Media storage
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "upload_dir", Default: "./uploads", Desc: "Local storage path for uploaded media"},
	{Name: "upload_url", Default: "/uploads", Desc: "URL prefix for serving local media"},
	{Name: "max_file_size", Default: media.DefaultMaxFileSize, Desc: "Largest accepted upload in bytes"},

	// S3/CloudFront configuration
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "uploads/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},

	{Name: "audit_log", Default: auditlog.ModeAll, Desc: "Audit destinations: 'all' (db+log), 'db', 'log', or 'off'"},

	// Admin seeding configuration
	{Name: "seed_admin_email", Default: "", Desc: "Email of admin user to ensure on startup"},
	{Name: "seed_admin_password", Default: "", Desc: "Password for a newly created seed admin"},
	{Name: "seed_admin_name", Default: "Administrator", Desc: "Name of a newly created seed admin"},
}

// envFallbacks maps unprefixed variables common in container deployments to
// the variables WAFFLE reads. A fallback applies only when its target is unset.
var envFallbacks = []struct{ from, to string }{
	{"MONGODB_URI", EnvVarPrefix + "_MONGO_URI"},
	{"DATABASE_URL", EnvVarPrefix + "_MONGO_URI"},
	{"JWT_SECRET", EnvVarPrefix + "_JWT_SECRET"},
	{"JWT_EXPIRES_IN", EnvVarPrefix + "_JWT_EXPIRES_IN"},
	{"UPLOAD_DIR", EnvVarPrefix + "_UPLOAD_DIR"},
	{"MAX_FILE_SIZE", EnvVarPrefix + "_MAX_FILE_SIZE"},
	{"PORT", "WAFFLE_HTTP_PORT"},
}

// applyEnvFallbacks copies fallback variables into place. NODE_ENV is
// translated to WAFFLE's environment names.
func applyEnvFallbacks() {
	for _, fb := range envFallbacks {
		if _, set := os.LookupEnv(fb.to); set {
			continue
		}
		if v, ok := os.LookupEnv(fb.from); ok && v != "" {
			os.Setenv(fb.to, v)
		}
	}
	if _, set := os.LookupEnv("WAFFLE_ENV"); !set {
		switch strings.ToLower(os.Getenv("NODE_ENV")) {
		case "production":
			os.Setenv("WAFFLE_ENV", "prod")
		case "development":
			os.Setenv("WAFFLE_ENV", "dev")
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// WAFFLE_* and TOURDESK_* environment variables and command-line flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	applyEnvFallbacks()

	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	ttl, err := auth.ParseTTL(appValues.String("jwt_expires_in"))
	if err != nil {
		return nil, AppConfig{}, fmt.Errorf("invalid jwt_expires_in: %w", err)
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret:    appValues.String("jwt_secret"),
		JWTExpiresIn: ttl,

		// Login throttling
		LoginRatePerMinute:     appValues.Int("login_rate_per_minute"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),

		CORSOrigins: splitList(appValues.String("cors_origins")),

		// Media storage
		StorageType: appValues.String("storage_type"),
		UploadDir:   appValues.String("upload_dir"),
		UploadURL:   appValues.String("upload_url"),
		MaxFileSize: int64(appValues.Int("max_file_size")),

		// S3/CloudFront
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageCFURL:       appValues.String("storage_cf_url"),
		StorageCFKeyPairID: appValues.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   appValues.String("storage_cf_key_path"),

		AuditLog: appValues.String("audit_log"),

		// Admin seeding
		SeedAdminEmail:    appValues.String("seed_admin_email"),
		SeedAdminPassword: appValues.String("seed_admin_password"),
		SeedAdminName:     appValues.String("seed_admin_name"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env, appCfg)
}

// validateApp holds the checks that need no WAFFLE state.
func validateApp(env string, appCfg AppConfig) error {
	var problems []string
	if strings.TrimSpace(appCfg.JWTSecret) == "" {
		problems = append(problems, "jwt_secret is required")
	} else if env == "prod" && len(appCfg.JWTSecret) < minProdSecretLen {
		problems = append(problems, fmt.Sprintf("jwt_secret must be at least %d characters in prod", minProdSecretLen))
	}
	if appCfg.MaxFileSize <= 0 {
		problems = append(problems, "max_file_size must be positive")
	}
	switch appCfg.StorageType {
	case "local", "", "s3":
	default:
		problems = append(problems, "unknown storage_type: "+appCfg.StorageType)
	}
	if appCfg.StorageType == "s3" && appCfg.StorageS3Bucket == "" {
		problems = append(problems, "storage_s3_bucket is required for s3 storage")
	}
	switch appCfg.AuditLog {
	case auditlog.ModeAll, auditlog.ModeDB, auditlog.ModeLog, auditlog.ModeOff:
	default:
		problems = append(problems, "unknown audit_log mode: "+appCfg.AuditLog)
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
