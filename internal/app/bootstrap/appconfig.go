// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// Values come from flags, TOURDESK_* environment variables, config files and
// defaults (loaded in LoadConfig). WAFFLE's CoreConfig covers the framework
// level: ports, TLS, log level and the environment name.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Bearer token configuration
	JWTSecret    string        // HS256 signing secret (32+ chars in production)
	JWTExpiresIn time.Duration // Token lifetime (default: 7 days)

	// Login throttling
	LoginRatePerMinute     int           // Login requests per minute per client IP (0 disables)
	RateLimitLoginAttempts int           // Failed logins per email before lockout (default: 5)
	RateLimitLoginWindow   time.Duration // Window for counting failed logins (default: 15m)
	RateLimitLoginLockout  time.Duration // Lockout duration (default: 15m)

	// CORS origins for /api; empty allows any origin
	CORSOrigins []string

	// Media storage configuration
	StorageType string // Storage backend: "local" or "s3"
	UploadDir   string // Local storage path (e.g., "./uploads")
	UploadURL   string // URL prefix for serving local files (e.g., "/uploads")
	MaxFileSize int64  // Largest accepted upload in bytes (default: 5 MiB)

	// S3/CloudFront configuration (only used if StorageType is "s3")
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string
	StorageCFURL       string
	StorageCFKeyPairID string
	StorageCFKeyPath   string

	// Audit destinations: "all" (MongoDB + zap), "db", "log" or "off"
	AuditLog string

	// Admin seeding configuration
	SeedAdminEmail    string
	SeedAdminPassword string
	SeedAdminName     string
}
