package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	Upstream UpstreamConfig
	Cache    CacheConfig
	Cart     CartConfig
	Checkout CheckoutConfig
	Sync     SyncConfig
	Realtime RealtimeConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Eventing EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Upstream.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Cache.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	if (cfg.Cache.UsesRedis() || cfg.Cart.UsesRedis()) && !cfg.Redis.Enabled() {
		return nil, fmt.Errorf("%s or %s is required for the redis backend", EnvRedisURL, EnvRedisAddr)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VENDORR_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDORR_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"VENDORR_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"VENDORR_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"VENDORR_LOG_WARN_STACK" default:"false"`
	AllowOrigins string `envconfig:"VENDORR_ALLOW_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Origins splits the configured CORS origins.
func (a AppConfig) Origins() []string {
	return splitList(a.AllowOrigins)
}

// ServiceConfig names the deployment role; it is stamped on every log entry.
type ServiceConfig struct {
	Kind string `envconfig:"VENDORR_SERVICE_KIND" default:"edge"`
}

type DBConfig struct {
	DSN    string `envconfig:"VENDORR_DB_DSN" default:"file:vendorr-edge.db?_busy_timeout=5000"`
	Driver string `envconfig:"VENDORR_DB_DRIVER" default:"sqlite"`

	MaxOpenConns    int           `envconfig:"VENDORR_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"VENDORR_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"VENDORR_DB_AUTO_MIGRATE" default:"true"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORR_REDIS_URL"`
	Address      string        `envconfig:"VENDORR_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORR_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type UpstreamConfig struct {
	BaseURL string        `envconfig:"VENDORR_UPSTREAM_URL" required:"true"`
	Timeout time.Duration `envconfig:"VENDORR_UPSTREAM_TIMEOUT" default:"10s"`
}

func (u UpstreamConfig) validate() error {
	parsed, err := url.Parse(u.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvUpstreamURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvUpstreamURL)
	}
	return nil
}

type CacheConfig struct {
	Generation    string `envconfig:"VENDORR_CACHE_GENERATION" default:"vendorr-v1.0.0"`
	Backend       string `envconfig:"VENDORR_CACHE_BACKEND" default:"bolt"`
	BoltPath      string `envconfig:"VENDORR_BOLT_PATH" default:"vendorr-edge.bolt"`
	Precache      string `envconfig:"VENDORR_CACHE_PRECACHE" default:"/,/index.html,/manifest.json,/assets/icon-192x192.svg,/assets/icon-512x512.svg,/offline.html"`
	APIPrefix     string `envconfig:"VENDORR_CACHE_API_PREFIX" default:"/api/"`
	OfflinePage   string `envconfig:"VENDORR_CACHE_OFFLINE_PAGE" default:"/offline.html"`
	AutoTakeOver  bool   `envconfig:"VENDORR_CACHE_AUTO_TAKEOVER" default:"true"`
	MaxEntryBytes int64  `envconfig:"VENDORR_CACHE_MAX_ENTRY_BYTES" default:"5242880"`
}

// Manifest returns the critical asset paths that must be pre-cached on install.
func (c CacheConfig) Manifest() []string {
	return splitList(c.Precache)
}

func (c CacheConfig) validate() error {
	if strings.TrimSpace(c.Generation) == "" {
		return fmt.Errorf("%s is required", EnvCacheGeneration)
	}
	return validateBackend(EnvCacheBackend, c.Backend)
}

func (c CacheConfig) UsesRedis() bool {
	return isRedis(c.Backend)
}

type CartConfig struct {
	Backend       string        `envconfig:"VENDORR_CART_BACKEND" default:"bolt"`
	StorageKey    string        `envconfig:"VENDORR_CART_STORAGE_KEY" default:"vendorr-cart"`
	MaxSessions   int           `envconfig:"VENDORR_CART_MAX_SESSIONS" default:"10000"`
	IdleTTL       time.Duration `envconfig:"VENDORR_CART_IDLE_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"VENDORR_CART_SWEEP_INTERVAL" default:"1m"`
}

func (c CartConfig) validate() error {
	return validateBackend(EnvCartBackend, c.Backend)
}

func (c CartConfig) UsesRedis() bool {
	return isRedis(c.Backend)
}

type CheckoutConfig struct {
	TaxRate       string `envconfig:"VENDORR_CHECKOUT_TAX_RATE" default:"0.08"`
	MaxReceiptMB  int    `envconfig:"VENDORR_CHECKOUT_MAX_RECEIPT_MB" default:"10"`
	PaymentMethod string `envconfig:"VENDORR_CHECKOUT_PAYMENT_METHOD" default:"bank_transfer"`
}

type SyncConfig struct {
	ProbeInterval            time.Duration `envconfig:"VENDORR_SYNC_PROBE_INTERVAL" default:"15s"`
	NotificationSyncInterval time.Duration `envconfig:"VENDORR_SYNC_NOTIFICATION_INTERVAL" default:"5m"`
	MailboxSize              int           `envconfig:"VENDORR_SYNC_MAILBOX_SIZE" default:"64"`
	ReplayBatchSize          int           `envconfig:"VENDORR_SYNC_REPLAY_BATCH_SIZE" default:"100"`
	LockTTL                  time.Duration `envconfig:"VENDORR_SYNC_LOCK_TTL" default:"2m"`
}

type RealtimeConfig struct {
	URL            string        `envconfig:"VENDORR_REALTIME_URL"`
	Token          string        `envconfig:"VENDORR_REALTIME_TOKEN"`
	Heartbeat      time.Duration `envconfig:"VENDORR_REALTIME_HEARTBEAT" default:"30s"`
	ReconnectDelay time.Duration `envconfig:"VENDORR_REALTIME_RECONNECT_DELAY" default:"3s"`
}

func (r RealtimeConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type GCPConfig struct {
	ProjectID string `envconfig:"VENDORR_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PushSubscription string `envconfig:"VENDORR_PUBSUB_PUSH_SUBSCRIPTION"`
	MaxOutstanding   int    `envconfig:"VENDORR_PUBSUB_MAX_OUTSTANDING" default:"16"`
}

func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.PushSubscription) != ""
}

type EventingConfig struct {
	PushIdempotencyTTL time.Duration `envconfig:"VENDORR_EVENTING_IDEMPOTENCY_TTL" default:"72h"`
}

func isRedis(backend string) bool {
	return strings.EqualFold(strings.TrimSpace(backend), BackendRedis)
}

func validateBackend(env, backend string) error {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendBolt, BackendRedis:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", env, BackendBolt, BackendRedis, backend)
	}
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
