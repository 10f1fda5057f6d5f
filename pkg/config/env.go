package config

const EnvPrefix = "VENDORR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	BackendBolt  = "bolt"
	BackendRedis = "redis"
)

const (
	EnvAppEnv            = "VENDORR_APP_ENV"
	EnvPort              = "VENDORR_APP_PORT"
	EnvDBDSN             = "VENDORR_DB_DSN"
	EnvDBDriver          = "VENDORR_DB_DRIVER"
	EnvRedisURL          = "VENDORR_REDIS_URL"
	EnvRedisAddr         = "VENDORR_REDIS_ADDR"
	EnvUpstreamURL       = "VENDORR_UPSTREAM_URL"
	EnvUpstreamTimeout   = "VENDORR_UPSTREAM_TIMEOUT"
	EnvCacheGeneration   = "VENDORR_CACHE_GENERATION"
	EnvCacheBackend      = "VENDORR_CACHE_BACKEND"
	EnvCachePrecache     = "VENDORR_CACHE_PRECACHE"
	EnvCartBackend       = "VENDORR_CART_BACKEND"
	EnvRealtimeURL       = "VENDORR_REALTIME_URL"
	EnvPubSubPushSub     = "VENDORR_PUBSUB_PUSH_SUBSCRIPTION"
	EnvCheckoutTaxRate   = "VENDORR_CHECKOUT_TAX_RATE"
	EnvSyncProbeInterval = "VENDORR_SYNC_PROBE_INTERVAL"
)
