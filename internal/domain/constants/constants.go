// Package constants collects configuration values that are matched by several packages.
package constants

// Environments
const (
	EnvDevelop    = "develop"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Event publisher providers
const (
	PubSubProviderLocal    = "local"
	PubSubProviderGoogle   = "google"
	PubSubProviderRabbitMQ = "rabbitmq"
)

// View cache providers
const (
	CacheProviderMemory = "memory"
	CacheProviderRedis  = "redis"
)

// Location sample stores
const (
	TrackingStorePostgres = "postgres"
	TrackingStoreRedis    = "redis"
)

// Payment verifier providers
const (
	PaymentProviderNoop   = "noop"
	PaymentProviderStripe = "stripe"
)
