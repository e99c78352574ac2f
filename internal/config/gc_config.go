package config

// GCConfig is the Global Controller's process configuration.
type GCConfig struct {
	BaseConfig

	GRPCPort int `env:"GRPC_PORT" envDefault:"9090"`

	ACEndpoint     string `env:"AC_ENDPOINT,required"`
	GCClientID     string `env:"GC_CLIENT_ID,required"`
	GCClientSecret string `env:"GC_CLIENT_SECRET,required"`

	// StalenessThresholdSeconds is how long without a heartbeat before a
	// fleet member is marked unhealthy.
	StalenessThresholdSeconds int `env:"GC_STALENESS_THRESHOLD_SECONDS" envDefault:"30"`
	FastHeartbeatIntervalSeconds          int `env:"GC_FAST_HEARTBEAT_INTERVAL_SECONDS" envDefault:"10"`
	ComprehensiveHeartbeatIntervalSeconds int `env:"GC_COMPREHENSIVE_HEARTBEAT_INTERVAL_SECONDS" envDefault:"30"`

	AssignmentMaxRetries int `env:"GC_ASSIGNMENT_MAX_RETRIES" envDefault:"3"`
	RPCTimeoutSeconds    int `env:"GC_RPC_TIMEOUT_SECONDS" envDefault:"5"`
}
