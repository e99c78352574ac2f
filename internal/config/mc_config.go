package config

// MCConfig is the Meeting Controller's process configuration.
type MCConfig struct {
	BaseConfig

	GRPCPort int `env:"GRPC_PORT" envDefault:"9091"`

	// BindingTokenSecret is base64 of ≥32 raw bytes (see SPEC_FULL.md open
	// question #1), used to HMAC session binding tokens.
	BindingTokenSecret string `env:"MC_BINDING_TOKEN_SECRET,required"`

	GCEndpoint     string `env:"GC_ENDPOINT,required"`
	ACEndpoint     string `env:"AC_ENDPOINT,required"`
	MCClientID     string `env:"MC_CLIENT_ID,required"`
	MCClientSecret string `env:"MC_CLIENT_SECRET,required"`

	ControllerID         string `env:"MC_CONTROLLER_ID,required"`
	Region               string `env:"MC_REGION,required"`
	GRPCAdvertiseAddr    string `env:"MC_GRPC_ADVERTISE_ADDR,required"`
	WebtransportAddr     string `env:"MC_WEBTRANSPORT_ADVERTISE_ADDR"`
	CapacityMeetings     int    `env:"MC_CAPACITY_MEETINGS" envDefault:"500"`
	CapacityParticipants int    `env:"MC_CAPACITY_PARTICIPANTS" envDefault:"5000"`

	RecoveryBufferSeconds int `env:"MC_RECOVERY_BUFFER_SECONDS" envDefault:"30"`
	SessionTokenTTLSeconds int `env:"MC_SESSION_TOKEN_TTL_SECONDS" envDefault:"300"`

	RegistrationMaxAttempts     int `env:"MC_REGISTRATION_MAX_ATTEMPTS" envDefault:"20"`
	RegistrationDeadlineSeconds int `env:"MC_REGISTRATION_DEADLINE_SECONDS" envDefault:"300"`
}
