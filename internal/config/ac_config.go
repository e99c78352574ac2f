package config

import "fmt"

// ACConfig is the Authentication Controller's process configuration.
type ACConfig struct {
	BaseConfig

	// MasterKey is base64-encoded, ≥32 raw bytes. It encrypts signing-key
	// private material at rest.
	MasterKey string `env:"AC_MASTER_KEY,required"`

	// HashSecret is mixed into the dummy-hash timing defense so the
	// constant comparison hash isn't a publicly known bcrypt hash.
	HashSecret string `env:"AC_HASH_SECRET,required"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// RotationNormalPeriodHours is the minimum age of the current key
	// before a scheduled rotation is eligible.
	RotationNormalPeriodHours int `env:"AC_ROTATION_NORMAL_PERIOD_HOURS" envDefault:"144"`
	// RotationMinForcePeriodMinutes bounds force-rotation frequency.
	RotationMinForcePeriodMinutes int `env:"AC_ROTATION_MIN_FORCE_PERIOD_MINUTES" envDefault:"60"`
	// KeyGraceHours is how long a rotated-out key remains valid in the JWKS.
	KeyGraceHours int `env:"AC_KEY_GRACE_HOURS" envDefault:"24"`

	ServiceTokenTTLSeconds int `env:"AC_SERVICE_TOKEN_TTL_SECONDS" envDefault:"3600"`
	MeetingTokenTTLCapSeconds int `env:"AC_MEETING_TOKEN_TTL_CAP_SECONDS" envDefault:"900"`
}

func (c *ACConfig) Validate() error {
	if c.BcryptCost < 10 || c.BcryptCost > 14 {
		return fmt.Errorf("BCRYPT_COST must be in [10,14], got %d", c.BcryptCost)
	}
	if len(c.MasterKey) == 0 {
		return fmt.Errorf("AC_MASTER_KEY is required")
	}
	return nil
}
