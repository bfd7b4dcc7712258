package keyczar

import "github.com/rs/zerolog"

// config holds configuration shared by the operation facades.
type config struct {
	logger          zerolog.Logger
	decryptInactive bool
}

func defaultConfig() config {
	return config{
		logger:          zerolog.Nop(),
		decryptInactive: true,
	}
}

// Option configures an operation facade.
type Option func(*config)

// WithLogger sets an audit logger for key-set operations. Events carry the
// operation, key-set name and key version; key material is never logged.
// The default logger discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithInactiveDecryption controls whether Inactive key versions may still
// decrypt old payloads. Verification always accepts Inactive versions;
// decryption accepts them by default, and this option tightens that.
func WithInactiveDecryption(enabled bool) Option {
	return func(c *config) {
		c.decryptInactive = enabled
	}
}
