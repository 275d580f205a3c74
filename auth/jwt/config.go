package jwt

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// SigningMethod defines supported JWT signing algorithms.
type SigningMethod string

const (
	HS256 SigningMethod = "HS256"
	HS384 SigningMethod = "HS384"
	HS512 SigningMethod = "HS512"
)

// Config configures the JWT token service.
type Config struct {
	// Secret is the HMAC signing key.
	Secret string `yaml:"secret" mapstructure:"secret"`

	// Method is the signing algorithm (default: HS256).
	Method SigningMethod `yaml:"method" mapstructure:"method"`

	// Issuer is the expected "iss" claim (optional).
	Issuer string `yaml:"issuer" mapstructure:"issuer"`

	// Audience is the expected "aud" claim (optional).
	Audience string `yaml:"audience" mapstructure:"audience"`

	// Leeway tolerates clock skew when checking exp/nbf (e.g. "30s").
	Leeway string `yaml:"leeway" mapstructure:"leeway"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = HS256
	}
	if c.Leeway == "" {
		c.Leeway = "0s"
	}
}

// Validate checks required fields for the configured signing method.
func (c *Config) Validate() error {
	switch c.Method {
	case HS256, HS384, HS512:
	default:
		return errors.New("unsupported signing method: " + string(c.Method))
	}
	if c.Secret == "" {
		return errors.New("secret is required")
	}
	if _, err := time.ParseDuration(c.Leeway); err != nil {
		return errors.New("invalid leeway: " + c.Leeway)
	}
	return nil
}

// signingMethod returns the golang-jwt SigningMethod instance.
func (c *Config) signingMethod() gojwt.SigningMethod {
	switch c.Method {
	case HS384:
		return gojwt.SigningMethodHS384
	case HS512:
		return gojwt.SigningMethodHS512
	default:
		return gojwt.SigningMethodHS256
	}
}

func (c *Config) key() []byte {
	return []byte(c.Secret)
}

func (c *Config) leeway() time.Duration {
	d, _ := time.ParseDuration(c.Leeway)
	return d
}
