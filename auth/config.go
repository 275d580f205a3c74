package auth

import (
	"fmt"

	"github.com/kbukum/notify/auth/jwt"
)

// Config holds stream authentication configuration.
type Config struct {
	// JWT configures token verification.
	JWT jwt.Config `yaml:"jwt" mapstructure:"jwt"`

	// UserIDClaim names the claim that carries the recipient id (default: "sub").
	UserIDClaim string `yaml:"user_id_claim" mapstructure:"user_id_claim"`

	// ScopesClaim names the claim that carries granted scopes (default: "scopes").
	ScopesClaim string `yaml:"scopes_claim" mapstructure:"scopes_claim"`

	// QueryParam is the query parameter checked before the Authorization
	// header (default: "token").
	QueryParam string `yaml:"query_param" mapstructure:"query_param"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	c.JWT.ApplyDefaults()
	if c.UserIDClaim == "" {
		c.UserIDClaim = "sub"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scopes"
	}
	if c.QueryParam == "" {
		c.QueryParam = "token"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.JWT.Validate(); err != nil {
		return fmt.Errorf("auth.jwt: %w", err)
	}
	if c.UserIDClaim == "" {
		return fmt.Errorf("auth: user_id_claim is required")
	}
	return nil
}

// Describe returns a human-readable one-liner for the startup summary.
func (c *Config) Describe() string {
	return fmt.Sprintf("JWT(%s) user=%s scopes=%s", c.JWT.Method, c.UserIDClaim, c.ScopesClaim)
}
