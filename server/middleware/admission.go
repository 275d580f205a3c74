package middleware

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/logger"
)

// AdmissionConfig restricts internal routes to callers from trusted networks.
type AdmissionConfig struct {
	// AllowedCIDRs lists trusted networks ("10.0.0.0/8") or single addresses.
	// An empty list admits every caller.
	AllowedCIDRs []string `yaml:"allowed_cidrs" mapstructure:"allowed_cidrs"`
}

// Validate checks that every entry parses.
func (c *AdmissionConfig) Validate() error {
	_, err := parsePrefixes(c.AllowedCIDRs)
	return err
}

// Admission returns a Gin middleware that answers 403 FORBIDDEN to callers
// whose address falls outside the allowlist. Host bits in an entry are ignored.
func Admission(cfg AdmissionConfig, log *logger.Logger) (gin.HandlerFunc, error) {
	prefixes, err := parsePrefixes(cfg.AllowedCIDRs)
	if err != nil {
		return nil, err
	}
	log = log.WithComponent("admission")

	return func(c *gin.Context) {
		if len(prefixes) == 0 {
			c.Next()
			return
		}
		if admitted(prefixes, c.RemoteIP()) {
			c.Next()
			return
		}
		log.Warn("Caller rejected", logger.Fields("client_ip", c.RemoteIP(), "path", c.Request.URL.Path))
		appErr := apperrors.Forbidden("")
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
	}, nil
}

func admitted(prefixes []netip.Prefix, remote string) bool {
	addr, err := netip.ParseAddr(remote)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func parsePrefixes(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, raw := range entries {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			addr, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("admission: invalid address %q: %w", s, err)
			}
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("admission: invalid cidr %q: %w", s, err)
		}
		if p.Addr().Is4In6() {
			bits := p.Bits() - 96
			if bits < 0 {
				return nil, fmt.Errorf("admission: invalid cidr %q", s)
			}
			p = netip.PrefixFrom(p.Addr().Unmap(), bits)
		}
		prefixes = append(prefixes, p.Masked())
	}
	return prefixes, nil
}
