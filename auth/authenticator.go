package auth

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/notify/auth/jwt"
	"github.com/kbukum/notify/errors"
)

const bearerPrefix = "Bearer "

// Identity is the authenticated caller of a stream or history request.
type Identity struct {
	RecipientID string
	Scopes      []string
}

// HasScope reports whether the identity was granted scope.
func (i Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Authenticator resolves an Identity from a request's bearer token.
type Authenticator struct {
	cfg Config
	svc *jwt.Service[gojwt.MapClaims]
}

// NewAuthenticator creates an Authenticator from cfg.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	svc, err := jwt.NewService(&cfg.JWT, func() gojwt.MapClaims { return gojwt.MapClaims{} })
	if err != nil {
		return nil, err
	}
	return &Authenticator{cfg: cfg, svc: svc}, nil
}

// Authenticate extracts and verifies the request token. The query parameter
// wins over the Authorization header. Every failure is a 401 AppError.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	token := a.extract(r)
	if token == "" {
		return Identity{}, errors.Unauthorized("Missing token.")
	}

	claims, err := a.svc.Parse(token)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, errors.TokenExpired().WithCause(err)
		}
		return Identity{}, errors.InvalidToken("Invalid token.").WithCause(err)
	}

	recipient := claimString(claims[a.cfg.UserIDClaim])
	if recipient == "" {
		return Identity{}, errors.InvalidToken("Invalid user claim.")
	}
	return Identity{RecipientID: recipient, Scopes: claimScopes(claims[a.cfg.ScopesClaim])}, nil
}

func (a *Authenticator) extract(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get(a.cfg.QueryParam)); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	return ""
}

// claimString renders a scalar claim. Numeric ids decode as float64.
func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// claimScopes accepts a JSON array or a space-separated string.
func claimScopes(v any) []string {
	switch t := v.(type) {
	case string:
		return strings.Fields(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if str, ok := s.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
