// Package auth authenticates stream and history callers.
//
// Subpackages:
//
//   - auth/jwt      HMAC JWT service over golang-jwt, generic in its claims type
//   - auth/authctx  type-safe request context propagation for the Identity
//
// A token is read from the "token" query parameter (browsers cannot set
// headers on EventSource) and otherwise from "Authorization: Bearer".
//
//	auth:
//	  jwt:
//	    secret: "change-me"
//	    method: "HS256"
//	  user_id_claim: "sub"
//	  scopes_claim: "scopes"
package auth
