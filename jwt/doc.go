// Package jwt wraps github.com/golang-jwt/jwt/v5 with the narrow token policy
// twogate needs: HS256 only, pinned signing method, mandatory expiry, bounded
// leeway. Tokens reference a server-side session and carry no authorization
// data of their own.
package jwt
