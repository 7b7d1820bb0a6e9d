package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const principalContextKey = "tradepost.principal"

// principal is the authenticated caller, as resolved by the platform edge.
type principal struct {
	ID string
}

// IdentityResolver maps an incoming request to a caller id. Token parsing is
// owned by the platform's auth tier; the messaging core only consumes the
// result.
type IdentityResolver interface {
	Resolve(c *gin.Context) (string, bool)
}

// GatewayIdentity trusts the user id header stamped by the API gateway after
// it has verified the session token.
type GatewayIdentity struct {
	Header string
}

func (g GatewayIdentity) Resolve(c *gin.Context) (string, bool) {
	header := g.Header
	if header == "" {
		header = "X-User-ID"
	}
	id := strings.TrimSpace(c.GetHeader(header))
	return id, id != ""
}

// IdentityMiddleware attaches the resolved principal to the request context.
type IdentityMiddleware struct {
	Resolver IdentityResolver
}

func (m IdentityMiddleware) Handle(c *gin.Context) {
	if m.Resolver != nil {
		if id, ok := m.Resolver.Resolve(c); ok {
			c.Set(principalContextKey, principal{ID: id})
		}
	}
	c.Next()
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireUser(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	return p, true
}
