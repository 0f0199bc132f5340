package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/employee-portal/internal/domain"
)

const principalKey = "auth_principal"

type principalContextKey struct{}

// Principal represents the authenticated caller.
type Principal struct {
	Session  *domain.Session
	Employee *domain.Employee
}

// FullyAuthenticated reports whether the second factor has been passed.
func (p *Principal) FullyAuthenticated() bool {
	return p != nil && p.Session != nil && p.Session.TwoFactorComplete
}

// SetPrincipal attaches the principal to the fiber locals and the user context.
func SetPrincipal(c *fiber.Ctx, principal *Principal) {
	c.Locals(principalKey, principal)
	c.SetUserContext(ContextWithPrincipal(c.UserContext(), principal))
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal != nil
}

// ContextWithPrincipal returns a derived context containing the principal.
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFrom extracts the principal from a plain context.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	return principal, ok && principal != nil
}
