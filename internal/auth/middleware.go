package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/employee-portal/internal/domain"
)

const (
	msgInvalidCredentials = "Identifiants invalides."
	msgInvalidCode        = "Code d'authentification invalide."
)

// Authenticator is the session workflow the firewall drives.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	VerifyTwoFactor(ctx context.Context, sessionID, code string) (*domain.Session, error)
	Resolve(ctx context.Context, sessionID string) (*Principal, error)
	Logout(ctx context.Context, sessionID string) error
	RecordFailure(ctx context.Context, key string, failure domain.AuthFailure) error
	LastFailure(ctx context.Context, key string) (*domain.AuthFailure, error)
}

// FirewallConfig lists the paths the firewall owns or lets through.
type FirewallConfig struct {
	LoginPath          string
	LogoutPath         string
	LogoutTarget       string
	TwoFactorPath      string
	TwoFactorCheckPath string
	DefaultTargetPath  string
	// PublicPaths are served without any session.
	PublicPaths []string
	// TwoFactorPaths are served while the second factor is still pending.
	TwoFactorPaths    []string
	CookieName        string
	AttemptCookieName string
	CookieSecure      bool
}

// DefaultFirewallConfig returns the portal routes.
func DefaultFirewallConfig(defaultTarget string, cookieSecure bool) FirewallConfig {
	if defaultTarget == "" {
		defaultTarget = "/employes"
	}
	return FirewallConfig{
		LoginPath:          "/connexion",
		LogoutPath:         "/deconnexion",
		LogoutTarget:       "/bienvenue",
		TwoFactorPath:      "/2fa",
		TwoFactorCheckPath: "/2fa_check",
		DefaultTargetPath:  defaultTarget,
		PublicPaths:        []string{"/", "/bienvenue", "/connexion", "/inscription"},
		TwoFactorPaths:     []string{"/2fa", "/2fa/qrcode"},
		CookieName:         "EMPLOYE_SESSION",
		AttemptCookieName:  "EMPLOYE_AUTH_ATTEMPT",
		CookieSecure:       cookieSecure,
	}
}

// Firewall authenticates requests and owns the login, two-factor check and
// logout routes. Handlers behind it read the principal with PrincipalFromContext.
type Firewall struct {
	tokens *TokenManager
	auth   Authenticator
	cfg    FirewallConfig
	logger *zap.Logger
	public map[string]struct{}
	second map[string]struct{}
}

// NewFirewall constructs middleware.
func NewFirewall(tokens *TokenManager, authenticator Authenticator, cfg FirewallConfig, logger *zap.Logger) *Firewall {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Firewall{
		tokens: tokens,
		auth:   authenticator,
		cfg:    cfg,
		logger: logger.Named("firewall"),
		public: toSet(cfg.PublicPaths),
		second: toSet(cfg.TwoFactorPaths),
	}
}

// Handle enforces authentication for every route registered after it.
func (f *Firewall) Handle(c *fiber.Ctx) error {
	path := normalizePath(c.Path())

	if path == f.cfg.LoginPath && c.Method() == fiber.MethodPost {
		return f.loginCheck(c)
	}
	if path == f.cfg.LogoutPath {
		return f.logout(c)
	}

	principal, err := f.resolve(c)
	if err != nil {
		return err
	}
	if principal != nil {
		SetPrincipal(c, principal)
	}

	if path == f.cfg.TwoFactorCheckPath && c.Method() == fiber.MethodPost {
		return f.twoFactorCheck(c, principal)
	}

	if _, ok := f.public[path]; ok {
		return c.Next()
	}
	if principal == nil {
		return c.Redirect(f.cfg.LoginPath)
	}
	if !principal.FullyAuthenticated() {
		if _, ok := f.second[path]; ok {
			return c.Next()
		}
		return c.Redirect(f.cfg.TwoFactorPath)
	}
	return c.Next()
}

// LastFailure returns and forgets the last rejected attempt of this browser.
func (f *Firewall) LastFailure(c *fiber.Ctx) domain.AuthFailure {
	key := c.Cookies(f.cfg.AttemptCookieName)
	if key == "" {
		return domain.AuthFailure{}
	}
	failure, err := f.auth.LastFailure(c.UserContext(), key)
	if err != nil {
		f.logger.Warn("read auth failure", zap.Error(err))
		return domain.AuthFailure{}
	}
	if failure == nil {
		return domain.AuthFailure{}
	}
	return *failure
}

func (f *Firewall) loginCheck(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")

	session, err := f.auth.Login(c.UserContext(), email, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			f.logger.Info("login rejected", zap.String("email", email))
			if err := f.fail(c, msgInvalidCredentials, email); err != nil {
				return err
			}
			return c.Redirect(f.cfg.LoginPath)
		}
		return err
	}

	token, err := f.tokens.GenerateToken(session.ID, session.EmployeeID, session.ExpiresAt)
	if err != nil {
		return err
	}
	f.setSessionCookie(c, token, session.ExpiresAt)
	f.logger.Info("login accepted",
		zap.String("employee_id", session.EmployeeID),
		zap.Bool("two_factor_pending", !session.TwoFactorComplete))

	if session.TwoFactorComplete {
		return c.Redirect(f.cfg.DefaultTargetPath)
	}
	return c.Redirect(f.cfg.TwoFactorPath)
}

func (f *Firewall) twoFactorCheck(c *fiber.Ctx, principal *Principal) error {
	if principal == nil {
		return c.Redirect(f.cfg.LoginPath)
	}
	if principal.FullyAuthenticated() {
		return c.Redirect(f.cfg.DefaultTargetPath)
	}

	_, err := f.auth.VerifyTwoFactor(c.UserContext(), principal.Session.ID, c.FormValue("code"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTwoFactorCode) {
			f.logger.Info("two-factor code rejected", zap.String("employee_id", principal.Employee.ID))
			if err := f.fail(c, msgInvalidCode, principal.Employee.Email); err != nil {
				return err
			}
			return c.Redirect(f.cfg.TwoFactorPath)
		}
		return err
	}

	f.logger.Info("two-factor completed", zap.String("employee_id", principal.Employee.ID))
	return c.Redirect(f.cfg.DefaultTargetPath)
}

func (f *Firewall) logout(c *fiber.Ctx) error {
	if raw := c.Cookies(f.cfg.CookieName); raw != "" {
		if claims, err := f.tokens.ParseToken(raw); err == nil {
			if err := f.auth.Logout(c.UserContext(), claims.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
				return err
			}
			f.logger.Info("logout", zap.String("employee_id", claims.Subject))
		}
	}
	f.clearCookie(c, f.cfg.CookieName)
	return c.Redirect(f.cfg.LogoutTarget)
}

func (f *Firewall) resolve(c *fiber.Ctx) (*Principal, error) {
	raw := c.Cookies(f.cfg.CookieName)
	if raw == "" {
		return nil, nil
	}
	claims, err := f.tokens.ParseToken(raw)
	if err != nil {
		f.clearCookie(c, f.cfg.CookieName)
		return nil, nil
	}
	principal, err := f.auth.Resolve(c.UserContext(), claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			f.clearCookie(c, f.cfg.CookieName)
			return nil, nil
		}
		return nil, err
	}
	if principal.Employee == nil || principal.Employee.ID != claims.Subject {
		f.clearCookie(c, f.cfg.CookieName)
		return nil, nil
	}
	return principal, nil
}

func (f *Firewall) fail(c *fiber.Ctx, message, username string) error {
	key := c.Cookies(f.cfg.AttemptCookieName)
	if key == "" {
		key = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     f.cfg.AttemptCookieName,
			Value:    key,
			Path:     "/",
			HTTPOnly: true,
			Secure:   f.cfg.CookieSecure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	return f.auth.RecordFailure(c.UserContext(), key, domain.AuthFailure{Message: message, Username: username})
}

func (f *Firewall) setSessionCookie(c *fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     f.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   f.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (f *Firewall) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   f.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func normalizePath(path string) string {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
