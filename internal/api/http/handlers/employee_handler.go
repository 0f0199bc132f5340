package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/employee-portal/internal/api/dto"
	"github.com/spec-kit/employee-portal/internal/api/http/views"
	"github.com/spec-kit/employee-portal/internal/auth"
	"github.com/spec-kit/employee-portal/internal/domain"
	apperrors "github.com/spec-kit/employee-portal/pkg/util"
)

const listPath = "/employes"

// EmployeeService is the employee workflow the controller drives.
type EmployeeService interface {
	NewEmployee() *domain.Employee
	Register(ctx context.Context, employee *domain.Employee, plainPassword string) (*domain.Employee, error)
	List(ctx context.Context) ([]domain.Employee, error)
	Get(ctx context.Context, id string) (*domain.Employee, error)
	Update(ctx context.Context, current *domain.Employee, mutate func(*domain.Employee)) (*domain.Employee, error)
	Delete(ctx context.Context, id string) error
}

// QRCodeRenderer produces the provisioning QR of an employee.
type QRCodeRenderer interface {
	QRContent(employee *domain.Employee) (string, error)
	QRCodePNG(content string) ([]byte, error)
}

// FailureReader returns the last rejected authentication of the browser.
type FailureReader interface {
	LastFailure(c *fiber.Ctx) domain.AuthFailure
}

// EmployeeHandlerConfig holds route targets.
type EmployeeHandlerConfig struct {
	DefaultTargetPath  string
	TwoFactorCheckPath string
	QRCodePath         string
}

// EmployeeHandler serves the authentication screens and employee CRUD.
type EmployeeHandler struct {
	employees EmployeeService
	qr        QRCodeRenderer
	failures  FailureReader
	validator *dto.Validator
	cfg       EmployeeHandlerConfig
}

// NewEmployeeHandler constructs handler.
func NewEmployeeHandler(employees EmployeeService, qr QRCodeRenderer, failures FailureReader, validator *dto.Validator, cfg EmployeeHandlerConfig) *EmployeeHandler {
	if cfg.DefaultTargetPath == "" {
		cfg.DefaultTargetPath = listPath
	}
	if cfg.TwoFactorCheckPath == "" {
		cfg.TwoFactorCheckPath = "/2fa_check"
	}
	if cfg.QRCodePath == "" {
		cfg.QRCodePath = "/2fa/qrcode"
	}
	if validator == nil {
		validator = dto.NewValidator()
	}
	return &EmployeeHandler{employees: employees, qr: qr, failures: failures, validator: validator, cfg: cfg}
}

// Welcome handles GET /bienvenue.
func (h *EmployeeHandler) Welcome(c *fiber.Ctx) error {
	return h.render(c, "auth/bienvenue", fiber.Map{"Title": "Bienvenue"})
}

// LoginForm handles GET /connexion.
func (h *EmployeeHandler) LoginForm(c *fiber.Ctx) error {
	failure := h.failures.LastFailure(c)
	return h.render(c, "auth/login", fiber.Map{
		"Title": "Connexion",
		"Email": failure.Username,
		"Error": failure.Message,
	})
}

// Logout handles GET /deconnexion. The firewall answers that route, so
// reaching this handler means the middleware chain is misconfigured.
func (h *EmployeeHandler) Logout(c *fiber.Ctx) error {
	return apperrors.NewInternalError(errors.New("logout must be handled by the firewall"))
}

// QRCode handles GET /2fa/qrcode.
func (h *EmployeeHandler) QRCode(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	if !principal.Employee.HasTwoFactor() {
		return apperrors.NewNotFound("two-factor secret")
	}
	content, err := h.qr.QRContent(principal.Employee)
	if err != nil {
		return err
	}
	png, err := h.qr.QRCodePNG(content)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(http.StatusOK).Send(png)
}

// TwoFactor handles GET /2fa.
func (h *EmployeeHandler) TwoFactor(c *fiber.Ctx) error {
	failure := h.failures.LastFailure(c)
	return h.render(c, "auth/2fa", fiber.Map{
		"Title":     "Double authentification",
		"QRCode":    h.cfg.QRCodePath,
		"CheckPath": h.cfg.TwoFactorCheckPath,
		"Error":     failure.Message,
	})
}

// Register handles GET and POST /inscription.
func (h *EmployeeHandler) Register(c *fiber.Ctx) error {
	employee := h.employees.NewEmployee()
	form := dto.RegisterForm{}
	errs := dto.FieldErrors{}

	if c.Method() == fiber.MethodPost {
		if err := c.BodyParser(&form); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
		form.Normalize()

		fields, err := h.validator.Validate(&form)
		if err != nil {
			return err
		}
		if fields == nil {
			form.ApplyTo(employee)
			_, err := h.employees.Register(c.UserContext(), employee, form.Password)
			switch {
			case err == nil:
				return c.Redirect(h.cfg.DefaultTargetPath)
			case errors.Is(err, domain.ErrEmailAlreadyUsed):
				errs.Add("email", "Cette adresse e-mail est déjà utilisée.")
			default:
				return err
			}
		} else {
			errs = fields
		}
	}

	return h.render(c, "auth/register", fiber.Map{
		"Title":  "Inscription",
		"Form":   form,
		"Errors": errs,
	})
}

// List handles GET /employes.
func (h *EmployeeHandler) List(c *fiber.Ctx) error {
	employees, err := h.employees.List(c.UserContext())
	if err != nil {
		return err
	}
	return h.render(c, "employe/liste", fiber.Map{
		"Title":     "Employés",
		"Employees": dto.NewEmployeeViews(employees),
	})
}

// View handles GET /employes/:id.
func (h *EmployeeHandler) View(c *fiber.Ctx) error {
	employee, err := h.employees.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.redirectIfMissing(c, err)
	}
	return h.render(c, "employe/employe", fiber.Map{
		"Title":    employee.FullName(),
		"Employee": dto.NewEmployeeView(employee),
	})
}

// Delete handles GET /employes/:id/supprimer.
func (h *EmployeeHandler) Delete(c *fiber.Ctx) error {
	if err := h.employees.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.redirectIfMissing(c, err)
	}
	return c.Redirect(listPath)
}

// Edit handles GET and POST /employes/:id/editer.
func (h *EmployeeHandler) Edit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	employee, err := h.employees.Get(ctx, c.Params("id"))
	if err != nil {
		return h.redirectIfMissing(c, err)
	}

	form := dto.NewEmployeeForm(employee)
	errs := dto.FieldErrors{}

	if c.Method() == fiber.MethodPost {
		form = dto.EmployeeForm{}
		if err := c.BodyParser(&form); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
		form.Normalize()

		fields, err := h.validator.Validate(&form)
		if err != nil {
			return err
		}
		if fields == nil {
			_, err := h.employees.Update(ctx, employee, form.ApplyTo)
			switch {
			case err == nil:
				return c.Redirect(listPath)
			case errors.Is(err, domain.ErrEmailAlreadyUsed):
				errs.Add("email", "Cette adresse e-mail est déjà utilisée.")
			default:
				return h.redirectIfMissing(c, err)
			}
		} else {
			errs = fields
		}
	}

	return h.render(c, "employe/employe", fiber.Map{
		"Title":    employee.FullName(),
		"Employee": dto.NewEmployeeView(employee),
		"Form":     &form,
		"Errors":   errs,
		"Statuses": domain.EmployeeStatuses(),
	})
}

func (h *EmployeeHandler) redirectIfMissing(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrEmployeeNotFound) {
		return c.Redirect(listPath)
	}
	return err
}

func (h *EmployeeHandler) render(c *fiber.Ctx, name string, bind fiber.Map) error {
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.FullyAuthenticated() {
		bind["CurrentEmployee"] = principal.Employee.FullName()
	}
	return c.Render(name, bind, views.Layout)
}
