package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/employee-portal/internal/api/dto"
	"github.com/spec-kit/employee-portal/internal/api/http/views"
	"github.com/spec-kit/employee-portal/internal/auth"
	"github.com/spec-kit/employee-portal/internal/domain"
)

type memoryEmployees struct {
	store   map[string]*domain.Employee
	writes  int
	updated []string
}

func newMemoryEmployees() *memoryEmployees {
	return &memoryEmployees{store: map[string]*domain.Employee{}}
}

func (m *memoryEmployees) NewEmployee() *domain.Employee {
	return &domain.Employee{Status: domain.EmployeeStatusCDI, ArrivalDate: time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)}
}

func (m *memoryEmployees) Register(_ context.Context, e *domain.Employee, plain string) (*domain.Employee, error) {
	for _, existing := range m.store {
		if strings.EqualFold(existing.Email, e.Email) {
			return nil, domain.ErrEmailAlreadyUsed
		}
	}
	m.writes++
	stored := e.Clone()
	stored.ID = uuid.NewString()
	stored.PasswordHash = "bcrypt(" + plain + ")"
	stored.TwoFactorSecret = "JBSWY3DPEHPK3PXP"
	m.store[stored.ID] = stored
	return stored.Clone(), nil
}

func (m *memoryEmployees) List(context.Context) ([]domain.Employee, error) {
	list := make([]domain.Employee, 0, len(m.store))
	for _, e := range m.store {
		list = append(list, *e.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].LastName < list[j].LastName })
	return list, nil
}

func (m *memoryEmployees) Get(_ context.Context, id string) (*domain.Employee, error) {
	e, ok := m.store[id]
	if !ok {
		return nil, domain.ErrEmployeeNotFound
	}
	return e.Clone(), nil
}

func (m *memoryEmployees) Update(_ context.Context, current *domain.Employee, mutate func(*domain.Employee)) (*domain.Employee, error) {
	if _, ok := m.store[current.ID]; !ok {
		return nil, domain.ErrEmployeeNotFound
	}
	candidate := current.Clone()
	mutate(candidate)
	m.writes++
	m.updated = append(m.updated, current.ID)
	m.store[current.ID] = candidate
	return candidate.Clone(), nil
}

func (m *memoryEmployees) Delete(_ context.Context, id string) error {
	if _, ok := m.store[id]; !ok {
		return domain.ErrEmployeeNotFound
	}
	m.writes++
	delete(m.store, id)
	return nil
}

func (m *memoryEmployees) seed(e domain.Employee) *domain.Employee {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.store[e.ID] = &e
	return e.Clone()
}

type stubFailures struct{ failure domain.AuthFailure }

func (s stubFailures) LastFailure(*fiber.Ctx) domain.AuthFailure { return s.failure }

// principalMiddleware stands in for the firewall.
func principalMiddleware(principal *auth.Principal) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if principal != nil {
			auth.SetPrincipal(c, principal)
		}
		return c.Next()
	}
}

func newTestApp(t *testing.T, employees EmployeeService, principal *auth.Principal, failures FailureReader) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{Views: views.NewEngine()})
	app.Use(principalMiddleware(principal))

	h := NewEmployeeHandler(employees, auth.NewTwoFactorProvider("Employee Portal"), failures, dto.NewValidator(), EmployeeHandlerConfig{DefaultTargetPath: "/employes"})
	app.Get("/bienvenue", h.Welcome)
	app.Get("/connexion", h.LoginForm)
	app.Get("/deconnexion", h.Logout)
	app.Get("/2fa/qrcode", h.QRCode)
	app.Get("/2fa", h.TwoFactor)
	app.Get("/inscription", h.Register)
	app.Post("/inscription", h.Register)
	app.Get("/employes", h.List)
	app.Get("/employes/:id", h.View)
	app.Get("/employes/:id/supprimer", h.Delete)
	app.Get("/employes/:id/editer", h.Edit)
	app.Post("/employes/:id/editer", h.Edit)
	return app
}

func authenticated(e *domain.Employee) *auth.Principal {
	return &auth.Principal{Session: &domain.Session{ID: "sess-1", EmployeeID: e.ID, TwoFactorComplete: true}, Employee: e}
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestWelcomeAndLoginForm(t *testing.T) {
	app := newTestApp(t, newMemoryEmployees(), nil, stubFailures{failure: domain.AuthFailure{Message: "Identifiants invalides.", Username: "alice@example.com"}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/bienvenue", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Bienvenue")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/connexion", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Identifiants invalides.")
	assert.Contains(t, body, `value="alice@example.com"`)
}

func TestLogoutHandlerFailsFast(t *testing.T) {
	app := fiber.New(fiber.Config{Views: views.NewEngine()})
	h := NewEmployeeHandler(newMemoryEmployees(), nil, stubFailures{}, nil, EmployeeHandlerConfig{})
	app.Get("/deconnexion", h.Logout)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/deconnexion", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestQRCodeReturnsPNG(t *testing.T) {
	employees := newMemoryEmployees()
	emp := employees.seed(domain.Employee{FirstName: "Alice", LastName: "Durand", Email: "alice@example.com", TwoFactorSecret: "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"})
	pending := &auth.Principal{Session: &domain.Session{ID: "sess-1", EmployeeID: emp.ID}, Employee: emp}
	app := newTestApp(t, employees, pending, stubFailures{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/2fa/qrcode", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG\r\n\x1a\n")))
}

func TestQRCodeWithoutSecret(t *testing.T) {
	employees := newMemoryEmployees()
	emp := employees.seed(domain.Employee{Email: "bob@example.com"})
	app := newTestApp(t, employees, authenticated(emp), stubFailures{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/2fa/qrcode", nil))
	require.NoError(t, err)
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestTwoFactorPageEmbedsQRCode(t *testing.T) {
	employees := newMemoryEmployees()
	emp := employees.seed(domain.Employee{Email: "alice@example.com", TwoFactorSecret: "JBSWY3DPEHPK3PXP"})
	pending := &auth.Principal{Session: &domain.Session{ID: "sess-1", EmployeeID: emp.ID}, Employee: emp}
	app := newTestApp(t, employees, pending, stubFailures{failure: domain.AuthFailure{Message: "Code d'authentification invalide."}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/2fa", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `src="/2fa/qrcode"`)
	assert.Contains(t, body, `action="/2fa_check"`)
	assert.Contains(t, body, "Code d&#39;authentification invalide.")
}

func TestRegisterThenListScenario(t *testing.T) {
	employees := newMemoryEmployees()
	app := newTestApp(t, employees, nil, stubFailures{})

	resp, err := app.Test(postForm("/inscription", url.Values{
		"nom":      {"Durand"},
		"prenom":   {"Alice"},
		"email":    {"alice@example.com"},
		"password": {"secret123"},
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/employes", resp.Header.Get(fiber.HeaderLocation))

	listed, err := employees.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.NotEqual(t, "secret123", listed[0].PasswordHash)
	assert.NotEmpty(t, listed[0].TwoFactorSecret)
	assert.Equal(t, domain.EmployeeStatusCDI, listed[0].Status)

	viewer := authenticated(&listed[0])
	listApp := newTestApp(t, employees, viewer, stubFailures{})
	resp, err = listApp.Test(httptest.NewRequest(http.MethodGet, "/employes", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Equal(t, 1, strings.Count(body, "/supprimer"))
	assert.Contains(t, body, "Alice Durand")
	assert.NotContains(t, body, "secret123")
}

func TestRegisterInvalidFormEchoesValues(t *testing.T) {
	employees := newMemoryEmployees()
	app := newTestApp(t, employees, nil, stubFailures{})

	resp, err := app.Test(postForm("/inscription", url.Values{
		"nom":      {"Durand"},
		"prenom":   {"Alice"},
		"email":    {"not-an-email"},
		"password": {"secret123"},
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `value="Durand"`)
	assert.Contains(t, body, `value="not-an-email"`)
	assert.Contains(t, body, "Adresse e-mail invalide.")
	assert.Zero(t, employees.writes)
}

func TestRegisterDuplicateEmailIsFieldError(t *testing.T) {
	employees := newMemoryEmployees()
	employees.seed(domain.Employee{Email: "alice@example.com"})
	app := newTestApp(t, employees, nil, stubFailures{})

	resp, err := app.Test(postForm("/inscription", url.Values{
		"nom":      {"Durand"},
		"prenom":   {"Alice"},
		"email":    {"alice@example.com"},
		"password": {"secret123"},
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "déjà utilisée")
	assert.Len(t, employees.store, 1)
}

func TestRegisterFormGET(t *testing.T) {
	app := newTestApp(t, newMemoryEmployees(), nil, stubFailures{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/inscription", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `action="/inscription"`)
}

func TestMissingEmployeeRedirectsWithoutMutation(t *testing.T) {
	employees := newMemoryEmployees()
	emp := employees.seed(domain.Employee{LastName: "Durand", Email: "alice@example.com"})
	app := newTestApp(t, employees, authenticated(emp), stubFailures{})

	missing := uuid.NewString()
	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/employes/"+missing, nil),
		httptest.NewRequest(http.MethodGet, "/employes/"+missing+"/supprimer", nil),
		httptest.NewRequest(http.MethodGet, "/employes/"+missing+"/editer", nil),
		postForm("/employes/"+missing+"/editer", url.Values{"nom": {"X"}, "prenom": {"Y"}, "email": {"x@example.com"}, "statut": {"CDD"}, "date_arrivee": {"2024-01-01"}}),
	}
	for _, req := range requests {
		t.Run(req.Method+" "+req.URL.Path, func(t *testing.T) {
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, "/employes", resp.Header.Get(fiber.HeaderLocation))
		})
	}
	assert.Zero(t, employees.writes)
	assert.Len(t, employees.store, 1)
}

func TestViewEmployee(t *testing.T) {
	employees := newMemoryEmployees()
	emp := employees.seed(domain.Employee{FirstName: "Alice", LastName: "Durand", Email: "alice@example.com", Status: domain.EmployeeStatusCDD, ArrivalDate: time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)})
	app := newTestApp(t, employees, authenticated(emp), stubFailures{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/employes/"+emp.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Alice Durand")
	assert.Contains(t, body, "17/05/2024")
	assert.NotContains(t, body, "<form")
}

func TestDeleteEmployee(t *testing.T) {
	employees := newMemoryEmployees()
	emp := employees.seed(domain.Employee{Email: "alice@example.com"})
	app := newTestApp(t, employees, authenticated(emp), stubFailures{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/employes/"+emp.ID+"/supprimer", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/employes", resp.Header.Get(fiber.HeaderLocation))

	_, err = employees.Get(context.Background(), emp.ID)
	assert.ErrorIs(t, err, domain.ErrEmployeeNotFound)
}

func TestEditEmployee(t *testing.T) {
	employees := newMemoryEmployees()
	emp := employees.seed(domain.Employee{FirstName: "Alice", LastName: "Durand", Email: "alice@example.com", Status: domain.EmployeeStatusCDI, ArrivalDate: time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), PasswordHash: "bcrypt(x)"})
	other := employees.seed(domain.Employee{FirstName: "Bob", LastName: "Martin", Email: "bob@example.com"})
	app := newTestApp(t, employees, authenticated(emp), stubFailures{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/employes/"+emp.ID+"/editer", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `value="2024-05-17"`)
	assert.Contains(t, body, `<option value="CDI" selected>`)

	resp, err = app.Test(postForm("/employes/"+emp.ID+"/editer", url.Values{
		"nom":          {"Dupont"},
		"prenom":       {"Alice"},
		"email":        {"alice@example.com"},
		"statut":       {"Freelance"},
		"date_arrivee": {"2023-09-04"},
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/employes", resp.Header.Get(fiber.HeaderLocation))

	updated, err := employees.Get(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.Equal(t, emp.ID, updated.ID)
	assert.Equal(t, "Dupont", updated.LastName)
	assert.Equal(t, domain.EmployeeStatusFreelance, updated.Status)
	assert.Equal(t, time.Date(2023, 9, 4, 0, 0, 0, 0, time.UTC), updated.ArrivalDate)
	assert.Equal(t, "bcrypt(x)", updated.PasswordHash)
	assert.Equal(t, []string{emp.ID}, employees.updated)

	untouched, err := employees.Get(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, "Martin", untouched.LastName)
}

func TestEditEmployeeInvalidForm(t *testing.T) {
	employees := newMemoryEmployees()
	emp := employees.seed(domain.Employee{FirstName: "Alice", LastName: "Durand", Email: "alice@example.com", Status: domain.EmployeeStatusCDI})
	app := newTestApp(t, employees, authenticated(emp), stubFailures{})

	resp, err := app.Test(postForm("/employes/"+emp.ID+"/editer", url.Values{
		"nom":          {""},
		"prenom":       {"Alice"},
		"email":        {"alice@example.com"},
		"statut":       {"Stage"},
		"date_arrivee": {"2023-09-04"},
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Ce champ est obligatoire.")
	assert.Contains(t, body, "Valeur non autorisée.")
	assert.Contains(t, body, `value="2023-09-04"`)
	assert.Zero(t, employees.writes)

	stored, err := employees.Get(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Durand", stored.LastName)
}

type failingEmployees struct{ *memoryEmployees }

func (failingEmployees) List(context.Context) ([]domain.Employee, error) {
	return nil, errors.New("db down")
}

func TestListPropagatesStorageErrors(t *testing.T) {
	app := newTestApp(t, failingEmployees{newMemoryEmployees()}, nil, stubFailures{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/employes", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
