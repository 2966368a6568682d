package login

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"

	"github.com/dialkey/dialkey/internal/config"
	"github.com/dialkey/dialkey/internal/logging"
	"github.com/dialkey/dialkey/internal/session"
)

func setupApp(t *testing.T, cfg config.Config) (*fiber.App, *flowDeps) {
	t.Helper()

	svc, deps := newFlow(t, cfg)
	sessions := fibersession.New()
	handler := NewHandler(svc, sessions, cfg, logging.Discard())

	app := fiber.New()
	app.Post("/login", handler.Login)
	app.Post("/authenticate", handler.Authenticate)
	app.Get("/logout", handler.Logout)

	// Test-only introspection of the projected session.
	app.Get("/whoami", func(c *fiber.Ctx) error {
		sess, err := sessions.Get(c)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "session unavailable")
		}
		bag := session.NewFiberBag(sess)
		return c.JSON(fiber.Map{
			"phone": bag.Get(session.FieldPhone),
			"uid":   bag.Get(session.FieldUID),
			"name":  bag.Get(session.FieldName),
			"op":    bag.Get(session.FieldOperator),
		})
	})

	return app, deps
}

func formRequest(path, body string, cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	return req
}

func TestLoginFlowEndToEnd(t *testing.T) {
	app, deps := setupApp(t, config.Config{})

	resp, err := app.Test(formRequest("/login", url.Values{"phone": {"555-123-4567"}}.Encode(), nil))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get(fiber.HeaderLocation); loc != "/authenticate" {
		t.Fatalf("expected redirect to /authenticate, got %q", loc)
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected session cookie")
	}
	if deps.sender.code == "" {
		t.Fatalf("expected a delivered code")
	}

	resp, err = app.Test(formRequest("/authenticate", url.Values{"pin": {deps.sender.code}}.Encode(), cookies))
	if err != nil {
		t.Fatalf("authenticate request: %v", err)
	}
	if resp.StatusCode != fiber.StatusFound {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected redirect, got %d: %s", resp.StatusCode, body)
	}
	if loc := resp.Header.Get(fiber.HeaderLocation); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("whoami request: %v", err)
	}
	var who struct {
		Phone string `json:"phone"`
		UID   string `json:"uid"`
		Name  string `json:"name"`
		Op    string `json:"op"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&who); err != nil {
		t.Fatalf("decode whoami: %v", err)
	}
	if who.UID == "" {
		t.Fatalf("expected uid in session")
	}
	if who.Phone == "" || strings.Contains(who.Phone, "555") {
		t.Fatalf("session phone must be the digest, got %q", who.Phone)
	}
	if who.Name != "" {
		t.Fatalf("new user has no name, got %q", who.Name)
	}
	if who.Op != "" {
		t.Fatalf("regular user must not carry the operator marker")
	}
}

func TestLoginRejectsBannedAddressWithMessage(t *testing.T) {
	app, deps := setupApp(t, config.Config{})

	// httptest requests originate from 0.0.0.0 under Fiber's default config.
	if err := deps.bans.Ban(context.Background(), "0.0.0.0"); err != nil {
		t.Fatalf("seed ban: %v", err)
	}

	resp, err := app.Test(formRequest("/login", url.Values{"phone": {"5551234567"}}.Encode(), nil))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "banned") {
		t.Fatalf("expected ban message, got %q", body)
	}
	if deps.sender.sends != 0 {
		t.Fatalf("banned caller must not receive a PIN")
	}
}

func TestAuthenticateWithoutPendingLogin(t *testing.T) {
	app, _ := setupApp(t, config.Config{})

	resp, err := app.Test(formRequest("/authenticate", url.Values{"pin": {"123456"}}.Encode(), nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAuthenticateWrongCodeIsGenericFailure(t *testing.T) {
	app, deps := setupApp(t, config.Config{})

	resp, err := app.Test(formRequest("/login", url.Values{"phone": {"5551234567"}}.Encode(), nil))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	cookies := resp.Cookies()

	wrong := "000000"
	if wrong == deps.sender.code {
		wrong = "000001"
	}
	resp, err = app.Test(formRequest("/authenticate", url.Values{"pin": {wrong}}.Encode(), cookies))
	if err != nil {
		t.Fatalf("authenticate request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	// Deliberately generic: wrong and expired codes produce the same message.
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "invalid or expired PIN" {
		t.Fatalf("unexpected failure message %q", body)
	}
}

func TestLogoutResetsSession(t *testing.T) {
	app, deps := setupApp(t, config.Config{})

	resp, err := app.Test(formRequest("/login", url.Values{"phone": {"5551234567"}}.Encode(), nil))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	cookies := resp.Cookies()

	if _, err = app.Test(formRequest("/authenticate", url.Values{"pin": {deps.sender.code}}.Encode(), cookies)); err != nil {
		t.Fatalf("authenticate request: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/logout", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("logout request: %v", err)
	}
	if resp.StatusCode != fiber.StatusFound || resp.Header.Get(fiber.HeaderLocation) != "/" {
		t.Fatalf("expected redirect to /, got %d %q", resp.StatusCode, resp.Header.Get(fiber.HeaderLocation))
	}

	req = httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("whoami request: %v", err)
	}
	var who map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&who); err != nil {
		t.Fatalf("decode whoami: %v", err)
	}
	if who["uid"] != "" || who["phone"] != "" {
		t.Fatalf("expected cleared session, got %v", who)
	}
}
