package login

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"

	"github.com/dialkey/dialkey/internal/config"
	"github.com/dialkey/dialkey/internal/identity"
	"github.com/dialkey/dialkey/internal/pin"
	"github.com/dialkey/dialkey/internal/session"
	"github.com/dialkey/dialkey/internal/throttle"
)

const (
	bannedMessage = "Your number has been banned. Please contact an operator."

	pathRoot          = "/"
	pathAuthenticate  = "/authenticate"
	pathNoNewAccounts = "/no_new_accounts"
)

// Handler exposes the login, authenticate, and logout endpoints.
type Handler struct {
	svc      *Service
	sessions *fibersession.Store
	cfg      config.Config
	logger   *slog.Logger
}

// NewHandler builds the handler over the flow service and session store.
func NewHandler(svc *Service, sessions *fibersession.Store, cfg config.Config, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, sessions: sessions, cfg: cfg, logger: logger}
}

type loginRequest struct {
	Phone string `json:"phone" form:"phone"`
}

// Login starts a login: ban gate, attempt throttle, PIN issue, then stashes
// the raw number in the session and redirects to the verification step.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Phone) == "" {
		return fiber.NewError(http.StatusBadRequest, "phone is required")
	}

	err := h.svc.Begin(c.UserContext(), req.Phone, c.IP())
	switch {
	case err == nil:
	case errors.Is(err, throttle.ErrBanned):
		return fiber.NewError(http.StatusBadRequest, bannedMessage)
	case errors.Is(err, ErrMissingAddress):
		return fiber.NewError(http.StatusBadRequest, "remote address required")
	default:
		// A failed PIN issue with signups off most likely means an unknown
		// number knocking on a closed door; send it to the signups notice.
		if h.cfg.DisableSignups {
			return c.Redirect(pathNoNewAccounts)
		}
		h.logger.Error("login start failed", "error", err)
		return fiber.NewError(http.StatusBadRequest, "unable to start login")
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "session unavailable")
	}
	// Raw number stays in the session until the PIN comes back; it is
	// replaced by the digest on successful verification.
	sess.Set(session.FieldPhone, req.Phone)
	if err := sess.Save(); err != nil {
		return fiber.NewError(http.StatusInternalServerError, "session unavailable")
	}

	return c.Redirect(pathAuthenticate)
}

type authenticateRequest struct {
	PIN string `json:"pin" form:"pin"`
}

// Authenticate verifies the submitted PIN, resolves the identity, and
// projects it into the session.
func (h *Handler) Authenticate(c *fiber.Ctx) error {
	var req authenticateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "session unavailable")
	}
	bag := session.NewFiberBag(sess)

	rawPhone := bag.Get(session.FieldPhone)
	if rawPhone == "" || req.PIN == "" {
		return fiber.NewError(http.StatusBadRequest, "no login in progress")
	}

	id, err := h.svc.Complete(c.UserContext(), rawPhone, req.PIN)
	switch {
	case err == nil:
	case errors.Is(err, pin.ErrChallengeInvalid):
		return fiber.NewError(http.StatusBadRequest, "invalid or expired PIN")
	case errors.Is(err, identity.ErrSignupsDisabled):
		return c.Redirect(pathNoNewAccounts)
	case errors.Is(err, identity.ErrIntegrity):
		h.logger.Error("identity integrity fault", "error", err)
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	default:
		h.logger.Error("authenticate failed", "error", err)
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}

	session.Project(bag, id)
	if err := sess.Save(); err != nil {
		return fiber.NewError(http.StatusInternalServerError, "session unavailable")
	}

	return c.Redirect(pathRoot)
}

// Logout clears the caller's session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			h.logger.Warn("session destroy failed", "error", err)
		}
	}
	return c.Redirect(pathRoot)
}
