package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/AtoyanMikhail/tasks-auth/internal/config"
	"github.com/AtoyanMikhail/tasks-auth/internal/credentials"
	"github.com/AtoyanMikhail/tasks-auth/internal/logger"
	"github.com/AtoyanMikhail/tasks-auth/internal/models"
	repomodels "github.com/AtoyanMikhail/tasks-auth/internal/repository/models"
	"github.com/AtoyanMikhail/tasks-auth/internal/session"
	"github.com/go-playground/validator/v10"
)

// SessionService is the session lifecycle used by the handlers.
type SessionService interface {
	Login(ctx context.Context, subjectID string, meta session.Metadata) (*session.TokenPair, error)
	Refresh(ctx context.Context, raw string, meta session.Metadata) (*session.TokenPair, error)
	Logout(ctx context.Context, raw string) error
	LogoutAll(ctx context.Context, subjectID string) (int64, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

const maxBodyBytes = 1 << 20

type Handler struct {
	sessions   SessionService
	principals repomodels.PrincipalRepository
	hasher     PasswordHasher
	cookies    cookieJar
	validate   *validator.Validate
	logger     logger.Logger
}

func NewHandler(
	sessions SessionService,
	principals repomodels.PrincipalRepository,
	hasher PasswordHasher,
	cookieCfg config.CookieConfig,
	l logger.Logger,
) *Handler {
	return &Handler{
		sessions:   sessions,
		principals: principals,
		hasher:     hasher,
		cookies:    cookieJar{cfg: cookieCfg, now: time.Now},
		validate:   validator.New(),
		logger:     l,
	}
}

// Register creates a principal and starts its first session.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterReq
	if !h.decode(w, r, &req) {
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.Error("Failed to hash password", logger.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}

	p := &repomodels.Principal{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := h.principals.Create(r.Context(), p); err != nil {
		if errors.Is(err, repomodels.ErrPrincipalExists) {
			writeMessage(w, http.StatusConflict, "User already exists")
			return
		}
		h.logger.Error("Failed to register principal", logger.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}

	h.startSession(w, r, p.ID, http.StatusCreated)
}

// Login checks credentials and starts a new session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginReq
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.principals.FindByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("Failed to look up principal", logger.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}

	hash := ""
	if p != nil {
		hash = p.PasswordHash
	}
	if err := h.hasher.Compare(hash, req.Password); err != nil {
		if !errors.Is(err, credentials.ErrMismatch) {
			h.logger.Error("Failed to verify password", logger.Error(err))
		}
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if err := h.principals.TouchLastLogin(r.Context(), p.ID); err != nil {
		h.logger.Warn("Failed to record last login", logger.String("subject_id", p.ID), logger.Error(err))
	}

	h.startSession(w, r, p.ID, http.StatusOK)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, subjectID string, status int) {
	pair, err := h.sessions.Login(r.Context(), subjectID, metadataOf(r))
	if err != nil {
		writeSessionError(w, err)
		return
	}

	h.cookies.setPair(w, pair)
	writeJSON(w, status, models.TokensRes{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// Refresh rotates the presented refresh token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := h.refreshToken(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), raw, metadataOf(r))
	if err != nil {
		switch session.KindOf(err) {
		case session.KindNoToken, session.KindExpired, session.KindInvalid, session.KindReuse:
			h.cookies.clear(w)
		case session.KindInternal:
			h.logger.Error("Refresh failed", logger.Error(err))
		}
		writeSessionError(w, err)
		return
	}

	h.cookies.setPair(w, pair)
	writeJSON(w, http.StatusOK, models.TokensRes{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// Logout ends the current session; it succeeds when there is nothing to end.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	// a body that does not decode still leaves the cookie to log out with
	raw, err := h.refreshToken(r)
	if err != nil {
		h.logger.Debug("Ignoring malformed logout body", logger.Error(err))
	}

	if err := h.sessions.Logout(r.Context(), raw); err != nil {
		h.logger.Error("Logout failed", logger.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to log out.")
		return
	}

	h.cookies.clear(w)
	if raw == "" {
		writeMessage(w, http.StatusOK, "Already logged out or no token provided.")
		return
	}
	writeMessage(w, http.StatusOK, "Logged out successfully.")
}

// LogoutAll revokes every session of the authenticated principal.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeSessionError(w, session.ErrNoToken)
		return
	}

	n, err := h.sessions.LogoutAll(r.Context(), p.ID)
	if err != nil {
		h.logger.Error("Logout from all devices failed", logger.String("subject_id", p.ID), logger.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to log out from all devices.")
		return
	}

	h.cookies.clear(w)
	writeJSON(w, http.StatusOK, models.LogoutAllRes{
		Message: "Logged out from all devices successfully.",
		Revoked: n,
	})
}

// Me returns the authenticated principal.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeSessionError(w, session.ErrNoToken)
		return
	}

	writeJSON(w, http.StatusOK, models.PrincipalRes{
		ID:          p.ID,
		Name:        p.Name,
		Email:       p.Email,
		LastLoginAt: p.LastLoginAt,
		CreatedAt:   p.CreatedAt,
	})
}

// refreshToken reads the token from the JSON body, falling back to the cookie.
// On a malformed body it returns the cookie value together with the decode error.
func (h *Handler) refreshToken(r *http.Request) (string, error) {
	var req models.RefreshReq
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return h.cookies.refresh(r), err
	}

	if req.RefreshToken != "" {
		return req.RefreshToken, nil
	}
	return h.cookies.refresh(r), nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fe.Field()+": "+fe.Tag())
			}
			writeJSON(w, http.StatusBadRequest, models.MessageRes{Message: "Validation failed", Errors: details})
			return false
		}
		writeMessage(w, http.StatusBadRequest, "Validation failed")
		return false
	}
	return true
}

func metadataOf(r *http.Request) session.Metadata {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return session.Metadata{DeviceName: r.UserAgent(), SourceAddress: addr}
}
