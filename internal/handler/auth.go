package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/xid"

	"github.com/sakif/authcore/internal/apperror"
	"github.com/sakif/authcore/internal/auth"
	"github.com/sakif/authcore/internal/model"
	"github.com/sakif/authcore/internal/oauth"
	"github.com/sakif/authcore/internal/service"
)

const (
	stateCookie     = "oauth_state"
	maxRequestBytes = 1 << 20
)

var validate = validator.New()

// OauthPolicy is the server-wide ceiling on what an OAuth login may do.
// A request can narrow it but never widen it.
type OauthPolicy struct {
	AllowCreate bool
	AllowExpand bool
}

// AuthURLer builds the provider's authorization URL for a CSRF state value.
// *oauth.GitHubVerifier implements it.
type AuthURLer interface {
	AuthURL(state string) string
}

// AuthHandler exposes the authentication manager over HTTP.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create a password account
//   - HandleLogin          → email + password login, returns a session token
//   - HandleOauthLogin     → login with a provider assertion (e.g. a Google ID token)
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → exchange GitHub's code for a session
//   - HandleMe, HandleLogout, HandleSessions, HandleChangePassword → signed-in user
//
// Handlers stay thin: every decision is made by service.Manager, and
// expected outcomes come back as Result.Code values that writeOutcome maps
// to HTTP.
type AuthHandler struct {
	manager *service.Manager
	github  AuthURLer // nil when GitHub login is not configured
	policy  OauthPolicy
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(manager *service.Manager, github AuthURLer, policy OauthPolicy, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		manager: manager,
		github:  github,
		policy:  policy,
		logger:  logger,
	}
}

// =========================================================================
// REQUEST / RESPONSE SHAPES
// =========================================================================

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type oauthLoginRequest struct {
	Assertion   string `json:"assertion" validate:"required"`
	AllowCreate *bool  `json:"allowCreate"`
	AllowExpand *bool  `json:"allowExpand"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password" validate:"required"`
}

// loginResponse is returned by every endpoint that issues a session.
// The client sends Session.Token back in the x-auth header.
type loginResponse struct {
	User    *model.User    `json:"user"`
	Session *model.Session `json:"session"`
}

// sessionView is a session as listed to its owner. Tokens are never listed.
type sessionView struct {
	ID         int64     `json:"id"`
	Created    time.Time `json:"created"`
	LastAccess time.Time `json:"lastAccess"`
	Expires    time.Time `json:"expires"`
	Active     bool      `json:"active"`
	Current    bool      `json:"current"`
}

// decodeJSON reads a size-limited JSON body into dst and runs its
// validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "request body is not valid JSON")
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperror.ValidationFailed(verrs[0].Field(),
				fmt.Sprintf("%s is %s", verrs[0].Field(), verrs[0].Tag()))
		}
		return apperror.ValidationFailed("body", err.Error())
	}
	return nil
}

func newLoginResponse(res service.Result) loginResponse {
	u := *res.User
	u.Session = nil
	return loginResponse{User: &u, Session: res.Session}
}

// =========================================================================
// PUBLIC ENDPOINTS
// =========================================================================

// HandleRegister creates a password account.
//
// HTTP: POST /api/users
// Body: {"email": "...", "password": "..."}
// Response: 201 Created with the user; no session is issued.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.manager.RegisterLocal(r.Context(), req.Email, req.Password, -1)
	if err != nil {
		h.logger.Error("register failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if !res.OK() {
		writeOutcome(w, res.Code)
		return
	}

	writeJSON(w, http.StatusCreated, res.User)
}

// HandleLogin authenticates with email and password.
//
// HTTP: POST /api/login
// Response: 200 {"user": ..., "session": ...}, or the outcome code
// (401 email-unknown / password-invalid, 403 user-inactive).
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.manager.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("login failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if !res.OK() {
		writeOutcome(w, res.Code)
		return
	}

	writeJSON(w, http.StatusOK, newLoginResponse(res))
}

// HandleOauthLogin logs in with a provider assertion.
//
// HTTP: POST /api/oauth/{provider}
// Body: {"assertion": "...", "allowCreate": true, "allowExpand": false}
//
// The allow flags default to the server policy and can only narrow it.
func (h *AuthHandler) HandleOauthLogin(w http.ResponseWriter, r *http.Request) {
	var req oauthLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	allowCreate := h.policy.AllowCreate && (req.AllowCreate == nil || *req.AllowCreate)
	allowExpand := h.policy.AllowExpand && (req.AllowExpand == nil || *req.AllowExpand)

	h.oauthLogin(w, r, chi.URLParam(r, "provider"), req.Assertion, allowCreate, allowExpand)
}

// HandleProviders lists the configured OAuth providers.
//
// HTTP: GET /api/oauth/providers
func (h *AuthHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"providers": h.manager.Providers()})
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeOutcome(w, apperror.UnknownProvider)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the GitHub flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Hand the code to ProcessOauthLogin("github", ...), which exchanges it,
//     resolves the account and issues a session
//  3. Return the session like /api/login does
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeOutcome(w, apperror.UnknownProvider)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("github callback: missing state cookie")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("github callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// GitHub reports a denied authorization through the "error" parameter.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: user denied authorization", slog.String("error", errParam))
		writeOutcome(w, apperror.OauthVerificationFailed)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	h.oauthLogin(w, r, oauth.GitHubName, code, h.policy.AllowCreate, h.policy.AllowExpand)
}

func (h *AuthHandler) oauthLogin(w http.ResponseWriter, r *http.Request, provider, assertion string, allowCreate, allowExpand bool) {
	res, err := h.manager.ProcessOauthLogin(r.Context(), provider, assertion, allowCreate, allowExpand)
	if err != nil {
		h.logger.Error("oauth login failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}
	if !res.OK() {
		writeOutcome(w, res.Code)
		return
	}

	writeJSON(w, http.StatusOK, newLoginResponse(res))
}

// =========================================================================
// AUTHENTICATED ENDPOINTS (behind auth.RequireAuth)
// =========================================================================

// currentUser returns the user RequireAuth stored in the context, or
// writes 401 and returns nil.
func currentUser(w http.ResponseWriter, r *http.Request) *model.User {
	u, ok := auth.UserFromContext(r.Context())
	if !ok || u.Session == nil {
		writeOutcome(w, apperror.SessionInvalid)
		return nil
	}
	return u
}

// HandleMe returns the signed-in user with the current session attached.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r)
	if u == nil {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleLogout expires the session the request was made with. Other
// sessions of the same user stay valid.
//
// HTTP: POST /api/logout
//
// WHY POST AND NOT GET?
// Logout is a state-changing operation. Using GET would be vulnerable to
// CSRF and to browsers pre-fetching the URL.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r)
	if u == nil {
		return
	}

	if _, err := h.manager.ExpireSession(r.Context(), u.Session.Token); err != nil {
		h.logger.Error("logout failed", slog.Int64("userID", u.ID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleLogoutAll expires every session of the signed-in user.
//
// HTTP: POST /api/logout/all
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r)
	if u == nil {
		return
	}

	n, err := h.manager.ExpireSessions(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("logout all failed", slog.Int64("userID", u.ID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"expired": n})
}

// HandleSessions lists the signed-in user's sessions, newest last.
//
// HTTP: GET /api/sessions
func (h *AuthHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r)
	if u == nil {
		return
	}

	sessions, err := h.manager.Sessions(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("listing sessions failed", slog.Int64("userID", u.ID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	lifecycle := h.manager.SessionLifecycle()
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			ID:         s.ID,
			Created:    s.Created,
			LastAccess: s.LastAccess,
			Expires:    s.Expires,
			Active:     lifecycle.IsActive(s),
			Current:    s.ID == u.Session.ID,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleChangePassword replaces the signed-in user's password. Every
// session, the current one included, is expired; the client logs in again.
//
// HTTP: PUT /api/me/password
// Body: {"currentPassword": "...", "password": "..."}
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r)
	if u == nil {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.manager.ChangePassword(r.Context(), u.ID, req.CurrentPassword, req.Password)
	if err != nil {
		h.logger.Error("password change failed", slog.Int64("userID", u.ID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if !res.OK() {
		writeOutcome(w, res.Code)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
