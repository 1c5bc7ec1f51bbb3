package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/authcore/internal/apperror"
	"github.com/sakif/authcore/internal/auth"
	"github.com/sakif/authcore/internal/model"
	"github.com/sakif/authcore/internal/oauth"
	"github.com/sakif/authcore/internal/repository"
)

// Operation names passed to an OutcomeRecorder.
const (
	OpRegister     = "register"
	OpLogin        = "login"
	OpCheckSession = "check_session"
	OpOauthLogin   = "oauth_login"
)

// defaultTokenAttempts bounds how often session issuance is retried after
// a token collision.
const defaultTokenAttempts = 3

// errOutcome aborts a transaction whose result is an expected outcome
// (a non-empty Result.Code) rather than a fault.
var errOutcome = errors.New("service: transaction rolled back for outcome")

// Result is what every authentication operation returns.
//
// Code is empty on success. Expected failures (wrong password, unknown
// email, ...) come back as a Code with a nil error; the error return is
// reserved for faults such as an unreachable database.
type Result struct {
	User    *model.User
	Session *model.Session
	Code    apperror.Code
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Code == ""
}

// OutcomeRecorder receives the outcome of every authentication attempt.
// code is empty for a success.
type OutcomeRecorder interface {
	RecordOutcome(operation string, code apperror.Code)
}

// Option customises a Manager.
type Option func(*Manager)

// WithSessionDaysValid sets the session validity window in days.
func WithSessionDaysValid(days int) Option {
	return func(m *Manager) { m.sessionDays = days }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithUserDecorator registers fn to run on every user loaded from or
// created in the store, before it is returned to the caller.
func WithUserDecorator(fn func(*model.User)) Option {
	return func(m *Manager) { m.decorate = fn }
}

// WithRegistry uses r for OAuth provider lookups instead of an empty registry.
func WithRegistry(r *oauth.Registry) Option {
	return func(m *Manager) { m.verifiers = r }
}

// WithRecorder reports every authentication outcome to rec.
func WithRecorder(rec OutcomeRecorder) Option {
	return func(m *Manager) { m.recorder = rec }
}

// Manager is the authentication core. It composes the password policy,
// the session lifecycle and the OAuth registry behind a small set of
// operations, all of which are safe for concurrent use.
//
// Manager holds no per-request state. Each call returns the resolved user
// and session in its Result instead of remembering a "current user".
type Manager struct {
	store     repository.Store
	passwords *auth.PasswordPolicy
	sessions  *SessionLifecycle
	verifiers *oauth.Registry
	logger    *slog.Logger

	sessionDays   int
	now           func() time.Time
	decorate      func(*model.User)
	recorder      OutcomeRecorder
	tokenAttempts int
}

// NewManager creates a Manager over store.
func NewManager(store repository.Store, passwords *auth.PasswordPolicy, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		passwords:     passwords,
		logger:        logger,
		sessionDays:   DefaultSessionDaysValid,
		now:           time.Now,
		tokenAttempts: defaultTokenAttempts,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.verifiers == nil {
		m.verifiers = oauth.NewRegistry()
	}
	m.sessions = NewSessionLifecycle(m.sessionDays, m.now)
	return m
}

// SessionLifecycle exposes the lifecycle, e.g. to report the validity window.
func (m *Manager) SessionLifecycle() *SessionLifecycle {
	return m.sessions
}

// Providers returns the names of the registered OAuth verifiers.
func (m *Manager) Providers() []string {
	return m.verifiers.Names()
}

// RegisterVerifier adds an OAuth verifier. Registering a second verifier
// under the same name fails with apperror.DuplicateProvider.
func (m *Manager) RegisterVerifier(v oauth.Verifier) error {
	if err := m.verifiers.Register(v); err != nil {
		return fmt.Errorf("service: registering verifier: %w", err)
	}
	return nil
}

// =========================================================================
// REGISTRATION
// =========================================================================

// RegisterLocal creates a password account. The email is trimmed and
// lower-cased before use. minStrength overrides the policy's strength
// threshold for this call; a negative value keeps the configured one.
//
// No session is issued; call Login afterwards to sign the user in.
func (m *Manager) RegisterLocal(ctx context.Context, email, password string, minStrength int) (Result, error) {
	res, err := m.registerLocal(ctx, email, password, minStrength)
	m.record(OpRegister, res, err)
	return res, err
}

func (m *Manager) registerLocal(ctx context.Context, email, password string, minStrength int) (Result, error) {
	email = model.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return Result{Code: apperror.EmailInvalid}, nil
	}

	exists, err := m.EmailExists(ctx, email)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{Code: apperror.EmailExists}, nil
	}

	policy := m.passwords
	if minStrength >= 0 {
		policy = policy.WithMinStrength(minStrength)
	}
	hash, err := policy.Hash(password, email)
	if err != nil {
		if code, ok := apperror.CodeOf(err); ok {
			return Result{Code: code}, nil
		}
		return Result{}, fmt.Errorf("service: hashing password: %w", err)
	}

	u := model.NewLocalUser(email, hash, m.clock())
	return m.insertUser(ctx, u)
}

// RegisterSocial creates an account for an already verified provider
// identity, without going through the link resolver.
func (m *Manager) RegisterSocial(ctx context.Context, email, provider, providerUserID string) (Result, error) {
	email = model.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		m.record(OpRegister, Result{Code: apperror.EmailInvalid}, nil)
		return Result{Code: apperror.EmailInvalid}, nil
	}
	if provider == "" || providerUserID == "" {
		return Result{}, apperror.ValidationFailed("provider", "provider and provider user id are required")
	}

	res, err := m.registerSocial(ctx, model.NewSocialUser(email, provider, providerUserID, m.clock()))
	m.record(OpRegister, res, err)
	return res, err
}

func (m *Manager) registerSocial(ctx context.Context, u *model.User) (Result, error) {
	exists, err := m.EmailExists(ctx, u.Email)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{Code: apperror.EmailExists}, nil
	}

	linked, err := identityLinked(ctx, m.store, *u.OAuthService, *u.OAuthID)
	if err != nil {
		return Result{}, err
	}
	if linked {
		return Result{Code: apperror.OauthIDUnknown}, nil
	}
	return m.insertUser(ctx, u)
}

func (m *Manager) insertUser(ctx context.Context, u *model.User) (Result, error) {
	id, err := m.store.Insert(ctx, repository.TableUsers, userColumns(u))
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent registration for the same email.
		return Result{Code: apperror.EmailExists}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("service: creating user: %w", err)
	}
	u.ID = id

	m.logger.Info("user registered",
		slog.Int64("userID", u.ID),
		slog.Bool("local", u.HasPassword()),
	)
	return Result{User: m.hydrated(u)}, nil
}

// =========================================================================
// PASSWORD LOGIN
// =========================================================================

// Login authenticates with email and password and issues a new session.
//
// The gates run in a fixed order: EmailUnknown, then PasswordInvalid, then
// UserInactive. A hash made with outdated parameters is upgraded on the
// way through; failing to store the upgraded hash is logged and does not
// fail the login.
func (m *Manager) Login(ctx context.Context, email, password string) (Result, error) {
	res, err := m.login(ctx, email, password)
	m.record(OpLogin, res, err)
	return res, err
}

func (m *Manager) login(ctx context.Context, email, password string) (Result, error) {
	u, err := getUser(ctx, m.store, repository.Eq("email", model.NormalizeEmail(email)))
	if err != nil {
		return Result{}, fmt.Errorf("service: login: %w", err)
	}
	if u == nil {
		return Result{Code: apperror.EmailUnknown}, nil
	}

	if !u.HasPassword() || !m.passwords.Verify(password, *u.PasswordHash) {
		return Result{Code: apperror.PasswordInvalid}, nil
	}
	if m.passwords.NeedsRehash(*u.PasswordHash) {
		m.rehash(ctx, u, password)
	}

	if !u.Active {
		return Result{User: m.hydrated(u), Code: apperror.UserInactive}, nil
	}

	var s *model.Session
	err = m.withTokenRetry(ctx, func() error {
		return repository.WithTx(ctx, m.store, func(q repository.Querier) error {
			var err error
			s, err = m.startSession(ctx, q, u)
			return err
		})
	})
	if err != nil {
		return Result{}, fmt.Errorf("service: login: %w", err)
	}

	m.logger.Info("user logged in", slog.Int64("userID", u.ID), slog.Int64("sessionID", s.ID))
	return Result{User: m.hydrated(u), Session: s}, nil
}

// rehash upgrades u's stored hash. It is best-effort: any failure is logged.
func (m *Manager) rehash(ctx context.Context, u *model.User, password string) {
	hash, err := m.passwords.Rehash(password)
	if err == nil {
		_, err = m.store.Update(ctx, repository.TableUsers,
			repository.Row{"password_hash": hash},
			repository.Eq("id", u.ID))
	}
	if err != nil {
		m.logger.Warn("password rehash failed",
			slog.Int64("userID", u.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	u.PasswordHash = &hash
	m.logger.Info("password hash upgraded", slog.Int64("userID", u.ID))
}

// =========================================================================
// SESSIONS
// =========================================================================

// CheckSession authenticates a bearer token. On success the session is
// touched (its expiry extended) and returned attached to its user.
func (m *Manager) CheckSession(ctx context.Context, token string) (Result, error) {
	res, err := m.checkSession(ctx, token)
	m.record(OpCheckSession, res, err)
	return res, err
}

func (m *Manager) checkSession(ctx context.Context, token string) (Result, error) {
	if token == "" {
		return Result{Code: apperror.SessionInvalid}, nil
	}

	s, err := m.sessions.Lookup(ctx, m.store, token)
	if errors.Is(err, apperror.ErrNotFound) {
		return Result{Code: apperror.SessionInvalid}, nil
	}
	if err != nil {
		return Result{}, err
	}

	u, err := getUser(ctx, m.store, repository.Eq("id", s.UserID))
	if err != nil {
		return Result{}, fmt.Errorf("service: loading session owner: %w", err)
	}
	if u == nil {
		return Result{}, fmt.Errorf("service: session %d has no user %d", s.ID, s.UserID)
	}
	if !u.Active {
		return Result{User: m.hydrated(u), Code: apperror.UserInactive}, nil
	}

	touched, err := m.sessions.Touch(ctx, m.store, s)
	if errors.Is(err, apperror.ErrNotFound) {
		// Expired between Lookup and Touch.
		return Result{Code: apperror.SessionInvalid}, nil
	}
	if err != nil {
		return Result{}, err
	}
	u.Session = touched
	return Result{User: m.hydrated(u), Session: touched}, nil
}

// SessionUser adapts CheckSession to auth.SessionCheckFunc: it returns the
// user for a valid token, (nil, nil) for any rejected token and an error
// only for faults.
func (m *Manager) SessionUser(ctx context.Context, token string) (*model.User, error) {
	res, err := m.CheckSession(ctx, token)
	if err != nil || !res.OK() {
		return nil, err
	}
	return res.User, nil
}

// ExpireSession logs a single session out. It reports whether the token
// matched a session.
func (m *Manager) ExpireSession(ctx context.Context, token string) (bool, error) {
	ok, err := m.sessions.Expire(ctx, m.store, token)
	if err != nil {
		return false, err
	}
	if ok {
		m.logger.Info("session expired")
	}
	return ok, nil
}

// ExpireSessions logs every session of userID out and returns how many
// active sessions were expired.
func (m *Manager) ExpireSessions(ctx context.Context, userID int64) (int64, error) {
	n, err := m.sessions.ExpireAll(ctx, m.store, userID)
	if err != nil {
		return 0, err
	}
	m.logger.Info("sessions expired", slog.Int64("userID", userID), slog.Int64("count", n))
	return n, nil
}

// Sessions lists every session row of userID, including expired ones.
func (m *Manager) Sessions(ctx context.Context, userID int64) ([]*model.Session, error) {
	return m.sessions.List(ctx, m.store, userID)
}

// startSession issues a session for u and stamps lastLogin, on q.
func (m *Manager) startSession(ctx context.Context, q repository.Querier, u *model.User) (*model.Session, error) {
	s, err := m.sessions.Issue(ctx, q, u.ID)
	if err != nil {
		return nil, err
	}
	if _, err := q.Update(ctx, repository.TableUsers,
		repository.Row{"last_login": s.Created.Unix()},
		repository.Eq("id", u.ID)); err != nil {
		return nil, fmt.Errorf("service: updating last login of user %d: %w", u.ID, err)
	}
	u.LastLogin = s.Created
	u.Session = s
	return s, nil
}

// withTokenRetry runs fn again when it fails with ErrTokenCollision.
// fn must open its own transaction: Postgres refuses further statements in
// a transaction after a failed insert.
func (m *Manager) withTokenRetry(ctx context.Context, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, ErrTokenCollision) || attempt >= m.tokenAttempts {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		m.logger.Warn("session token collision, retrying", slog.Int("attempt", attempt))
	}
}

// =========================================================================
// OAUTH LOGIN
// =========================================================================

// ProcessOauthLogin logs in with a provider assertion.
//
// The verifier registered under provider checks the assertion; the
// verified identity is then resolved against the account with the same
// email (see ResolveOauthLink). allowCreate permits creating a new account
// and allowExpand permits linking the identity to an existing password
// account that has none.
//
// Every write (account creation or link, session, lastLogin) happens in one
// transaction, which is rolled back for any outcome other than success.
func (m *Manager) ProcessOauthLogin(ctx context.Context, provider, assertion string, allowCreate, allowExpand bool) (Result, error) {
	res, err := m.processOauthLogin(ctx, provider, assertion, allowCreate, allowExpand)
	m.record(OpOauthLogin, res, err)
	return res, err
}

func (m *Manager) processOauthLogin(ctx context.Context, provider, assertion string, allowCreate, allowExpand bool) (Result, error) {
	v, err := m.verifiers.Lookup(provider)
	if err != nil {
		return Result{Code: apperror.UnknownProvider}, nil
	}

	id, err := v.Verify(ctx, assertion)
	if err != nil {
		m.logger.Warn("oauth verification failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		return Result{Code: apperror.OauthVerificationFailed}, nil
	}
	id.Provider = v.Name()
	id.Email = model.NormalizeEmail(id.Email)
	if err := validateEmail(id.Email); err != nil {
		m.logger.Warn("oauth identity has invalid email", slog.String("provider", provider))
		return Result{Code: apperror.EmailInvalid}, nil
	}

	var res Result
	err = m.withTokenRetry(ctx, func() error {
		return repository.WithTx(ctx, m.store, func(q repository.Querier) error {
			var err error
			res, err = m.resolveOauth(ctx, q, id, allowCreate, allowExpand)
			if err != nil {
				return err
			}
			if !res.OK() {
				return errOutcome
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, errOutcome) {
		return Result{}, fmt.Errorf("service: oauth login: %w", err)
	}
	if res.User != nil {
		res.User = m.hydrated(res.User)
	}
	if !res.OK() {
		m.logger.Warn("oauth login rejected",
			slog.String("provider", id.Provider),
			slog.String("code", string(res.Code)),
		)
	}
	return res, nil
}

func (m *Manager) resolveOauth(ctx context.Context, q repository.Querier, id oauth.Identity, allowCreate, allowExpand bool) (Result, error) {
	existing, err := getUser(ctx, q, repository.Eq("email", id.Email))
	if err != nil {
		return Result{}, err
	}

	r := ResolveOauthLink(existing, id, allowCreate, allowExpand, m.clock())
	u := r.User

	switch r.Action {
	case ActionRejected:
		return Result{User: u, Code: r.Code}, nil

	case ActionCreated, ActionExpanded:
		// The (service, id) pair is UNIQUE; another account already holding
		// it is a conflict, not a fault.
		linked, err := identityLinked(ctx, q, id.Provider, id.ProviderUserID)
		if err != nil {
			return Result{}, err
		}
		if linked {
			return Result{User: existing, Code: apperror.OauthIDUnknown}, nil
		}

		if r.Action == ActionCreated {
			newID, err := q.Insert(ctx, repository.TableUsers, userColumns(u))
			if errors.Is(err, repository.ErrDuplicate) {
				return Result{Code: apperror.EmailExists}, nil
			}
			if err != nil {
				return Result{}, fmt.Errorf("creating social user: %w", err)
			}
			u.ID = newID
		} else {
			if _, err := q.Update(ctx, repository.TableUsers,
				repository.Row{"oauth_id": *u.OAuthID, "oauth_service": *u.OAuthService},
				repository.Eq("id", u.ID)); err != nil {
				return Result{}, fmt.Errorf("linking identity to user %d: %w", u.ID, err)
			}
		}
		m.logger.Info("oauth identity linked",
			slog.Int64("userID", u.ID),
			slog.String("provider", id.Provider),
			slog.String("action", r.Action.String()),
		)
	}

	s, err := m.startSession(ctx, q, u)
	if err != nil {
		return Result{}, err
	}
	return Result{User: u, Session: s}, nil
}

func identityLinked(ctx context.Context, q repository.Querier, service, providerUserID string) (bool, error) {
	ok, err := q.Exists(ctx, repository.TableUsers,
		repository.Eq("oauth_service", service),
		repository.Eq("oauth_id", providerUserID))
	if err != nil {
		return false, fmt.Errorf("service: checking linked identity: %w", err)
	}
	return ok, nil
}

// =========================================================================
// ACCOUNT MAINTENANCE
// =========================================================================

// SavePassword replaces the user's password. The new password goes through
// the full policy (length and strength). Every session of the user is
// expired in the same transaction, so other devices have to log in again.
func (m *Manager) SavePassword(ctx context.Context, userID int64, password string) (Result, error) {
	u, err := m.GetUserByID(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	hash, err := m.passwords.Hash(password, u.Email)
	if err != nil {
		if code, ok := apperror.CodeOf(err); ok {
			return Result{User: u, Code: code}, nil
		}
		return Result{}, fmt.Errorf("service: hashing password: %w", err)
	}

	err = repository.WithTx(ctx, m.store, func(q repository.Querier) error {
		if _, err := q.Update(ctx, repository.TableUsers,
			repository.Row{"password_hash": hash},
			repository.Eq("id", userID)); err != nil {
			return err
		}
		_, err := m.sessions.ExpireAll(ctx, q, userID)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("service: saving password of user %d: %w", userID, err)
	}

	u.PasswordHash = &hash
	m.logger.Info("password changed", slog.Int64("userID", userID))
	return Result{User: u}, nil
}

// ChangePassword is SavePassword for a signed-in user: when the account
// already has a password, current must match it (PasswordInvalid otherwise).
// Federated-only accounts may set a first password without one.
func (m *Manager) ChangePassword(ctx context.Context, userID int64, current, password string) (Result, error) {
	u, err := m.GetUserByID(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if u.HasPassword() && !m.passwords.Verify(current, *u.PasswordHash) {
		return Result{User: u, Code: apperror.PasswordInvalid}, nil
	}
	return m.SavePassword(ctx, userID, password)
}

// SetActive enables or disables an account. Disabling also expires all of
// its sessions.
func (m *Manager) SetActive(ctx context.Context, userID int64, active bool) error {
	err := repository.WithTx(ctx, m.store, func(q repository.Querier) error {
		n, err := q.Update(ctx, repository.TableUsers,
			repository.Row{"active": active},
			repository.Eq("id", userID))
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("user", fmt.Sprint(userID))
		}
		if !active {
			_, err = m.sessions.ExpireAll(ctx, q, userID)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("service: setting active=%t on user %d: %w", active, userID, err)
	}
	m.logger.Info("user active flag changed", slog.Int64("userID", userID), slog.Bool("active", active))
	return nil
}

// UpdateUser writes every persisted field of u back to the store.
func (m *Manager) UpdateUser(ctx context.Context, u *model.User) error {
	if u == nil || u.ID == 0 {
		return apperror.ValidationFailed("id", "user has not been persisted")
	}
	if (u.OAuthID == nil) != (u.OAuthService == nil) {
		return apperror.ValidationFailed("oauthId", "oauth id and service must be set together")
	}
	u.Email = model.NormalizeEmail(u.Email)
	if err := validateEmail(u.Email); err != nil {
		return err
	}

	row := userColumns(u)
	delete(row, "created")

	n, err := m.store.Update(ctx, repository.TableUsers, row, repository.Eq("id", u.ID))
	if errors.Is(err, repository.ErrDuplicate) {
		return apperror.WithCode(apperror.Conflict("user", fmt.Sprint(u.ID)), apperror.EmailExists)
	}
	if err != nil {
		return fmt.Errorf("service: updating user %d: %w", u.ID, err)
	}
	if n == 0 {
		return apperror.NotFound("user", fmt.Sprint(u.ID))
	}
	return nil
}

// PurgeUsers deletes the given users and all their sessions in one
// transaction. It returns the number of users deleted.
func (m *Manager) PurgeUsers(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := repository.WithTx(ctx, m.store, func(q repository.Querier) error {
		if _, err := q.Delete(ctx, repository.TableSessions, repository.In("user_id", ids)); err != nil {
			return err
		}
		n, err := q.Delete(ctx, repository.TableUsers, repository.In("id", ids))
		deleted = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("service: purging users: %w", err)
	}

	m.logger.Info("users purged", slog.Int64("count", deleted))
	return deleted, nil
}

// =========================================================================
// LOOKUPS
// =========================================================================

// GetUsers returns the users with the given ids, or every user when no id
// is given, ordered by id.
func (m *Manager) GetUsers(ctx context.Context, ids ...int64) ([]*model.User, error) {
	var where []repository.Cond
	if len(ids) > 0 {
		where = append(where, repository.In("id", ids))
	}

	rows, err := m.store.GetMany(ctx, repository.TableUsers, where...)
	if err != nil {
		return nil, fmt.Errorf("service: listing users: %w", err)
	}
	users := make([]*model.User, 0, len(rows))
	for _, row := range rows {
		u, err := userFromRow(row)
		if err != nil {
			return nil, err
		}
		users = append(users, m.hydrated(u))
	}
	return users, nil
}

// GetUserByID returns the user with id, or an error wrapping
// apperror.ErrNotFound.
func (m *Manager) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := getUser(ctx, m.store, repository.Eq("id", id))
	if err != nil {
		return nil, fmt.Errorf("service: fetching user %d: %w", id, err)
	}
	if u == nil {
		return nil, apperror.NotFound("user", fmt.Sprint(id))
	}
	return m.hydrated(u), nil
}

// GetUserByEmail looks a user up by email, case-insensitively.
func (m *Manager) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	u, err := getUser(ctx, m.store, repository.Eq("email", email))
	if err != nil {
		return nil, fmt.Errorf("service: fetching user by email: %w", err)
	}
	if u == nil {
		return nil, apperror.NotFound("user", email)
	}
	return m.hydrated(u), nil
}

// EmailExists reports whether an account uses email.
func (m *Manager) EmailExists(ctx context.Context, email string) (bool, error) {
	ok, err := m.store.Exists(ctx, repository.TableUsers, repository.Eq("email", model.NormalizeEmail(email)))
	if err != nil {
		return false, fmt.Errorf("service: checking email: %w", err)
	}
	return ok, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func (m *Manager) clock() time.Time {
	return time.Unix(m.now().Unix(), 0)
}

func (m *Manager) hydrated(u *model.User) *model.User {
	if m.decorate != nil && u != nil {
		m.decorate(u)
	}
	return u
}

func (m *Manager) record(op string, res Result, err error) {
	if m.recorder == nil || err != nil {
		return
	}
	m.recorder.RecordOutcome(op, res.Code)
}
