// Package session owns the opaque bearer credential: obtaining it from the
// login endpoint, persisting it, and invalidating it when the server
// reports the session as unauthorized.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	errs "github.com/cyrus123live/btc-trading/internal/errors"
)

const component = "session"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Manager handles the session lifecycle. The login call is the one request
// that does not go through the gateway, since it runs unauthenticated.
type Manager struct {
	client *resty.Client
	store  TokenStore
	log    *logrus.Entry

	mu        sync.Mutex
	onExpired []func()
}

// NewManager creates a session manager talking to the auth endpoint at
// baseURL and persisting the credential in store.
func NewManager(baseURL string, store TokenStore, log *logrus.Entry) *Manager {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second)

	return &Manager{
		client: client,
		store:  store,
		log:    log,
	}
}

// Authenticate exchanges operator credentials for a session token and
// persists it. Any non-success response maps to the same invalid-credentials
// error; auth failure detail is deliberately not surfaced.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (string, error) {
	var out loginResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(loginRequest{Username: username, Password: password}).
		SetResult(&out).
		Post("/auth/login")
	if err != nil {
		return "", errs.NewNetworkError(component, "login", err)
	}
	if !resp.IsSuccess() || out.AccessToken == "" {
		return "", errs.NewInvalidCredentials(component)
	}

	if err := m.store.Set(out.AccessToken); err != nil {
		return "", errs.Wrap(err, errs.ErrorCategoryConfiguration, component, "persist token")
	}
	m.log.Info("authenticated, session token stored")
	return out.AccessToken, nil
}

// Token returns the current persisted credential, if any
func (m *Manager) Token() (string, bool) {
	return m.store.Get()
}

// Authenticated reports whether a credential is currently persisted
func (m *Manager) Authenticated() bool {
	_, ok := m.store.Get()
	return ok
}

// Invalidate clears the persisted credential. Safe to call repeatedly.
func (m *Manager) Invalidate() {
	if err := m.store.Clear(); err != nil {
		m.log.WithError(err).Warn("failed to clear token store")
	}
}

// OnExpired registers a callback run when an authenticated call detects an
// unauthorized outcome. Callbacks are expected to tear down session-scoped
// components and return the app to the unauthenticated state.
func (m *Manager) OnExpired(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpired = append(m.onExpired, fn)
}

// NotifyUnauthorized is called by collaborators when the server answered an
// authenticated call with 401. It invalidates the credential and fires the
// expiry callbacks once per expiry: repeated 401s from in-flight calls after
// the token is already gone do not refire.
func (m *Manager) NotifyUnauthorized() {
	m.mu.Lock()
	if _, ok := m.store.Get(); !ok {
		m.mu.Unlock()
		return
	}
	if err := m.store.Clear(); err != nil {
		m.log.WithError(err).Warn("failed to clear token store")
	}
	callbacks := make([]func(), len(m.onExpired))
	copy(callbacks, m.onExpired)
	m.mu.Unlock()

	m.log.Warn("session rejected by server, credential invalidated")

	for _, fn := range callbacks {
		fn()
	}
}
