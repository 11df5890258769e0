package http_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/registration-service/internal/api/http"
	"github.com/spec-kit/registration-service/internal/api/http/handlers"
	"github.com/spec-kit/registration-service/internal/auth"
	"github.com/spec-kit/registration-service/internal/config"
	"github.com/spec-kit/registration-service/internal/domain"
	"github.com/spec-kit/registration-service/internal/events"
	"github.com/spec-kit/registration-service/internal/observability"
	"github.com/spec-kit/registration-service/internal/repository"
	"github.com/spec-kit/registration-service/internal/service"
)

type stubUserRepo struct {
	nextID int64
	users  map[int64]*domain.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{nextID: 1, users: make(map[int64]*domain.User)}
}

func (r *stubUserRepo) Create(ctx context.Context, user *domain.User) error {
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateUser
		}
	}
	user.ID = r.nextID
	r.nextID++
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *stubUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *stubUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) UpdatePassword(ctx context.Context, id int64, hashedPassword string) error {
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.HashedPassword = hashedPassword
	return nil
}

func (r *stubUserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.IsActive = active
	return nil
}

type stubResetRepo struct {
	nextID int64
	tokens map[string]*repository.PasswordResetToken
}

func newStubResetRepo() *stubResetRepo {
	return &stubResetRepo{nextID: 1, tokens: make(map[string]*repository.PasswordResetToken)}
}

func (r *stubResetRepo) Create(ctx context.Context, token *repository.PasswordResetToken) error {
	token.ID = r.nextID
	r.nextID++
	copied := *token
	r.tokens[token.Token] = &copied
	return nil
}

func (r *stubResetRepo) GetByToken(ctx context.Context, tokenStr string) (*repository.PasswordResetToken, error) {
	token, ok := r.tokens[tokenStr]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *token
	return &copied, nil
}

func (r *stubResetRepo) MarkUsed(ctx context.Context, id int64) error {
	for _, token := range r.tokens {
		if token.ID == id {
			now := time.Now()
			token.UsedAt = &now
			return nil
		}
	}
	return pgx.ErrNoRows
}

type testEnv struct {
	app     *fiber.App
	resets  *stubResetRepo
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tm, err := auth.NewTokenManager(
		&auth.KeyPair{Private: key, Public: &key.PublicKey},
		"RS256", 15*time.Minute, 30*24*time.Hour,
	)
	require.NoError(t, err)

	users := newStubUserRepo()
	resets := newStubResetRepo()
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: 4}, service.AuthDependencies{
		UserRepo:          users,
		PasswordResetRepo: resets,
		TokenManager:      tm,
		Dispatcher:        events.NewInMemoryDispatcher(),
	})

	metrics := observability.NewMetrics()
	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler("registration-service", "test", nil, nil),
		Users:   handlers.NewUsersHandler(authService),
		Session: auth.NewSessionMiddleware(tm, users),
	})
	return &testEnv{app: app, resets: resets, metrics: metrics}
}

func newTestApp(t *testing.T) *fiber.App {
	return newTestEnv(t).app
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := env.app.Test(jsonRequest(t, http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "alive", body["status"])

	require.Equal(t, int64(1), env.metrics.RequestTotal("/health/live", http.MethodGet, http.StatusOK))

	// no postgres/redis wired in tests, so readiness reports unavailable
	resp, err = env.app.Test(jsonRequest(t, http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func jsonRequest(t *testing.T, method, path string, payload any, cookies ...*http.Cookie) *http.Request {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func cookieByName(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func registerAlice(t *testing.T, app *fiber.App) {
	t.Helper()

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/register", fiber.Map{
		"username": "alice",
		"password": "password123",
		"email":    "a@x.com",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "alice", body["username"])
	require.Equal(t, "a@x.com", body["email"])
}

func loginAlice(t *testing.T, app *fiber.App) (*http.Cookie, *http.Cookie) {
	t.Helper()

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"username": "alice",
		"password": "password123",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "Bearer", body["token_type"])
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])

	access := cookieByName(t, resp, "access_token")
	refresh := cookieByName(t, resp, "refresh_token")
	require.True(t, access.HttpOnly)
	require.True(t, refresh.HttpOnly)
	require.Greater(t, refresh.MaxAge, access.MaxAge)
	return access, refresh
}

func TestRegisterLoginMeFlow(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	registerAlice(t, app)
	access, _ := loginAlice(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v1/auth/users/me", nil, access))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "alice", body["username"])
	require.Equal(t, "a@x.com", body["email"])
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	registerAlice(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/register", fiber.Map{
		"username": "alice",
		"password": "password456",
		"email":    "other@x.com",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLogin_WrongPassword(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	registerAlice(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"username": "alice",
		"password": "wrong-password",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	require.Equal(t, "invalid username or password", errObj["message"])
}

func TestMe_RequiresAccessToken(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	registerAlice(t, app)
	_, refresh := loginAlice(t, app)

	// no cookie at all
	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v1/auth/users/me", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// refresh token smuggled into the access cookie
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/auth/users/me", nil,
		&http.Cookie{Name: "access_token", Value: refresh.Value}))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshFlow(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	registerAlice(t, app)
	access, refresh := loginAlice(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/refresh", nil, refresh))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.NotEmpty(t, body["access_token"])
	require.Nil(t, body["refresh_token"])
	require.Equal(t, "Bearer", body["token_type"])

	newAccess := cookieByName(t, resp, "access_token")
	require.NotEmpty(t, newAccess.Value)

	// access token must not pass as a refresh token
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/refresh", nil,
		&http.Cookie{Name: "refresh_token", Value: access.Value}))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChangePasswordFlow(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	registerAlice(t, app)
	access, _ := loginAlice(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/api/v1/auth/change_password", fiber.Map{
		"current_password": "wrong-password",
		"new_password":     "newpassword1",
	}, access))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPatch, "/api/v1/auth/change_password", fiber.Map{
		"current_password": "password123",
		"new_password":     "newpassword1",
	}, access))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// old password no longer works
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"username": "alice",
		"password": "password123",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// new password does
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"username": "alice",
		"password": "newpassword1",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogout_ClearsCookies(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/logout", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	access := cookieByName(t, resp, "access_token")
	refresh := cookieByName(t, resp, "refresh_token")
	require.Empty(t, access.Value)
	require.Empty(t, refresh.Value)
	require.True(t, access.Expires.Before(time.Now()))
	require.True(t, refresh.Expires.Before(time.Now()))
}

func TestDeactivateFlow(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	registerAlice(t, app)
	access, _ := loginAlice(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodDelete, "/api/v1/auth/deactivate_user_account", nil, access))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the active check reads the store, so the still-valid token is
	// rejected on active-only routes after deactivation
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/auth/users/me", nil, access))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"username": "alice",
		"password": "password123",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPasswordResetEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	app := env.app

	registerAlice(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/password/reset/request", fiber.Map{
		"username": "alice",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// the token must never appear in the response; an unauthenticated
	// caller holding only a username gets nothing to confirm with
	body := decodeBody(t, resp)
	require.NotContains(t, body, "reset_token")

	// unknown usernames are answered identically
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/password/reset/request", fiber.Map{
		"username": "nobody",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, body, decodeBody(t, resp))

	// only the known account got a stored token, delivered out of band
	require.Len(t, env.resets.tokens, 1)
	var resetToken string
	for token := range env.resets.tokens {
		resetToken = token
	}

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/password/reset/confirm", fiber.Map{
		"token":        resetToken,
		"new_password": "resetpass1",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"username": "alice",
		"password": "resetpass1",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
