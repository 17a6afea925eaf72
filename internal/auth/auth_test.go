package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/logger"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/access"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/auth"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/mail"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/user"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
	"github.com/rewan24/E-Learning-Lessons-Platform/testing/testdb"
)

func testConfig() auth.Config {
	return auth.Config{
		JWTSecret:        "test-secret-key-for-testing",
		Issuer:           "test",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  24 * time.Hour,
		PasswordResetTTL: 72 * time.Hour,
	}
}

type fixture struct {
	db      *bun.DB
	users   user.Service
	service *auth.Service
	tokens  *auth.TokenIssuer
	mailer  *mail.ConsoleSender
	router  chi.Router
}

func setup(t *testing.T, cfg auth.Config) fixture {
	t.Helper()
	bunDB := testdb.NewSQLite(t, (*user.User)(nil), (*auth.RefreshToken)(nil), (*auth.PasswordResetToken)(nil))

	m := metrics.NewMock()
	log := logger.NewDiscard()
	users := user.NewService(user.NewRepository(bunDB, m))
	tokens := auth.NewTokenIssuer(cfg)
	mailer := mail.NewConsoleSender("noreply@example.com", "Lessons", log)
	service := auth.NewService(auth.NewRepository(bunDB, m), users, tokens, mailer, m, log, cfg, "https://app.example.com/")

	router := chi.NewRouter()
	router.Use(auth.Middleware(tokens, log))
	auth.NewHandler(service, validation.New(), log, auth.CookiePolicyFor("local", cfg.AccessTokenTTL)).RegisterRoutes(router)
	router.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		caller, err := access.RequireCaller(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(caller)
	})

	return fixture{db: bunDB, users: users, service: service, tokens: tokens, mailer: mailer, router: router}
}

func (f fixture) post(t *testing.T, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeAuth(t *testing.T, w *httptest.ResponseRecorder) auth.AuthResponse {
	t.Helper()
	var resp auth.AuthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func tokenCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

func TestAuthHandler(t *testing.T) {
	register := map[string]string{
		"username": "mona",
		"email":    "mona@example.com",
		"phone":    "01012345678",
		"password": "password123",
	}

	t.Run("Register_Success", func(t *testing.T) {
		f := setup(t, testConfig())

		w := f.post(t, "/users/register", register)
		require.Equal(t, http.StatusCreated, w.Code)

		resp := decodeAuth(t, w)
		assert.NotEmpty(t, resp.Access)
		assert.NotEmpty(t, resp.Refresh)
		require.NotNil(t, resp.User)
		assert.Equal(t, "mona", resp.User.Username)
		assert.False(t, resp.User.IsStaff)
		assert.NotContains(t, w.Body.String(), "password")

		cookie := tokenCookie(w)
		require.NotNil(t, cookie, "token cookie should be set")
		assert.Equal(t, resp.Access, cookie.Value)
		assert.True(t, cookie.HttpOnly)
	})

	t.Run("Register_Duplicate", func(t *testing.T) {
		f := setup(t, testConfig())
		require.Equal(t, http.StatusCreated, f.post(t, "/users/register", register).Code)

		w := f.post(t, "/users/register", register)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "username already exists")
	})

	t.Run("Register_ValidationError", func(t *testing.T) {
		f := setup(t, testConfig())

		w := f.post(t, "/users/register", map[string]string{"email": "invalid", "password": "short"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"username"`)
		assert.Contains(t, w.Body.String(), `"password"`)
	})

	t.Run("Login_UsernameOrEmail", func(t *testing.T) {
		f := setup(t, testConfig())
		require.Equal(t, http.StatusCreated, f.post(t, "/users/register", register).Code)

		w := f.post(t, "/token", map[string]string{"username": "mona", "password": "password123"})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeAuth(t, w)
		assert.NotEmpty(t, resp.Access)

		w = f.post(t, "/token", map[string]string{"username": "MONA@example.com", "password": "password123"})
		require.Equal(t, http.StatusOK, w.Code)

		u, err := f.users.GetByLogin(context.Background(), "mona")
		require.NoError(t, err)
		assert.NotNil(t, u.LastLogin)
	})

	t.Run("Login_InvalidPassword", func(t *testing.T) {
		f := setup(t, testConfig())
		require.Equal(t, http.StatusCreated, f.post(t, "/users/register", register).Code)

		w := f.post(t, "/token", map[string]string{"username": "mona", "password": "wrongpassword"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid username or password")

		w = f.post(t, "/token", map[string]string{"username": "nobody", "password": "password123"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid username or password")
	})

	t.Run("Login_InactiveUser", func(t *testing.T) {
		f := setup(t, testConfig())
		require.Equal(t, http.StatusCreated, f.post(t, "/users/register", register).Code)

		u, err := f.users.GetByLogin(context.Background(), "mona")
		require.NoError(t, err)
		inactive := false
		_, err = f.users.Update(context.Background(), u.ID, user.UpdateRequest{IsActive: &inactive})
		require.NoError(t, err)

		w := f.post(t, "/token", map[string]string{"username": "mona", "password": "password123"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "user account is disabled")
	})

	t.Run("Refresh_RotatesToken", func(t *testing.T) {
		f := setup(t, testConfig())
		first := decodeAuth(t, f.post(t, "/users/register", register))

		w := f.post(t, "/token/refresh", map[string]string{"refresh": first.Refresh})
		require.Equal(t, http.StatusOK, w.Code)
		second := decodeAuth(t, w)
		assert.NotEqual(t, first.Refresh, second.Refresh)
		assert.NotEmpty(t, second.Access)

		// The consumed token is no longer valid.
		w = f.post(t, "/token/refresh", map[string]string{"refresh": first.Refresh})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = f.post(t, "/token/refresh", map[string]string{"refresh": second.Refresh})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Logout_RevokesRefreshToken", func(t *testing.T) {
		f := setup(t, testConfig())
		resp := decodeAuth(t, f.post(t, "/users/register", register))

		w := f.post(t, "/token/logout", map[string]string{"refresh": resp.Refresh})
		require.Equal(t, http.StatusNoContent, w.Code)
		cookie := tokenCookie(w)
		require.NotNil(t, cookie)
		assert.Equal(t, -1, cookie.MaxAge)

		w = f.post(t, "/token/refresh", map[string]string{"refresh": resp.Refresh})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		// Logging out twice is harmless.
		w = f.post(t, "/token/logout", map[string]string{"refresh": resp.Refresh})
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Middleware_BearerAndCookie", func(t *testing.T) {
		f := setup(t, testConfig())
		resp := decodeAuth(t, f.post(t, "/users/register", register))

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+resp.Access)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var caller access.Caller
		require.NoError(t, json.NewDecoder(w.Body).Decode(&caller))
		assert.Equal(t, resp.User.ID, caller.UserID)
		assert.Equal(t, "mona", caller.Username)

		req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: resp.Access})
		w = httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		w = httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func resetToken(t *testing.T, m *mail.ConsoleSender) string {
	t.Helper()
	sent := m.Sent()
	require.NotEmpty(t, sent)
	body := sent[len(sent)-1].Text
	const marker = "https://app.example.com/reset-password/"
	idx := strings.Index(body, marker)
	require.GreaterOrEqual(t, idx, 0, "reset link missing from %q", body)
	return strings.Fields(body[idx+len(marker):])[0]
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()

	newUser := func(t *testing.T, f fixture) *user.User {
		u, err := f.users.Create(ctx, user.NewUser{Username: "sara", Email: "sara@example.com", Password: "password123"})
		require.NoError(t, err)
		return u
	}

	t.Run("UnknownEmail_StillOK", func(t *testing.T) {
		f := setup(t, testConfig())

		w := f.post(t, "/users/forgot-password", map[string]string{"email": "ghost@example.com"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "if the email exists")
		assert.Empty(t, f.mailer.Sent())
	})

	t.Run("TokenWorksOnce", func(t *testing.T) {
		f := setup(t, testConfig())
		u := newUser(t, f)
		session, err := f.service.Login(ctx, auth.LoginRequest{Username: "sara", Password: "password123"})
		require.NoError(t, err)

		w := f.post(t, "/users/forgot-password", map[string]string{"email": "SARA@example.com"})
		require.Equal(t, http.StatusOK, w.Code)

		sent := f.mailer.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, u.Email, sent[0].To)
		token := resetToken(t, f.mailer)

		reset := map[string]string{"token": token, "email": "sara@example.com", "password": "new-password-1"}
		w = f.post(t, "/users/reset-password", reset)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "password has been reset")

		_, err = f.service.Login(ctx, auth.LoginRequest{Username: "sara", Password: "password123"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		_, err = f.service.Login(ctx, auth.LoginRequest{Username: "sara", Password: "new-password-1"})
		assert.NoError(t, err)

		// Sessions issued before the reset are revoked.
		_, err = f.service.RefreshAccessToken(ctx, session.Refresh)
		assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

		reset["password"] = "new-password-2"
		w = f.post(t, "/users/reset-password", reset)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid or expired reset token")
	})

	t.Run("WrongEmail", func(t *testing.T) {
		f := setup(t, testConfig())
		newUser(t, f)
		require.NoError(t, f.service.ForgotPassword(ctx, "sara@example.com"))
		token := resetToken(t, f.mailer)

		err := f.service.ResetPassword(ctx, auth.ResetPasswordRequest{Token: token, Email: "other@example.com", Password: "new-password-1"})
		assert.ErrorIs(t, err, auth.ErrInvalidResetToken)

		// A mismatched email does not consume the token.
		err = f.service.ResetPassword(ctx, auth.ResetPasswordRequest{Token: token, Email: "sara@example.com", Password: "new-password-1"})
		assert.NoError(t, err)
	})

	t.Run("FailedRevokeKeepsToken", func(t *testing.T) {
		f := setup(t, testConfig())
		newUser(t, f)
		require.NoError(t, f.service.ForgotPassword(ctx, "sara@example.com"))
		token := resetToken(t, f.mailer)

		_, err := f.db.NewDropTable().Model((*auth.RefreshToken)(nil)).Exec(ctx)
		require.NoError(t, err)

		reset := auth.ResetPasswordRequest{Token: token, Email: "sara@example.com", Password: "new-password-1"}
		require.Error(t, f.service.ResetPassword(ctx, reset))

		// The whole reset rolled back: old password intact, token still usable.
		u, err := f.users.GetByLogin(ctx, "sara")
		require.NoError(t, err)
		assert.True(t, u.CheckPassword("password123"))
		assert.False(t, u.CheckPassword("new-password-1"))

		_, err = f.db.NewCreateTable().Model((*auth.RefreshToken)(nil)).IfNotExists().Exec(ctx)
		require.NoError(t, err)
		require.NoError(t, f.service.ResetPassword(ctx, reset))

		u, err = f.users.GetByLogin(ctx, "sara")
		require.NoError(t, err)
		assert.True(t, u.CheckPassword("new-password-1"))
	})

	t.Run("Expired", func(t *testing.T) {
		cfg := testConfig()
		cfg.PasswordResetTTL = -time.Minute
		f := setup(t, cfg)
		newUser(t, f)
		require.NoError(t, f.service.ForgotPassword(ctx, "sara@example.com"))
		token := resetToken(t, f.mailer)

		err := f.service.ResetPassword(ctx, auth.ResetPasswordRequest{Token: token, Email: "sara@example.com", Password: "new-password-1"})
		assert.ErrorIs(t, err, auth.ErrInvalidResetToken)

		require.NoError(t, f.service.PurgeExpired(ctx))
	})
}

func TestTokenIssuer(t *testing.T) {
	cfg := testConfig()
	issuer := auth.NewTokenIssuer(cfg)
	u := &user.User{ID: 42, Username: "admin", IsStaff: true}

	token, err := issuer.GenerateAccessToken(u)
	require.NoError(t, err)

	caller, err := issuer.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, access.Caller{UserID: 42, Username: "admin", IsStaff: true}, caller)

	t.Run("WrongSecret", func(t *testing.T) {
		other := cfg
		other.JWTSecret = "another-secret"
		_, err := auth.NewTokenIssuer(other).ValidateAccessToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		other := cfg
		other.Issuer = "someone-else"
		_, err := auth.NewTokenIssuer(other).ValidateAccessToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := cfg
		expired.AccessTokenTTL = -time.Minute
		stale, err := auth.NewTokenIssuer(expired).GenerateAccessToken(u)
		require.NoError(t, err)
		_, err = issuer.ValidateAccessToken(stale)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("OpaqueTokens", func(t *testing.T) {
		a, err := auth.GenerateOpaqueToken()
		require.NoError(t, err)
		b, err := auth.GenerateOpaqueToken()
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
		assert.Len(t, auth.HashToken(a), 64)
		assert.Equal(t, auth.HashToken(a), auth.HashToken(a))
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("PASSWORD_RESET_TTL", "1h")

	cfg, err := auth.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, time.Hour, cfg.PasswordResetTTL)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)

	t.Setenv("JWT_SECRET", "")
	_, err = auth.LoadConfig()
	assert.Error(t, err)
}
