package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/sharecal/internal/auth"
	"github.com/klokku/sharecal/internal/config"
	"github.com/klokku/sharecal/pkg/audit"
	"github.com/klokku/sharecal/pkg/user"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func setupRouter(t *testing.T, trustHeader bool) *mux.Router {
	t.Helper()
	r, _ := setupAuditedRouter(t, trustHeader, nil)
	return r
}

func setupAuditedRouter(t *testing.T, trustHeader bool, audits audit.Repository) (*mux.Router, user.User) {
	t.Helper()
	users := user.NewUserService(user.NewStubUserRepository())
	alice, err := users.CreateUser(context.Background(), user.User{Uid: "alice-uid", Username: "alice"})
	require.NoError(t, err)

	deps := &Dependencies{
		AuthTokenValidator: auth.NewTokenValidator(testSecret),
		UserService:        users,
		AuditRepo:          audits,
	}
	r := mux.NewRouter()
	SetupMiddleware(r, deps, config.Application{Auth: config.Auth{JwtSecret: testSecret, TrustUserHeader: trustHeader}})
	r.HandleFunc("/whoami", func(w http.ResponseWriter, req *http.Request) {
		u, err := user.CurrentUser(req.Context())
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(u.Username))
	})
	r.HandleFunc("/echo", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}).Methods("POST")
	return r, alice
}

func TestAuthenticate(t *testing.T) {
	validator := auth.NewTokenValidator(testSecret)

	t.Run("should resolve user from bearer token", func(t *testing.T) {
		r := setupRouter(t, false)
		token, err := validator.Issue("alice-uid", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice", w.Body.String())
	})

	t.Run("should reject invalid token", func(t *testing.T) {
		r := setupRouter(t, false)
		forged, err := auth.NewTokenValidator("other-secret").Issue("alice-uid", time.Hour)
		require.NoError(t, err)

		for _, header := range []string{"Bearer " + forged, "Basic YWxpY2U6cGFzcw=="} {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		}
	})

	t.Run("should reject token of unknown user", func(t *testing.T) {
		r := setupRouter(t, false)
		token, err := validator.Issue("mallory-uid", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("should use user header only when trusted", func(t *testing.T) {
		trusted := setupRouter(t, true)
		untrusted := setupRouter(t, false)

		for router, expected := range map[*mux.Router]int{trusted: http.StatusOK, untrusted: http.StatusUnauthorized} {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set("X-User-Id", "alice-uid")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, expected, w.Code)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	hook := test.NewGlobal()
	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	t.Cleanup(func() {
		log.SetLevel(level)
		hook.Reset()
	})

	lastRequestLog := func() *log.Entry {
		for i := len(hook.AllEntries()) - 1; i >= 0; i-- {
			if e := hook.AllEntries()[i]; e.Message == "request handled" {
				return e
			}
		}
		return nil
	}

	t.Run("should log requests rejected by authentication", func(t *testing.T) {
		// given
		hook.Reset()
		r := setupRouter(t, true)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-User-Id", "mallory-uid")
		w := httptest.NewRecorder()

		// when
		r.ServeHTTP(w, req)

		// then
		assert.Equal(t, http.StatusForbidden, w.Code)
		entry := lastRequestLog()
		require.NotNil(t, entry)
		assert.Equal(t, http.StatusForbidden, entry.Data["status"])
		assert.Equal(t, "mallory-uid", entry.Data["user"])
		assert.Equal(t, "/whoami", entry.Data["path"])
	})

	t.Run("should log invalid tokens without user", func(t *testing.T) {
		hook.Reset()
		r := setupRouter(t, false)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")

		r.ServeHTTP(httptest.NewRecorder(), req)

		entry := lastRequestLog()
		require.NotNil(t, entry)
		assert.Equal(t, http.StatusUnauthorized, entry.Data["status"])
		assert.NotContains(t, entry.Data, "user")
	})

	t.Run("should log the authenticated user", func(t *testing.T) {
		hook.Reset()
		r := setupRouter(t, true)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-User-Id", "alice-uid")

		r.ServeHTTP(httptest.NewRecorder(), req)

		entry := lastRequestLog()
		require.NotNil(t, entry)
		assert.Equal(t, http.StatusOK, entry.Data["status"])
		assert.Equal(t, "alice-uid", entry.Data["user"])
	})
}

func TestRequestLogger_Audit(t *testing.T) {
	t.Run("should store requests rejected by authentication", func(t *testing.T) {
		// given
		audits := audit.NewRepositoryStub()
		r, _ := setupAuditedRouter(t, true, audits)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-User-Id", "mallory-uid")
		req.RemoteAddr = "10.0.0.7:51234"

		// when
		r.ServeHTTP(httptest.NewRecorder(), req)

		// then
		entries := audits.All()
		require.Len(t, entries, 1)
		assert.Equal(t, http.MethodGet, entries[0].Method)
		assert.Equal(t, "/whoami", entries[0].Path)
		assert.Equal(t, http.StatusForbidden, entries[0].Status)
		assert.Equal(t, 0, entries[0].UserId)
		assert.Equal(t, "10.0.0.7", entries[0].IpAddress)
		assert.Nil(t, entries[0].RequestBody)
	})

	t.Run("should store the user and body and keep the body readable", func(t *testing.T) {
		// given
		audits := audit.NewRepositoryStub()
		r, alice := setupAuditedRouter(t, true, audits)
		payload := `{"title":"Standup"}`
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(payload))
		req.Header.Set("X-User-Id", "alice-uid")
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		w := httptest.NewRecorder()

		// when
		r.ServeHTTP(w, req)

		// then
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, payload, w.Body.String())
		entries := audits.All()
		require.Len(t, entries, 1)
		assert.Equal(t, alice.Id, entries[0].UserId)
		assert.Equal(t, http.StatusCreated, entries[0].Status)
		assert.Equal(t, "203.0.113.9", entries[0].IpAddress)
		assert.JSONEq(t, payload, string(entries[0].RequestBody))
	})

	t.Run("should drop bodies that are not JSON", func(t *testing.T) {
		audits := audit.NewRepositoryStub()
		r, _ := setupAuditedRouter(t, true, audits)
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("title=Standup"))
		req.Header.Set("X-User-Id", "alice-uid")

		r.ServeHTTP(httptest.NewRecorder(), req)

		entries := audits.All()
		require.Len(t, entries, 1)
		assert.Nil(t, entries[0].RequestBody)
	})
}
