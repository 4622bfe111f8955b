package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/klokku/sharecal/internal/config"
	"github.com/klokku/sharecal/internal/rest"
	"github.com/klokku/sharecal/internal/utils"
	"github.com/klokku/sharecal/pkg/audit"
	"github.com/klokku/sharecal/pkg/permission"
	"github.com/klokku/sharecal/pkg/user"
	log "github.com/sirupsen/logrus"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies, cfg config.Application) {
	r.Use(requestLogger(deps.AuditRepo, deps.Clock))
	r.Use(authenticate(deps, cfg.Auth))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(permission.WithRoleCache(req.Context())))
		})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

type requestEntryKey struct{}

// requestEntry collects what inner middlewares learn about a request. The caller's
// uid is set even when authentication rejects it.
type requestEntry struct {
	uid    string
	userId int
}

func noteCaller(ctx context.Context, uid string) {
	if entry, ok := ctx.Value(requestEntryKey{}).(*requestEntry); ok {
		entry.uid = uid
	}
}

func noteUser(ctx context.Context, u user.User) {
	if entry, ok := ctx.Value(requestEntryKey{}).(*requestEntry); ok {
		entry.uid = u.Uid
		entry.userId = u.Id
	}
}

// requestLogger logs every request and, when audits is set, stores it as an audit entry.
func requestLogger(audits audit.Repository, clock utils.Clock) mux.MiddlewareFunc {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := clock.Now()
			var body json.RawMessage
			if audits != nil && req.Body != nil {
				data, err := io.ReadAll(req.Body)
				if err != nil {
					rest.WriteError(w, http.StatusBadRequest, "Could not read request body", err.Error())
					return
				}
				_ = req.Body.Close()
				req.Body = io.NopCloser(bytes.NewReader(data))
				body = audit.Body(data)
			}

			entry := &requestEntry{}
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, req.WithContext(context.WithValue(req.Context(), requestEntryKey{}, entry)))
			duration := clock.Now().Sub(start)

			fields := log.Fields{
				"method":   req.Method,
				"path":     req.URL.Path,
				"status":   recorder.status,
				"duration": duration.String(),
			}
			if entry.uid != "" {
				fields["user"] = entry.uid
			}
			log.WithFields(fields).Debug("request handled")

			if audits == nil {
				return
			}
			err := audits.Insert(context.WithoutCancel(req.Context()), audit.Entry{
				Method:      req.Method,
				Path:        req.URL.Path,
				UserId:      entry.userId,
				Status:      recorder.status,
				IpAddress:   clientIp(req),
				RequestBody: body,
				Duration:    duration,
				CreatedAt:   start,
			})
			if err != nil {
				log.Warnf("audit entry for %s %s was not stored: %v", req.Method, req.URL.Path, err)
			}
		})
	}
}

func clientIp(req *http.Request) string {
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// authenticate resolves the caller from a bearer token or, when trusted, from the
// X-User-Id header. Requests without credentials pass through anonymously and are
// rejected by handlers that need a user.
func authenticate(deps *Dependencies, cfg config.Auth) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			uid := ""
			if header := req.Header.Get("Authorization"); header != "" {
				token, found := strings.CutPrefix(header, "Bearer ")
				if !found {
					rest.WriteError(w, http.StatusUnauthorized, "Unsupported authorization scheme", "Use a Bearer token")
					return
				}
				subject, err := deps.AuthTokenValidator.Validate(token)
				if err != nil {
					log.Debugf("rejected token: %v", err)
					rest.WriteError(w, http.StatusUnauthorized, "Invalid token", err.Error())
					return
				}
				uid = subject
			} else if cfg.TrustUserHeader {
				uid = req.Header.Get("X-User-Id")
			}
			if uid == "" {
				next.ServeHTTP(w, req)
				return
			}
			noteCaller(req.Context(), uid)

			u, err := deps.UserService.GetUserByUid(req.Context(), uid)
			if err != nil {
				if errors.Is(err, user.ErrUserNotFound) {
					log.Debugf("user not found: %s", uid)
					rest.WriteError(w, http.StatusForbidden, "User not found", uid)
					return
				}
				log.Errorf("failed to get user: %v", err)
				rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
				return
			}
			noteUser(req.Context(), u)
			next.ServeHTTP(w, req.WithContext(user.WithUser(req.Context(), u)))
		})
	}
}
