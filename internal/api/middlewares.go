package api

import (
	"bytes"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5/request"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
	"github.com/vicentsargues/FACTURAFACIL/pkg/logger"
)

const maxLoggedBody = 4 << 10

type Middleware struct {
	apiKeyEnabled bool
	apiKey        string
}

func NewMiddleware(apiKeyEnabled bool, apiKey string) *Middleware {
	return &Middleware{
		apiKeyEnabled: apiKeyEnabled,
		apiKey:        apiKey,
	}
}

func skipLogging(path string) bool {
	return path == "/api/health" || strings.HasPrefix(path, "/api/swagger/")
}

func (m *Middleware) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.Must(uuid.NewV4()).String()
		}

		ctx = logger.WithRequestID(ctx, requestID)
		w.Header().Set("X-Request-Id", requestID)

		if !skipLogging(r.URL.Path) {
			reqBody, err := io.ReadAll(r.Body)
			if err != nil {
				SendJSONErr(ctx, w, http.StatusBadRequest, err, "read request body")
				return
			}

			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewBuffer(reqBody))

			if len(reqBody) > maxLoggedBody {
				reqBody = append(reqBody[:maxLoggedBody:maxLoggedBody], "..."...)
			}

			var headers strings.Builder

			for k, v := range r.Header {
				if k == "Authorization" || k == "Cookie" || k == "X-Api-Key" {
					continue
				}

				headers.WriteString(fmt.Sprintf("%s: %s,\n", k, v))
			}

			slog.InfoContext(ctx, "incoming request",
				"request", fmt.Sprintf("%s %s\n%s", r.Method, r.URL.Redacted(), reqBody),
				"headers", headers.String(),
			)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		defer func() {
			rec := recover()
			if rec != nil {
				slog.ErrorContext(ctx, "recovered from panic", "error", rec, "stack", string(debug.Stack()))
				SendJSONErr(ctx, w, http.StatusInternalServerError, fmt.Errorf("panic: %v", rec), "Error interno")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) Cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Authorization, X-Api-Key, X-Request-Id, Origin, Accept, User-Agent, Cache-Control")

		if r.Method == http.MethodOptions {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// APIKeyAuth verifies the API key sent in X-Api-Key or as a bearer token.
func (m *Middleware) APIKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !m.apiKeyEnabled {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-Api-Key")
		if apiKey == "" {
			token, err := request.BearerExtractor{}.ExtractToken(r)
			if err == nil {
				apiKey = token
			}
		}

		if apiKey == "" {
			SendJSONErr(ctx, w, http.StatusUnauthorized, entity.ErrUnauthenticated, "Falta la clave de API")
			return
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(m.apiKey)) != 1 {
			SendJSONErr(ctx, w, http.StatusUnauthorized, entity.ErrUnauthenticated, "Clave de API no válida")
			return
		}

		next.ServeHTTP(w, r)
	})
}
