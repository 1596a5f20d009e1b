// Package middleware holds the HTTP middleware wrapped around every request.
package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/conneroisu/ssrgate/internal/logging"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// Middleware represents a single middleware function
type Middleware func(http.Handler) http.Handler

// MiddlewareChain composes middleware. The first middleware added is the
// outermost wrapper.
type MiddlewareChain struct {
	middlewares []Middleware
}

// NewMiddlewareChain creates an empty chain.
func NewMiddlewareChain(middlewares ...Middleware) *MiddlewareChain {
	return &MiddlewareChain{middlewares: append([]Middleware(nil), middlewares...)}
}

// DefaultChain is the stack the server runs with: panic recovery, request
// ids, security headers and the access log, outermost first.
func DefaultChain(logger logging.Logger) *MiddlewareChain {
	return NewMiddlewareChain(
		Recover(logger),
		RequestID(),
		SecurityHeaders(),
		AccessLog(logger),
	)
}

// AddMiddleware appends a middleware inside the existing ones.
func (mc *MiddlewareChain) AddMiddleware(middleware Middleware) {
	mc.middlewares = append(mc.middlewares, middleware)
}

// Apply wraps handler with every middleware in the chain.
func (mc *MiddlewareChain) Apply(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(mc.middlewares) - 1; i >= 0; i-- {
		wrapped = mc.middlewares[i](wrapped)
	}
	return wrapped
}

type requestIDKey struct{}

// RequestIDFrom returns the request id stored by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID propagates a well-formed inbound X-Request-ID or mints a new
// UUID, and echoes it on the response.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if !validRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// SecurityHeaders sets headers every response should carry.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}

// Recover turns a panic anywhere below it into a 500 response.
func Recover(logger logging.Logger) Middleware {
	logger = logger.WithComponent("recover")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error(r.Context(), nil, "Recovered from panic",
					"panic", v,
					"path", r.URL.Path,
					"request_id", RequestIDFrom(r.Context()),
					"stack", string(debug.Stack()))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs every request at debug level.
func AccessLog(logger logging.Logger) Middleware {
	logger = logger.WithComponent("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			logger.Debug(r.Context(), "HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.Status(),
				"bytes", sw.bytes,
				"duration", time.Since(start).String(),
				"request_id", RequestIDFrom(r.Context()))
		})
	}
}

// statusWriter records the status code and body size written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Status returns the status written so far, 200 when none was.
func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
