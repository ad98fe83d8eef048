package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/marker/internal/web/cache"
)

type contextKey string

const requestIDKey contextKey = "request_id"

const requestIDHeader = "X-Request-ID"

// requestID tags every request with a UUID, honoring one supplied by the
// caller.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom extracts the request ID placed by the middleware.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// statusRecorder captures the response status and body for logging and
// caching.
type statusRecorder struct {
	http.ResponseWriter
	status int
	body   []byte
	record bool
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if r.record {
		r.body = append(r.body, b...)
	}
	return r.ResponseWriter.Write(b)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", RequestIDFrom(r.Context())),
		)
	})
}

// cached serves a memoized response when the cache holds one for the request
// URI, and records successful responses otherwise. Resolution results only
// change when the schema changes, so a short TTL is enough to keep reads hot.
func (s *Server) cached(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cache == nil {
			next(w, r)
			return
		}
		key := r.URL.RequestURI()
		if body, err := s.cache.Get(r.Context(), key); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			w.Write(body)
			return
		} else if !cache.IsMiss(err) {
			s.logger.Warn("response cache read failed", zap.Error(err))
		}

		rec := &statusRecorder{ResponseWriter: w, record: true}
		next(rec, r)
		if rec.status == http.StatusOK {
			if err := s.cache.Set(r.Context(), key, rec.body, s.config.CacheTTL); err != nil {
				s.logger.Warn("response cache write failed", zap.Error(err))
			}
		}
	}
}
