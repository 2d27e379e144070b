package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Middleware struct {
	log *zap.Logger
}

func NewMiddleware(log *zap.Logger) *Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &Middleware{log: log}
}

// RequestLogger logs one line per request once the response is written.
func (m *Middleware) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", clientIP(r)),
			}
			if id := middleware.GetReqID(r.Context()); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}

			switch {
			case status >= http.StatusInternalServerError:
				m.log.Error("request", fields...)
			case status >= http.StatusBadRequest:
				m.log.Warn("request", fields...)
			default:
				m.log.Info("request", fields...)
			}
		}()

		next.ServeHTTP(ww, r)
	})
}
