package clog

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

func SlogChiMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := ContextWithSlog(r.Context())
			AddAttributes(ctx,
				"method", r.Method,
				"path", r.URL.Path,
				"proto", r.Proto,
			)
			next.ServeHTTP(ww, r.WithContext(ctx))
			AddAttributes(ctx,
				"status", ww.Status(),
				"bytes_written", ww.BytesWritten(),
				"duration", time.Since(startTime),
			)
			Log(ctx, HTTPStatusToLevel(ww.Status()), http.StatusText(ww.Status()))
		})
	}
}
