package trace

import (
	"log/slog"
	"net/http"
)

// Middleware starts a span for each HTTP request and logs it when the
// handler returns.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := StartSpan(r.Context(), r.Method+" "+r.URL.Path)
		span.SetAttr("remote", r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
		span.End()
		slog.Debug("http request", "span", span)
	})
}
