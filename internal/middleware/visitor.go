package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/m3connect/portal/internal/obs"
	"github.com/m3connect/portal/internal/visitor"
)

// VisitorCookie names the cookie binding a browser to its server-side visitor.
const VisitorCookie = "portal_sid"

const visitorCookieMaxAge = 30 * 24 * time.Hour

// Visitors resolves (or mints) the visitor cookie and attaches the visitor
// to the request context.
func Visitors(registry *visitor.Registry, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(VisitorCookie); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
			}
			http.SetCookie(w, &http.Cookie{
				Name:     VisitorCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(visitorCookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})

			v := registry.Get(id)
			ctx := obs.WithVisitorID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(visitor.WithContext(ctx, v)))
		})
	}
}
