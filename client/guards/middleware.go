package guards

import (
	"net/http"
	"net/url"
)

// Middleware adapts a guard to standard HTTP middleware for server-rendered
// or proxied views. Redirects are 303s carrying the original destination
// and any denial message as query parameters; Pending answers 503 with
// Retry-After so clients poll rather than cache a denial.
func Middleware(g Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := g(r.Context(), r.URL.RequestURI())
			switch res.Decision {
			case Admit:
				next.ServeHTTP(w, r)
			case Pending:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session initializing", http.StatusServiceUnavailable)
			case Redirect:
				q := url.Values{}
				if res.From != "" {
					q.Set("from", res.From)
				}
				if res.Message != "" {
					q.Set("message", res.Message)
				}
				location := res.Location
				if len(q) > 0 {
					location += "?" + q.Encode()
				}
				http.Redirect(w, r, location, http.StatusSeeOther)
			}
		})
	}
}
