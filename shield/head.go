package shield

import "net/http"

// HeadToGet routes HEAD requests to the viewer's GET handlers, so a HEAD
// on the report, an image or /healthz answers like the GET minus the body
// (net/http drops it) instead of 405.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
