package providers

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const SecretHeader = "X-Trigger-Secret"

// SecretMiddleware gates trigger endpoints behind the shared secret. The secret
// is accepted as a bearer token or in the X-Trigger-Secret header.
func SecretMiddleware(secret string, next http.Handler) http.Handler {
	want := []byte(secret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretHeader)
		if got == "" {
			got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		}
		if got == "" || len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
