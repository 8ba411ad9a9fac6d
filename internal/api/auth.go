package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sort"
	"strings"
)

type actorKey struct{}

// actorFrom returns the authenticated admin name on r.
func actorFrom(r *http.Request) string {
	actor, _ := r.Context().Value(actorKey{}).(string)
	return actor
}

// adminAuth admits requests bearing one of tokens and records the matching
// actor on the context. Every configured token is compared so timing does
// not reveal which one matched.
func adminAuth(tokens map[string]string) func(http.Handler) http.Handler {
	actors := make([]string, 0, len(tokens))
	for actor, tok := range tokens {
		if tok != "" {
			actors = append(actors, actor)
		}
	}
	sort.Strings(actors)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := bearer(r)
			matched := ""
			if ok {
				for _, actor := range actors {
					if subtle.ConstantTimeCompare([]byte(presented), []byte(tokens[actor])) == 1 && matched == "" {
						matched = actor
					}
				}
			}
			if matched == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				writeJSON(w, http.StatusUnauthorized, map[string]errorBody{
					"error": {Code: "UNAUTHORIZED", Message: "valid admin bearer token required"},
				})
				return
			}
			ctx := context.WithValue(r.Context(), actorKey{}, matched)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
