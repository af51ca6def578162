package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

type (
	userIDKey        struct{}
	emailVerifiedKey struct{}
)

// maxUserIDLen bounds identities taken from the gateway header.
const maxUserIDLen = 128

// Identity returns middleware that copies the identity asserted by the
// gateway into the request context: the user id from userHeader and, when
// verifiedHeader is set and parses as a bool, the email verification flag.
// Requests without a user id pass through anonymously; handlers that need a
// user reject them.
func Identity(userHeader, verifiedHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(userHeader))
			if id != "" && len(id) <= maxUserIDLen {
				ctx := WithUserID(r.Context(), id)
				if verifiedHeader != "" {
					if v, err := strconv.ParseBool(strings.TrimSpace(r.Header.Get(verifiedHeader))); err == nil {
						ctx = WithEmailVerified(ctx, v)
					}
				}
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a copy of ctx carrying the user id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserID returns the user id stored by Identity, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// WithEmailVerified returns a copy of ctx carrying the verification flag.
func WithEmailVerified(ctx context.Context, verified bool) context.Context {
	return context.WithValue(ctx, emailVerifiedKey{}, verified)
}

// EmailVerified returns the flag stored by Identity. ok is false when the
// gateway did not assert one.
func EmailVerified(ctx context.Context) (verified, ok bool) {
	verified, ok = ctx.Value(emailVerifiedKey{}).(bool)
	return verified, ok
}
