package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// Credentials is a single API user whose password is kept only as a bcrypt
// hash.
type Credentials struct {
	user string
	hash []byte
}

func NewCredentials(user, password string, cost int) (*Credentials, error) {
	if user == "" || password == "" {
		return nil, fmt.Errorf("api user and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hashing api password: %w", err)
	}
	return &Credentials{user: user, hash: hash}, nil
}

func (c *Credentials) Valid(user, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.user)) == 1
	passOK := bcrypt.CompareHashAndPassword(c.hash, []byte(password)) == nil
	return userOK && passOK
}

// BasicAuth rejects requests without valid credentials with 401.
func BasicAuth(realm string, creds *Credentials) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !creds.Valid(user, pass) {
				w.Header().Add("WWW-Authenticate", fmt.Sprintf(`Basic realm="%s"`, realm))
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
