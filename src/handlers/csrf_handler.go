package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/tradevault/backend/src/logger"
)

const csrfCookieName = "_csrf_token"

// GetCSRFToken issues a fresh double-submit token signed with authKey: one
// copy in an HttpOnly cookie, one in the response for the client to echo in
// X-CSRF-Token.
func GetCSRFToken(authKey []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := signedCSRFToken(authKey)
		if err != nil {
			logger.L.Error("Failed to generate CSRF token", "error", err)
			http.Error(w, "failed to generate token", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     csrfCookieName,
			Value:    token,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
			HttpOnly: true,
			Secure:   false, // set true behind HTTPS
			MaxAge:   3600,
		})

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-CSRF-Token", token)
		json.NewEncoder(w).Encode(map[string]string{"csrfToken": token})
	}
}

// CSRFMiddleware requires every mutating request to echo the cookie token in
// X-CSRF-Token and verifies the token's signature against authKey, so a
// matching pair planted by a subdomain or sibling port is rejected.
func CSRFMiddleware(authKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get("X-CSRF-Token")
			cookie, err := r.Cookie(csrfCookieName)
			if headerToken != "" && err == nil &&
				hmac.Equal([]byte(headerToken), []byte(cookie.Value)) &&
				validCSRFToken(authKey, headerToken) {
				next.ServeHTTP(w, r)
				return
			}

			logger.L.Warn("CSRF validation failed", "method", r.Method, "path", r.URL.Path)
			http.Error(w, "CSRF token validation failed", http.StatusForbidden)
		})
	}
}

// signedCSRFToken builds "<random>.<mac>" with both parts base64url-encoded.
func signedCSRFToken(authKey []byte) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, authKey)
	mac.Write(raw)
	return base64.RawURLEncoding.EncodeToString(raw) + "." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func validCSRFToken(authKey []byte, token string) bool {
	rawPart, macPart, found := strings.Cut(token, ".")
	if !found {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(rawPart)
	if err != nil {
		return false
	}
	got, err := base64.RawURLEncoding.DecodeString(macPart)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, authKey)
	mac.Write(raw)
	return hmac.Equal(got, mac.Sum(nil))
}
