package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"

	"github.com/AlexZinkM/xdaghub/internal/model"
)

// HeaderUIToken carries the token that identifies the wallet UI.
const HeaderUIToken = "X-Ui-Token"

// NewUIToken returns a random 32-byte hex token.
func NewUIToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate UI token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// RequireUIToken rejects requests that do not present token.
func RequireUIToken(token string, next http.HandlerFunc) http.HandlerFunc {
	want := []byte(token)
	return func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(HeaderUIToken))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			log.Warnw("rejected request without UI token", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, fmt.Errorf("%w: missing or invalid %s", model.ErrAuthentication, HeaderUIToken))
			return
		}
		next(w, r)
	}
}

// RequireJSON rejects non-GET requests unless Content-Type is
// application/json. No CORS preflight is ever answered.
func RequireJSON(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next(w, r)
			return
		}
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/json" {
			writeJSON(w, http.StatusUnsupportedMediaType, model.ErrorResponse{
				Error: "request body must be application/json",
				Code:  "VALIDATION",
			})
			return
		}
		next(w, r)
	}
}
