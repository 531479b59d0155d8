package server

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/jrsteele09/go-blob-drive/sessions"
	"golang.org/x/oauth2"
)

// authFlowMaxAge bounds how long a started login may take before its callback is refused.
const authFlowMaxAge = 10 * time.Minute

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func newAuthFlow() *sessions.AuthFlow {
	return &sessions.AuthFlow{
		State:        generateRandomString(32),
		CodeVerifier: oauth2.GenerateVerifier(),
		CreatedAt:    time.Now().UTC(),
	}
}

// redirectSeeOther sends the browser to path with a GET after a form submission.
func redirectSeeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}
