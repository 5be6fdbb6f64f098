package web

import (
	"net/http"

	"github.com/google/uuid"
)

const sessionCookie = "boardroom_session"

// sessionID returns the browser session of r, issuing a new cookie when the
// request has none.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return "web:" + c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, newSessionCookie(id))
	return "web:" + id
}

func newSessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
