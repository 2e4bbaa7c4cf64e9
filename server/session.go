package server

import (
	"net/http"

	"github.com/bakape/lunachat/auth"
	"github.com/bakape/lunachat/common"
	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/templates"
)

const sessionCookie = "session"

// Returns the logged in user of the request or nil
func getUser(r *http.Request) (*db.User, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, nil
	}
	user, ok, err := sessions.Restore(c.Value)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

// Login state of the client passed to page templates
func pageSession(r *http.Request) (s templates.Session, err error) {
	s.User, err = getUser(r)
	if err != nil || s.User == nil {
		return
	}
	s.CanPost, err = backend.HasPermission(*s.User, auth.Post)
	return
}

// Ensure the client is logged in and allowed to post
func assertCanPost(r *http.Request) (user *db.User, err error) {
	user, err = getUser(r)
	if err != nil {
		return
	}
	if user == nil {
		return nil, common.ErrNotLoggedIn
	}
	can, err := backend.HasPermission(*user, auth.Post)
	if err != nil {
		return
	}
	if !can {
		return nil, common.ErrNoPermissions
	}
	return
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
