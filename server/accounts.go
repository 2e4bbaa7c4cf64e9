package server

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/bakape/lunachat/auth"
	"github.com/bakape/lunachat/common"
	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/templates"
)

// Render the login and registration forms
func loginHTML(w http.ResponseWriter, r *http.Request) {
	renderLogin(w, r, safeNext(r.URL.Query().Get("next")), 200, "")
}

func renderLogin(
	w http.ResponseWriter,
	r *http.Request,
	next string,
	code int,
	msg string,
) {
	s, err := pageSession(r)
	if err != nil {
		httpError(w, r, err)
		return
	}
	var buf bytes.Buffer
	templates.WriteLogin(&buf, s, next, msg)
	setHTMLHeaders(w)
	w.WriteHeader(code)
	writeData(w, r, buf.Bytes())
}

// Log into a registered user account
func login(w http.ResponseWriter, r *http.Request) {
	commitAuth(w, r, func(ctx context.Context, creds auth.Credentials) (
		user db.User, err error,
	) {
		user, ok, err := backend.Authenticate(ctx, creds)
		if err == nil && !ok {
			err = common.ErrInvalidCreds
		}
		return
	})
}

// Register a new user account and log into it
func register(w http.ResponseWriter, r *http.Request) {
	commitAuth(w, r, backend.Register)
}

// Common part of login and registration. On success a session is started and
// the client is redirected to the page it came from.
func commitAuth(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, auth.Credentials) (db.User, error),
) {
	creds := auth.Credentials{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Next:     safeNext(r.PostFormValue("next")),
	}
	err := func() (err error) {
		user, err := fn(r.Context(), creds)
		if err != nil {
			return
		}
		token, err := sessions.Login(user)
		if err != nil {
			return
		}
		setSessionCookie(w, token)
		return
	}()
	if err != nil {
		if common.StatusCode(err) == 400 {
			renderLogin(w, r, creds.Next, 400, err.Error())
		} else {
			httpError(w, r, err)
		}
		return
	}
	http.Redirect(w, r, creds.Next, http.StatusSeeOther)
}

// Log out user from session
func logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		sessions.Logout(c.Value)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
