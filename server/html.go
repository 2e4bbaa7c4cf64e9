package server

import (
	"bytes"
	"net/http"

	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/templates"
)

// Render a page into a buffer and write it to the client
func servePage(
	w http.ResponseWriter,
	r *http.Request,
	fn func(buf *bytes.Buffer, s templates.Session) error,
) {
	err := func() (err error) {
		s, err := pageSession(r)
		if err != nil {
			return
		}
		var buf bytes.Buffer
		err = fn(&buf, s)
		if err != nil {
			return
		}
		setHTMLHeaders(w)
		writeData(w, r, buf.Bytes())
		return
	}()
	if err != nil {
		httpError(w, r, err)
	}
}

// Thread list
func forumHTML(w http.ResponseWriter, r *http.Request) {
	servePage(w, r, func(buf *bytes.Buffer, s templates.Session) error {
		threads, err := posting.Threads()
		if err != nil {
			return err
		}
		templates.WriteForum(buf, s, threads)
		return nil
	})
}

// Thread with all of its posts
func threadHTML(w http.ResponseWriter, r *http.Request) {
	id, ok := extractID(r, "thread")
	if !ok {
		text404(w)
		return
	}
	servePage(w, r, func(buf *bytes.Buffer, s templates.Session) error {
		thread, posts, err := posting.Thread(db.ThreadID(id))
		if err != nil {
			return err
		}
		templates.WriteThread(buf, s, thread, posts)
		return nil
	})
}

// User profile
func userHTML(w http.ResponseWriter, r *http.Request) {
	id, ok := extractID(r, "user")
	if !ok {
		text404(w)
		return
	}
	servePage(w, r, func(buf *bytes.Buffer, s templates.Session) error {
		user, threads, err := posting.User(db.UserID(id))
		if err != nil {
			return err
		}
		templates.WriteUser(buf, s, user, threads)
		return nil
	})
}
