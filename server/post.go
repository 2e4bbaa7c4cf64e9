package server

import (
	"net/http"
	"strconv"

	"github.com/bakape/lunachat/db"
)

// Create a thread and redirect to it
func createThread(w http.ResponseWriter, r *http.Request) {
	err := func() (err error) {
		user, err := assertCanPost(r)
		if err != nil {
			return
		}
		id, err := posting.CreateThread(
			user,
			r.PostFormValue("title"),
			r.PostFormValue("body"),
		)
		if err != nil {
			return
		}
		http.Redirect(w, r, threadURL(id), http.StatusSeeOther)
		return
	}()
	if err != nil {
		httpError(w, r, err)
	}
}

// Reply to a thread. htmx clients receive the new post over the thread's
// live feed, so they only get an empty response.
func createReply(w http.ResponseWriter, r *http.Request) {
	id, ok := extractID(r, "thread")
	if !ok {
		text404(w)
		return
	}
	thread := db.ThreadID(id)

	err := func() (err error) {
		user, err := assertCanPost(r)
		if err != nil {
			return
		}
		_, err = posting.Reply(user, thread, r.PostFormValue("body"))
		if err != nil {
			return
		}
		if isHTMX(r) {
			w.WriteHeader(200)
		} else {
			http.Redirect(w, r, threadURL(thread), http.StatusSeeOther)
		}
		return
	}()
	if err != nil {
		httpError(w, r, err)
	}
}

func threadURL(id db.ThreadID) string {
	return "/thread/" + strconv.FormatUint(uint64(id), 10)
}
