package templates

import (
	"strconv"

	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/feeds"
	"github.com/valyala/quicktemplate"
)

func streamThreadCard(w *quicktemplate.Writer, c feeds.ThreadCard) {
	id := formatID(c.ID)
	n := w.N()

	n.S(`<article class="thread-card`)
	if c.SSE {
		n.S(` live`)
	}
	n.S(`" id="thread-`)
	n.S(id)
	n.S(`"><header><a class="thread-title" href="/thread/`)
	n.S(id)
	n.S(`">`)
	if c.Title == "" {
		n.S(`Thread #`)
		n.S(id)
	} else {
		// Titles are sanitized before storage
		n.S(c.Title)
	}
	n.S(`</a> `)
	streamAuthor(w, c.Author)
	n.S(` <span class="post-count">`)
	n.S(strconv.Itoa(c.NumPosts))
	if c.NumPosts == 1 {
		n.S(` post`)
	} else {
		n.S(` posts`)
	}
	n.S(`</span></header><blockquote>`)
	n.S(c.Body)
	n.S(`</blockquote></article>`)
}

func streamPostCard(w *quicktemplate.Writer, c feeds.PostCard) {
	id := formatID(c.ID)
	n := w.N()

	n.S(`<article class="post-card`)
	if c.SSE {
		n.S(` live`)
	}
	n.S(`" id="post-`)
	n.S(id)
	n.S(`"><header><a class="post-link" href="#post-`)
	n.S(id)
	n.S(`">#`)
	n.S(id)
	n.S(`</a> `)
	streamAuthor(w, c.Author)
	n.S(`</header><blockquote>`)
	n.S(c.Body)
	n.S(`</blockquote></article>`)
}

func streamAuthor(w *quicktemplate.Writer, u db.User) {
	n := w.N()
	n.S(`<a class="author" href="/user/`)
	n.S(formatID(u.ID))
	n.S(`">`)
	if u.Avatar != nil {
		n.S(`<img class="avatar" src="`)
		w.E().S(*u.Avatar)
		n.S(`" alt=""> `)
	}
	w.E().S(u.Username)
	n.S(`</a>`)
}
