package templates

import (
	"io"

	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/feeds"
	"github.com/bakape/lunachat/forum"
	"github.com/valyala/quicktemplate"
)

// Wrap body in the common page layout
func streamPage(
	w *quicktemplate.Writer,
	title string,
	s Session,
	body func(*quicktemplate.Writer),
) {
	n := w.N()
	n.S(`<!DOCTYPE html><html><head><meta charset="utf-8">`)
	n.S(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	n.S(`<title>`)
	w.E().S(title)
	n.S(`</title><link rel="stylesheet" href="/static/main.css">`)
	n.S(`<script src="https://unpkg.com/htmx.org@1.9.12"></script>`)
	n.S(`<script src="https://unpkg.com/htmx.org@1.9.12/dist/ext/sse.js"></script>`)
	n.S(`</head><body hx-boost="true"><nav><a href="/">Forum</a>`)
	if s.User != nil {
		n.S(` <a href="/user/`)
		n.S(formatID(s.User.ID))
		n.S(`">`)
		w.E().S(s.User.Username)
		n.S(`</a> <a href="/logout">Log out</a>`)
	} else {
		n.S(` <a href="/login">Log in</a>`)
	}
	n.S(`</nav><main>`)
	body(w)
	n.S(`</main></body></html>`)
}

// WriteForum renders the thread list
func WriteForum(dst io.Writer, s Session, threads []forum.ThreadSummary) {
	write(dst, func(w *quicktemplate.Writer) {
		streamPage(w, "Forum", s, func(w *quicktemplate.Writer) {
			n := w.N()
			if s.CanPost {
				n.S(`<form class="new-thread" method="post" action="/thread">`)
				n.S(`<input name="title" placeholder="Title" maxlength="100">`)
				n.S(`<textarea name="body" required maxlength="2000"></textarea>`)
				n.S(`<button type="submit">New thread</button></form>`)
			}
			n.S(`<section id="threads" hx-ext="sse" sse-connect="/sse" `)
			n.S(`sse-swap="message" hx-swap="afterbegin">`)
			for _, t := range threads {
				streamThreadCard(w, feeds.ThreadCard{
					ID:       t.Thread.ID,
					Title:    t.Thread.Title,
					Body:     t.Root.Body,
					Author:   t.Author,
					NumPosts: t.NumPosts,
				})
			}
			n.S(`</section>`)
		})
	})
}

// WriteThread renders a thread and all its posts
func WriteThread(
	dst io.Writer,
	s Session,
	thread db.Thread,
	posts []forum.PostView,
) {
	title := "Thread #" + formatID(thread.ID)
	write(dst, func(w *quicktemplate.Writer) {
		streamPage(w, title, s, func(w *quicktemplate.Writer) {
			id := formatID(thread.ID)
			n := w.N()
			n.S(`<h1>`)
			if thread.Title == "" {
				w.E().S(title)
			} else {
				n.S(thread.Title)
			}
			n.S(`</h1><section id="posts" hx-ext="sse" sse-connect="/thread/`)
			n.S(id)
			n.S(`/sse" sse-swap="message" hx-swap="beforeend">`)
			for _, p := range posts {
				streamPostCard(w, feeds.PostCard{
					ID:     p.Post.ID,
					Body:   p.Post.Body,
					Author: p.Author,
				})
			}
			n.S(`</section>`)
			if s.CanPost {
				n.S(`<form class="reply" method="post" action="/thread/`)
				n.S(id)
				n.S(`" hx-post="/thread/`)
				n.S(id)
				n.S(`" hx-swap="none" hx-on::after-request="this.reset()">`)
				n.S(`<textarea name="body" required maxlength="2000"></textarea>`)
				n.S(`<button type="submit">Reply</button></form>`)
			}
		})
	})
}

// WriteLogin renders the login and registration forms
func WriteLogin(dst io.Writer, s Session, next, errMsg string) {
	write(dst, func(w *quicktemplate.Writer) {
		streamPage(w, "Log in", s, func(w *quicktemplate.Writer) {
			n := w.N()
			if errMsg != "" {
				n.S(`<p class="error">`)
				w.E().S(errMsg)
				n.S(`</p>`)
			}
			for _, f := range [...]struct{ action, label string }{
				{"/login", "Log in"},
				{"/register", "Register"},
			} {
				n.S(`<form method="post" action="`)
				n.S(f.action)
				n.S(`"><input name="username" placeholder="Username" required maxlength="50">`)
				n.S(`<input name="password" type="password" placeholder="Password" required maxlength="50">`)
				if next != "" {
					n.S(`<input type="hidden" name="next" value="`)
					w.E().S(next)
					n.S(`">`)
				}
				n.S(`<button type="submit">`)
				n.S(f.label)
				n.S(`</button></form>`)
			}
		})
	})
}

// WriteUser renders a user profile
func WriteUser(dst io.Writer, s Session, user db.User, threads []db.Thread) {
	write(dst, func(w *quicktemplate.Writer) {
		streamPage(w, user.Username, s, func(w *quicktemplate.Writer) {
			n := w.N()
			n.S(`<h1>`)
			streamAuthor(w, user)
			n.S(`</h1><ul class="user-threads">`)
			for _, t := range threads {
				id := formatID(t.ID)
				n.S(`<li><a href="/thread/`)
				n.S(id)
				n.S(`">`)
				if t.Title == "" {
					n.S(`Thread #`)
					n.S(id)
				} else {
					n.S(t.Title)
				}
				n.S(`</a></li>`)
			}
			n.S(`</ul>`)
		})
	})
}
