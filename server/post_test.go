package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/test"
)

func createThreadHTTP(t *testing.T, r http.Handler, c *http.Cookie) {
	t.Helper()

	req := newForm("/thread", url.Values{
		"title": {"hi"},
		"body":  {"hello"},
	})
	req.AddCookie(c)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assertRedirect(t, rec, "/thread/1")
}

func TestCreateThread(t *testing.T) {
	r := setup(t)
	c := registerUser(t, r, "alice")
	createThreadHTTP(t, r, c)

	rec, req := newPair("/thread/1")
	r.ServeHTTP(rec, req)
	assertCode(t, rec, 200)
	assertContains(t, rec, "hi", "hello", "alice")

	rec, req = newPair("/")
	r.ServeHTTP(rec, req)
	assertCode(t, rec, 200)
	assertContains(t, rec, `href="/thread/1"`)

	rec, req = newPair("/user/1")
	r.ServeHTTP(rec, req)
	assertCode(t, rec, 200)
	assertContains(t, rec, `href="/thread/1"`)
}

func TestCreateReply(t *testing.T) {
	r := setup(t)
	c := registerUser(t, r, "alice")
	createThreadHTTP(t, r, c)

	t.Run("form", func(t *testing.T) {
		req := newForm("/thread/1", url.Values{"body": {"first"}})
		req.AddCookie(c)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assertRedirect(t, rec, "/thread/1")
	})

	t.Run("htmx", func(t *testing.T) {
		req := newForm("/thread/1", url.Values{"body": {"second"}})
		req.Header.Set("HX-Boosted", "true")
		req.AddCookie(c)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assertCode(t, rec, 200)
		assertBody(t, rec, "")
	})

	t.Run("missing thread", func(t *testing.T) {
		req := newForm("/thread/9", url.Values{"body": {"third"}})
		req.AddCookie(c)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assertCode(t, rec, 404)
	})

	t.Run("empty body", func(t *testing.T) {
		req := newForm("/thread/1", url.Values{"body": {""}})
		req.AddCookie(c)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assertCode(t, rec, 400)
	})

	// Replies chain onto the latest post
	p2, err := store.Posts.Load(2)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEquals(t, *p2.Parent, db.PostID(1))
	test.AssertEquals(t, p2.Children, []db.PostID{3})

	rec, req := newPair("/thread/1")
	r.ServeHTTP(rec, req)
	body := rec.Body.String()
	if strings.Index(body, "first") > strings.Index(body, "second") {
		t.Fatalf("posts out of order:\n%s", body)
	}
}

func TestAnonymousPosting(t *testing.T) {
	r := setup(t)

	t.Run("thread", func(t *testing.T) {
		req := newForm("/thread", url.Values{"body": {"hello"}})
		req.Header.Set("Referer", "http://example.com/")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assertRedirect(t, rec, "/login?next=%2F")
	})

	t.Run("reply", func(t *testing.T) {
		req := newForm("/thread/1", url.Values{"body": {"hello"}})
		req.Header.Set("Referer", "http://example.com/thread/1")
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assertRedirect(t, rec, "/login?next=%2Fthread%2F1")
		test.AssertEquals(
			t,
			rec.Header().Get("HX-Redirect"),
			"/login?next=%2Fthread%2F1",
		)
	})

	t.Run("expired session", func(t *testing.T) {
		req := newForm("/thread", url.Values{"body": {"hello"}})
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "stale"})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assertRedirect(t, rec, "/login?next=%2F")
	})
}
