package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/bakape/lunachat/test"
)

// Register a user over HTTP and return the session cookie
func registerUser(t *testing.T, r http.Handler, name string) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, newForm("/register", url.Values{
		"username": {name},
		"password": {"hunter2"},
	}))
	assertRedirect(t, rec, "/")
	return sessionFrom(t, rec)
}

func sessionFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestLoginPage(t *testing.T) {
	r := setup(t)

	rec, req := newPair("/login?next=%2Fthread%2F1")
	r.ServeHTTP(rec, req)
	assertCode(t, rec, 200)
	assertContains(t, rec, `action="/login"`, `action="/register"`, `value="/thread/1"`)
}

func TestRegisterAndLogin(t *testing.T) {
	r := setup(t)
	registerUser(t, r, "alice")

	t.Run("correct password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, newForm("/login", url.Values{
			"username": {"alice"},
			"password": {"hunter2"},
			"next":     {"/user/1"},
		}))
		assertRedirect(t, rec, "/user/1")
		c := sessionFrom(t, rec)

		rec, req := newPair("/")
		req.AddCookie(c)
		r.ServeHTTP(rec, req)
		assertCode(t, rec, 200)
		assertContains(t, rec, `href="/user/1"`, "Log out", `action="/thread"`)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, newForm("/login", url.Values{
			"username": {"alice"},
			"password": {"hunter3"},
		}))
		assertCode(t, rec, 400)
		assertContains(t, rec, "username or password incorrect")
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, newForm("/login", url.Values{
			"username": {"bob"},
			"password": {"hunter2"},
		}))
		assertCode(t, rec, 400)
	})

	t.Run("username taken", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, newForm("/register", url.Values{
			"username": {"alice"},
			"password": {"other"},
		}))
		assertCode(t, rec, 400)
		assertContains(t, rec, "username already taken")
	})

	t.Run("external redirect", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, newForm("/login", url.Values{
			"username": {"alice"},
			"password": {"hunter2"},
			"next":     {"//evil.example"},
		}))
		assertRedirect(t, rec, "/")
	})
}

func TestLogout(t *testing.T) {
	r := setup(t)
	c := registerUser(t, r, "alice")
	test.AssertEquals(t, sessions.Len(), 1)

	rec, req := newPair("/logout")
	req.AddCookie(c)
	r.ServeHTTP(rec, req)
	assertRedirect(t, rec, "/")
	test.AssertEquals(t, sessions.Len(), 0)

	rec, req = newPair("/")
	req.AddCookie(c)
	r.ServeHTTP(rec, req)
	assertCode(t, rec, 200)
	assertContains(t, rec, `href="/login"`)
}

func TestSafeNext(t *testing.T) {
	cases := [...]struct {
		in, out string
	}{
		{"", "/"},
		{"/thread/1", "/thread/1"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
		{"https://evil.example", "/"},
	}
	for _, c := range cases {
		test.AssertEquals(t, safeNext(c.in), c.out)
	}
}
