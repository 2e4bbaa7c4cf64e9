package server

import (
	"compress/gzip"
	"net/http"
	"strings"

	"github.com/bakape/lunachat/config"
	"github.com/dimfeld/httptreemux"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Create the monolithic router for routing HTTP requests. Separated into own
// function for easier testability.
func createRouter() http.Handler {
	r := httptreemux.NewContextMux()
	r.NotFoundHandler = func(w http.ResponseWriter, _ *http.Request) {
		text404(w)
	}
	r.PanicHandler = handlePanic

	// HTML
	r.GET("/", forumHTML)
	r.GET("/thread/:thread", threadHTML)
	r.GET("/user/:user", userHTML)
	r.GET("/login", loginHTML)

	// Form submissions
	r.POST("/thread", createThread)
	r.POST("/thread/:thread", createReply)
	r.POST("/login", login)
	r.POST("/register", register)
	r.GET("/logout", logout)

	// Live feeds
	r.GET("/sse", threadsSSE)
	r.GET("/thread/:thread/sse", postsSSE)
	r.GET("/socket", threadsSocket)
	r.GET("/thread/:thread/socket", postsSocket)

	api := r.NewGroup("/api")
	api.GET("/health-check", healthCheck)
	r.GET("/metrics", promhttp.Handler().ServeHTTP)

	static := http.StripPrefix(
		"/static",
		http.FileServer(http.Dir(config.Server.Static)),
	)
	r.GET("/static/*path", static.ServeHTTP)

	h := http.Handler(r)
	if config.Server.Gzip {
		h = bypassLiveFeeds(
			handlers.CompressHandlerLevel(h, gzip.DefaultCompression),
			r,
		)
	}
	if config.Server.ReverseProxied {
		h = handlers.ProxyHeaders(h)
	}
	return h
}

// Route live feed requests to raw, so they are neither buffered nor hijacked
// through wrapping writers
func bypassLiveFeeds(h, raw http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLiveFeed(r.URL.Path) {
			raw.ServeHTTP(w, r)
		} else {
			h.ServeHTTP(w, r)
		}
	})
}

func isLiveFeed(path string) bool {
	return strings.HasSuffix(path, "/sse") ||
		strings.HasSuffix(path, "/socket")
}

// Health check to ensure server is still online
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("God's in His heaven, all's right with the world"))
}
