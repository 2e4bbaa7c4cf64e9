package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bakape/lunachat/common"
	"github.com/bakape/lunachat/util"
	"github.com/dimfeld/httptreemux"
	"github.com/go-playground/log"
)

// Base set of HTTP headers for HTML pages
var vanillaHeaders = map[string]string{
	"Content-Type":    "text/html; charset=utf-8",
	"X-Frame-Options": "sameorigin",
	"Cache-Control":   "no-cache",
	"Expires":         "Fri, 01 Jan 1990 00:00:00 GMT",
}

func setHTMLHeaders(w http.ResponseWriter) {
	h := w.Header()
	for key, val := range vanillaHeaders {
		h.Set(key, val)
	}
}

// Write a []byte to the client. Must receive the entire response body at once.
func writeData(w http.ResponseWriter, r *http.Request, data []byte) {
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, err := w.Write(data)
	if err != nil && !common.CanIgnoreClientError(err) {
		logError(r, err)
	}
}

func extractParam(r *http.Request, id string) string {
	return httptreemux.ContextParams(r.Context())[id]
}

// Parse a numeric ID URL parameter
func extractID(r *http.Request, param string) (uint64, bool) {
	id, err := strconv.ParseUint(extractParam(r, param), 10, 64)
	return id, err == nil
}

func handlePanic(w http.ResponseWriter, r *http.Request, err interface{}) {
	http.Error(w, fmt.Sprintf("500 %s", err), 500)
	util.LogError(r.RemoteAddr, err)
}

// Log an error together with the client's IP
func logError(r *http.Request, err error) {
	log.
		WithFields(
			log.F("ip", r.RemoteAddr),
			log.F("method", r.Method),
			log.F("path", r.URL.Path),
		).
		Errorf("server: %s", err)
}

// Text-only 404 response
func text404(w http.ResponseWriter) {
	http.Error(w, "404 not found", 404)
}

// Respond to the client with the status code matching err. Clients, that are
// not logged in, are sent to the login page instead.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, common.ErrNotLoggedIn) {
		redirectToLogin(w, r)
		return
	}

	code := common.StatusCode(err)
	if code >= 500 {
		http.Error(w, "500 internal server error", 500)
		logError(r, err)
		return
	}
	http.Error(w, fmt.Sprintf("%d %s", code, err), code)
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	next := r.URL.RequestURI()
	if r.Method != http.MethodGet {
		// Return to the page the form was submitted from
		next = "/"
		if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" {
			next = ref.RequestURI()
		}
	}
	loc := "/login?next=" + url.QueryEscape(next)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", loc)
	}
	http.Redirect(w, r, loc, http.StatusSeeOther)
}

// Only allow redirects to local paths
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") ||
		strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// Request made by the htmx client library
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true" ||
		r.Header.Get("HX-Boosted") == "true"
}
