package server

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/bakape/lunachat/common"
	"github.com/bakape/lunachat/config"
	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/feeds"
	"github.com/bakape/lunachat/websockets"
)

// Sent as an SSE comment, when no item arrived during the keep-alive interval
var keepAliveEvent = []byte(": keep-alive-text\n\n")

func keepAlive() time.Duration {
	if d := config.Server.KeepAlive; d > 0 {
		return d
	}
	return feeds.DefaultKeepAlive
}

// Subscribe to new threads
func threadsSSE(w http.ResponseWriter, r *http.Request) {
	serveSSE(w, r, feeds.SubscribeThreads(store, renderer))
}

// Subscribe to new posts of a thread
func postsSSE(w http.ResponseWriter, r *http.Request) {
	thread, ok := threadFeedParam(w, r)
	if ok {
		serveSSE(w, r, feeds.SubscribePosts(store, renderer, thread))
	}
}

func threadsSocket(w http.ResponseWriter, r *http.Request) {
	serveSocket(w, r, feeds.SubscribeThreads(store, renderer))
}

func postsSocket(w http.ResponseWriter, r *http.Request) {
	thread, ok := threadFeedParam(w, r)
	if ok {
		serveSocket(w, r, feeds.SubscribePosts(store, renderer, thread))
	}
}

// Parse and validate the thread of a posts feed. Writes a response and returns
// false on failure.
func threadFeedParam(w http.ResponseWriter, r *http.Request) (
	thread db.ThreadID, ok bool,
) {
	id, ok := extractID(r, "thread")
	if !ok {
		text404(w)
		return
	}
	thread = db.ThreadID(id)
	if _, err := store.Threads.Load(thread); err != nil {
		httpError(w, r, err)
		return 0, false
	}
	return
}

// Stream feed items to the client as server-sent events, until the client
// disconnects
func serveSSE(w http.ResponseWriter, r *http.Request, f feeds.Feed) {
	defer f.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, r, errors.New("flushing unavailable"))
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(200)
	flusher.Flush()

	err := feeds.Pump(r.Context(), f, keepAlive(), func(fr feeds.Frame) error {
		if fr.Err != nil {
			if _, internal := fr.ErrorMessage(); internal {
				logError(r, fr.Err)
			}
		}
		_, err := w.Write(encodeEvent(fr))
		if err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil &&
		r.Context().Err() == nil &&
		!common.CanIgnoreClientError(err) {
		logError(r, err)
	}
}

// Encode a feed frame as a server-sent event. Failed items are sent as
// "error" events without internal details.
func encodeEvent(fr feeds.Frame) []byte {
	if fr.KeepAlive {
		return keepAliveEvent
	}

	var buf bytes.Buffer
	if fr.Err != nil {
		msg, _ := fr.ErrorMessage()
		buf.WriteString("event: error\n")
		writeEventData(&buf, []byte(msg))
	} else {
		writeEventData(&buf, fr.Item.HTML)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Data containing line breaks must be split over several data fields
func writeEventData(buf *bytes.Buffer, data []byte) {
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		buf.WriteString("data: ")
		buf.Write(bytes.TrimSuffix(line, []byte{'\r'}))
		buf.WriteByte('\n')
	}
}

func serveSocket(w http.ResponseWriter, r *http.Request, f feeds.Feed) {
	defer f.Close()

	err := websockets.Serve(w, r, f, keepAlive())
	if err != nil && !common.CanIgnoreClientError(err) {
		logError(r, err)
	}
}
