// Package websockets streams live feeds to websocket clients as JSON messages
package websockets

import (
	"context"
	"net/http"
	"time"

	"github.com/bakape/lunachat/feeds"
	"github.com/go-playground/log"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson/jwriter"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Serve upgrades the connection and streams items of f to the client, until
// either side closes the connection. Keep-alives are sent as pings.
func Serve(
	w http.ResponseWriter,
	r *http.Request,
	f feeds.Feed,
	keepAlive time.Duration,
) (err error) {
	// Upgrade writes the HTTP error response itself
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Clients only ever send control messages. Reading is still required to
	// process them and detect disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	err = feeds.Pump(ctx, f, keepAlive, func(fr feeds.Frame) error {
		deadline := time.Now().Add(writeTimeout)
		if fr.KeepAlive {
			return conn.WriteControl(websocket.PingMessage, nil, deadline)
		}
		if fr.Err != nil {
			if _, internal := fr.ErrorMessage(); internal {
				log.
					WithFields(log.F("ip", r.RemoteAddr), log.F("path", r.URL.Path)).
					Errorf("websockets: %s", fr.Err)
			}
		}
		conn.SetWriteDeadline(deadline)
		return conn.WriteMessage(websocket.TextMessage, EncodeFrame(fr))
	})
	if ctx.Err() != nil {
		// Client disconnected
		err = nil
	}
	return
}

// EncodeFrame encodes a feed frame as a JSON message:
//
//	{"type":"thread","id":1,"html":"..."}
//	{"type":"error","error":"..."}
//
// Errors other than missing entities are sent as a generic message.
func EncodeFrame(fr feeds.Frame) []byte {
	var w jwriter.Writer
	w.RawString(`{"type":`)
	if fr.Err != nil {
		w.String("error")
		msg, _ := fr.ErrorMessage()
		w.RawString(`,"error":`)
		w.String(msg)
	} else {
		w.String(fr.Item.Kind)
		w.RawString(`,"id":`)
		w.Uint64(fr.Item.ID)
		w.RawString(`,"html":`)
		w.String(string(fr.Item.HTML))
	}
	w.RawByte('}')

	// Writing to memory can not fail
	buf, _ := w.BuildBytes()
	return buf
}
