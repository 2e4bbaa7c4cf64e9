// Package templates renders HTML pages and live feed fragments
package templates

import (
	"io"
	"strconv"

	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/feeds"
	"github.com/valyala/quicktemplate"
)

// Session is the login state of the client a page is rendered for
type Session struct {
	User    *db.User
	CanPost bool
}

// Renderer renders feed cards
type Renderer struct{}

var _ feeds.Renderer = Renderer{}

// ThreadCard implements feeds.Renderer
func (Renderer) ThreadCard(c feeds.ThreadCard) ([]byte, error) {
	return render(func(w *quicktemplate.Writer) {
		streamThreadCard(w, c)
	}), nil
}

// PostCard implements feeds.Renderer
func (Renderer) PostCard(c feeds.PostCard) ([]byte, error) {
	return render(func(w *quicktemplate.Writer) {
		streamPostCard(w, c)
	}), nil
}

// Render to a new buffer
func render(fn func(*quicktemplate.Writer)) []byte {
	buf := quicktemplate.AcquireByteBuffer()
	defer quicktemplate.ReleaseByteBuffer(buf)
	w := quicktemplate.AcquireWriter(buf)
	defer quicktemplate.ReleaseWriter(w)

	fn(w)
	return append([]byte{}, buf.B...)
}

// Render directly into an io.Writer
func write(dst io.Writer, fn func(*quicktemplate.Writer)) {
	w := quicktemplate.AcquireWriter(dst)
	defer quicktemplate.ReleaseWriter(w)
	fn(w)
}

func formatID[T db.ID](id T) string {
	return strconv.FormatUint(uint64(id), 10)
}
