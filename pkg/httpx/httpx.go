// Package httpx decouples handlers from the transport that serves them.
// The daemon keeps its main API on net/http but runs the action endpoint
// on a dedicated fasthttp listener; both mount the same HandlerFunc, so
// the mutation path is written once and served by either stack.
package httpx

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Request carries the transport-independent view of an incoming call.
// Handlers take cancellation and deadlines from Ctx rather than from the
// underlying connection object.
type Request struct {
	Ctx        context.Context
	Method     string
	Path       string
	Query      url.Values
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
	// Raw holds the transport's own request object (*http.Request or
	// *fasthttp.RequestCtx) for the rare handler that needs it.
	Raw interface{}
}

// ResponseWriter is the subset of http.ResponseWriter behavior the
// adapters provide. Any http.ResponseWriter already satisfies it, so JSON
// helpers written against this interface serve both transports unchanged.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

// HandlerFunc is the handler signature shared by all adapters.
type HandlerFunc func(w ResponseWriter, r *Request)

// replyWriter holds headers back until the status line is committed, so a
// handler may keep setting them in any order before the first write. The
// first WriteHeader wins; later calls are ignored on both transports.
type replyWriter struct {
	header http.Header
	status int
	commit func(status int, h http.Header)
}

func (w *replyWriter) Header() http.Header { return w.header }

func (w *replyWriter) WriteHeader(status int) {
	if w.status != 0 {
		return
	}
	w.status = status
	w.commit(status, w.header)
}

// committed reports whether the status line has already gone out.
func (w *replyWriter) committed() bool { return w.status != 0 }
