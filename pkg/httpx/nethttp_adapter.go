package httpx

import (
	"maps"
	"net/http"
)

// NetHTTPAdapter mounts a HandlerFunc on a net/http mux.
func NetHTTPAdapter(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &Request{
			Ctx:        r.Context(),
			Method:     r.Method,
			Path:       r.URL.Path,
			Query:      r.URL.Query(),
			Header:     r.Header.Clone(),
			Body:       r.Body,
			RemoteAddr: r.RemoteAddr,
			Raw:        r,
		}
		h(newNetReply(w), req)
		if req.Body != nil {
			_ = req.Body.Close()
		}
	})
}

type netReply struct {
	replyWriter
	dst http.ResponseWriter
}

// newNetReply stages a copy of any headers middleware already placed on
// the underlying writer; commit pushes the staged set down with the
// status line. Headers set after commit are dropped.
func newNetReply(dst http.ResponseWriter) *netReply {
	r := &netReply{dst: dst}
	r.header = dst.Header().Clone()
	if r.header == nil {
		r.header = make(http.Header)
	}
	r.commit = func(status int, h http.Header) {
		maps.Copy(dst.Header(), h)
		dst.WriteHeader(status)
	}
	return r
}

func (r *netReply) Write(b []byte) (int, error) {
	if !r.committed() {
		r.WriteHeader(http.StatusOK)
	}
	return r.dst.Write(b)
}
