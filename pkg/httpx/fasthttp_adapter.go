package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/valyala/fasthttp"
)

// FastHTTPAdapter mounts a HandlerFunc on a fasthttp server. fasthttp has
// no per-request context of its own, so the adapter issues one that is
// cancelled when the handler returns.
func FastHTTPAdapter(h HandlerFunc) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		cctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req := fastRequest(cctx, ctx)
		h(newFastReply(ctx), req)
		_ = req.Body.Close()
	}
}

// fastRequest converts the pooled fasthttp request into the shared form.
// Everything read here aliases fasthttp's reusable buffers, so values are
// copied out before the pool can reclaim them.
func fastRequest(cctx context.Context, ctx *fasthttp.RequestCtx) *Request {
	hdr := make(http.Header, ctx.Request.Header.Len())
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		hdr.Add(string(k), string(v))
	})

	query := make(url.Values, ctx.QueryArgs().Len())
	ctx.QueryArgs().VisitAll(func(k, v []byte) {
		query.Add(string(k), string(v))
	})

	body := append([]byte(nil), ctx.PostBody()...)

	return &Request{
		Ctx:        cctx,
		Method:     string(ctx.Method()),
		Path:       string(ctx.Path()),
		Query:      query,
		Header:     hdr,
		Body:       io.NopCloser(bytes.NewReader(body)),
		RemoteAddr: ctx.RemoteAddr().String(),
		Raw:        ctx,
	}
}

type fastReply struct {
	replyWriter
	ctx *fasthttp.RequestCtx
}

func newFastReply(ctx *fasthttp.RequestCtx) *fastReply {
	r := &fastReply{ctx: ctx}
	r.header = make(http.Header)
	ctx.Response.Header.VisitAll(func(k, v []byte) {
		r.header.Add(string(k), string(v))
	})
	r.commit = func(status int, h http.Header) {
		for k, vals := range h {
			for _, v := range vals {
				ctx.Response.Header.Add(k, v)
			}
		}
		ctx.SetStatusCode(status)
	}
	return r
}

func (r *fastReply) Write(b []byte) (int, error) {
	if !r.committed() {
		r.WriteHeader(http.StatusOK)
	}
	return r.ctx.Write(b)
}
