package hertz

import (
	"context"
	"net/url"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/volcengine/apminsight-pprof-go/aipprof"
)

const DefaultPrefix = "/debug/pprof"

// Register mounts the pprof routes of svc under prefix, with and without a trailing slash.
//
//	h := server.Default()
//	hertz.Register(h, hertz.DefaultPrefix, aipprof.NewService())
func Register(r route.IRoutes, prefix string, svc *aipprof.Service) {
	if svc == nil {
		panic("service is nil")
	}
	prefix = strings.TrimRight(prefix, "/")
	for _, rt := range aipprof.Routes() {
		h := Handler(svc, rt)
		if rt == aipprof.RouteIndex {
			if prefix != "" {
				r.GET(prefix, h)
			}
			r.GET(prefix+"/", h)
			continue
		}
		r.GET(prefix+"/"+rt, h)
		r.GET(prefix+"/"+rt+"/", h)
	}
}

// Handler serves a single route of svc.
func Handler(svc *aipprof.Service, rt string) app.HandlerFunc {
	return func(ctx context.Context, reqCtx *app.RequestContext) {
		query := url.Values{}
		reqCtx.QueryArgs().VisitAll(func(key, value []byte) {
			query.Add(string(key), string(value))
		})
		writeResponse(reqCtx, svc.Handle(ctx, rt, query))
	}
}

func writeResponse(reqCtx *app.RequestContext, resp *aipprof.Response) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			reqCtx.Response.Header.Add(k, v)
		}
	}
	reqCtx.Data(resp.StatusCode, resp.ContentType, resp.Body)
}
