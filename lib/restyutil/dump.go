// Package restyutil dumps full HTTP exchanges to a debugging sink.
// Scrape breakage usually means the site changed its markup; having
// the raw request and response on disk beats re-running the scrape
// under a debugger.
package restyutil

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// Output receives one rendered HTTP exchange per request.
type Output interface {
	Write(id string, contents string)
}

type exchangeIdKey struct{}

// DumpExchanges attaches middleware that renders every completed
// request/response pair into out. Dumps only happen while debug
// logging is enabled, so the hooks are safe to leave attached.
func DumpExchanges(client *resty.Client, out Output) {
	if out == nil {
		return
	}

	var counter uint64
	client.OnBeforeRequest(func(cli *resty.Client, req *resty.Request) error {
		ctx := req.Context()
		if !slog.Default().Enabled(ctx, slog.LevelDebug) {
			return nil
		}
		id := strconv.FormatUint(atomic.AddUint64(&counter, 1), 10)
		slog.DebugContext(
			ctx, "start request",
			"method", req.Method,
			"url", req.URL,
			"exchange_id", id,
		)
		req.SetContext(context.WithValue(ctx, exchangeIdKey{}, id))
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		ctx := res.Request.Context()
		id, ok := ctx.Value(exchangeIdKey{}).(string)
		if !ok {
			return nil
		}
		out.Write(id, formatExchange(res))
		slog.DebugContext(
			ctx, "request done",
			"status", res.StatusCode(),
			"exchange_id", id,
		)
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		ctx := req.Context()
		id, ok := ctx.Value(exchangeIdKey{}).(string)
		if !ok {
			return
		}
		slog.ErrorContext(
			ctx, "request failed",
			"method", req.Method,
			"url", req.URL,
			"err", err,
			"exchange_id", id,
		)
	})
}
