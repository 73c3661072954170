package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type retriesKey struct{}

var RetriesKey = retriesKey{}

type retries struct {
	count          int
	lastStatusCode int
}

// MonitorRequest runs an HTTP call through client, recording retry count,
// duration and failures against clientMetrics. The retry count is
// populated by a CheckRetry hook (HttpRetryHook) stashed in the request
// context, the same indirection used to thread per-request retry state
// through retryablehttp without a global.
func MonitorRequest(clientMetrics ClientMetrics, client *http.Client, r *http.Request) (*http.Response, error) {
	ctx := context.WithValue(r.Context(), RetriesKey, &retries{count: -1})
	req := r.WithContext(ctx)

	start := time.Now()
	res, err := client.Do(req)
	duration := time.Since(start)

	rt := ctx.Value(RetriesKey).(*retries)
	if rt.lastStatusCode >= 400 {
		clientMetrics.FailureCount.WithLabelValues(req.URL.Host, fmt.Sprint(rt.lastStatusCode)).Inc()
		return res, err
	}

	clientMetrics.RequestDuration.WithLabelValues(req.URL.Host).Observe(duration.Seconds())
	clientMetrics.RetryCount.WithLabelValues(req.URL.Host).Set(float64(rt.count))

	return res, err
}

// HttpRetryHook is a retryablehttp.CheckRetry that records observed status
// codes for MonitorRequest and otherwise defers to the library's default
// retry policy.
func HttpRetryHook(ctx context.Context, res *http.Response, err error) (bool, error) {
	if rt, ok := ctx.Value(RetriesKey).(*retries); ok {
		switch {
		case res == nil:
			rt.lastStatusCode = 0
		default:
			rt.lastStatusCode = res.StatusCode
		}
		rt.count++
	}
	return retryablehttp.DefaultRetryPolicy(ctx, res, err)
}
