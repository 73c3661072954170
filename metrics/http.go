package metrics

import (
	"net/http"

	"github.com/ffbk-dev/autolog-controller/config"
	"github.com/ffbk-dev/autolog-controller/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ListenAndServe serves the /metrics endpoint on addr until the process
// exits. Intended to run in its own goroutine from cmd/autologctl.
func ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.LogNoRecordID(
		"starting metrics server",
		"version", config.Version,
		"addr", addr,
	)
	return http.ListenAndServe(addr, mux)
}
