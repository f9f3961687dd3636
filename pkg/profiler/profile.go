// Package profiler serves pprof profiles of the controller on request.
package profiler

import (
	"flag"
	"net"
	"net/http"
	// Registers the pprof handlers on http.DefaultServeMux.
	_ "net/http/pprof"
	"strconv"
	"time"

	"k8s.io/klog/v2"
)

var enableProfiler = flag.Bool("enable-pprof", false, "enable pprof profiling")
var profilerPort = flag.Int("pprof-port", 6060, "port for pprof profiling. defaulted to 6060 if unspecified")

// Service starts the profiler http endpoint if --enable-pprof flag is passed.
// It listens on localhost only.
func Service() {
	if !*enableProfiler {
		return
	}
	addr := net.JoinHostPort("localhost", strconv.Itoa(*profilerPort))
	server := &http.Server{
		Addr:              addr,
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		klog.Infof("Starting profiling on %s", addr)
		if err := server.ListenAndServe(); err != nil {
			klog.Errorf("Profiler server stopped: %v", err)
		}
	}()
}
