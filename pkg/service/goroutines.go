package service

import (
	"fmt"
	"net/http"
	"runtime/pprof"

	"k8s.io/klog/v2"
)

// goRoutineHandler prints the goroutine stacks to the response.
func goRoutineHandler(w http.ResponseWriter, _ *http.Request) {
	ps := pprof.Profiles()
	for _, p := range ps {
		if p.Name() == "goroutine" {
			if err := p.WriteTo(w, 2); err != nil {
				klog.Warningf("Writing goroutine stacks: %v", err)
				// nolint:errcheck
				_, _ = w.Write([]byte(fmt.Sprintf("error while writing goroutine stacks: %s", err)))
			}
			return
		}
	}

	// nolint:errcheck
	_, _ = w.Write([]byte("unable to find profile for goroutines"))
}
