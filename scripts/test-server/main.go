// A local target for loadshape runs: JSON responses with configurable
// latency and error rate, so body checks and failure handling can be
// exercised without an external service.
//
//	go run ./scripts/test-server -addr :8080 -latency 5ms -error-rate 0.1
//	loadshape run --url http://localhost:8080/status --pattern linear \
//	  --initial 500 --final 2000 --shape-duration 30s --threads 4
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	latency := flag.Duration("latency", 0, "artificial per-request latency")
	errorRate := flag.Float64("error-rate", 0, "fraction of requests answered with 500")
	flag.Parse()

	var requests atomic.Int64

	http.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if *latency > 0 {
			time.Sleep(*latency)
		}

		w.Header().Set("Content-Type", "application/json")
		if *errorRate > 0 && rand.Float64() < *errorRate {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"status":"error"}`)
			return
		}
		fmt.Fprintf(w, `{"status":"ok","request":%d}`, n)
	})

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"healthy"}`)
	})

	server := &http.Server{
		Addr:              *addr,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	log.Printf("test server listening on %s (%d cores, latency=%v, error-rate=%.2f)",
		*addr, runtime.NumCPU(), *latency, *errorRate)
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
