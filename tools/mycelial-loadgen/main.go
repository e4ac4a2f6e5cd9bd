// mycelial-loadgen is a tiny, dependency-free HTTP load generator for
// soak-testing a running cmd/mycelial-run instance, adapted from
// tools/http-loadgen: connection-reusing concurrent workers POSTing to a
// fruiting body's /inject/{name} route instead of GETting a rate-limiter
// /check endpoint.
//
// Usage example:
//
//	mycelial-loadgen -base=http://127.0.0.1:8080 -site=fruit_in -n=20000 -c=16 -payload_size=8
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	var (
		base        = flag.String("base", "http://127.0.0.1:8080", "base URL of a running mycelial-run instance")
		site        = flag.String("site", "", "fruiting body name to inject into (required)")
		n           = flag.Int("n", 5000, "total injections to send")
		conc        = flag.Int("c", 8, "number of concurrent workers")
		payloadSize = flag.Int("payload_size", 8, "bytes of filler payload per injection")
		timeout     = flag.Duration("timeout", 20*time.Second, "overall timeout for the run")
		connIdle    = flag.Duration("idle_timeout", 30*time.Second, "HTTP idle connection timeout")
		maxIdle     = flag.Int("max_idle", 256, "max idle connections total")
		maxIdlePer  = flag.Int("max_idle_per_host", 256, "max idle connections per host")
	)
	flag.Parse()

	if *site == "" {
		fmt.Fprintln(os.Stderr, "-site is required")
		os.Exit(2)
	}
	if *n <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}

	url := strings.TrimRight(*base, "/") + "/inject/" + *site
	payload := make([]byte, *payloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        *maxIdle,
		MaxIdleConnsPerHost: *maxIdlePer,
		IdleConnTimeout:     *connIdle,
	}
	client := &http.Client{Transport: tr, Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var sent, failed int64

	worker := func(count int) {
		for i := 0; i < count; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				atomic.AddInt64(&failed, 1)
				continue
			}
			resp, err := client.Do(req)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				time.Sleep(200 * time.Microsecond)
				continue
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusAccepted {
				atomic.AddInt64(&failed, 1)
			} else {
				atomic.AddInt64(&sent, 1)
			}
		}
	}

	per := *n / *conc
	rem := *n - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(n int) {
			defer wg.Done()
			worker(n)
		}(count)
	}
	wg.Wait()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(*n) / elapsed.Seconds()
	fmt.Printf("LoadGen: site=%s n=%d c=%d go=%d sent=%d failed=%d duration=%s throughput=%.0f req/s\n",
		*site, *n, *conc, runtime.GOMAXPROCS(0), sent, failed, elapsed.Truncate(time.Millisecond), ops)
}
