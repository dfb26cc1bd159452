package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/deltacache/deltasync"
	"github.com/IvanBrykalov/deltacache/internal/logging"
	"github.com/IvanBrykalov/deltacache/listcache"
	pmet "github.com/IvanBrykalov/deltacache/metrics/prom"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run simulated pollers against the cache and report delta savings",
	Long: `Simulates many clients polling upstream lists through the delta cache.
Each credential owns one list per resource type; every upstream fetch changes,
adds and removes a share of items. At the end the command prints how many
items were sent compared with always sending full lists.

Example:
  deltacache bench --credentials 500 --items 300 --duration 20s --http :8080`,
	RunE: runBench,
}

func init() {
	f := benchCmd.Flags()
	f.Int("credentials", 200, "number of simulated credentials")
	f.Int("items", 250, "initial items per list")
	f.Int("change", 3, "percent of items changed per fetch")
	f.Int("add", 20, "percent chance a fetch adds one item")
	f.Int("remove", 1, "percent of items removed per fetch")
	f.Int("workers", 2*runtime.GOMAXPROCS(0), "number of polling goroutines")
	f.Duration("duration", 10*time.Second, "benchmark duration")
	f.Int64("seed", time.Now().UnixNano(), "random seed")
	f.String("http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
	f.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	f := cmd.Flags()
	credentials, _ := f.GetInt("credentials")
	items, _ := f.GetInt("items")
	changePct, _ := f.GetInt("change")
	addPct, _ := f.GetInt("add")
	removePct, _ := f.GetInt("remove")
	workers, _ := f.GetInt("workers")
	duration, _ := f.GetDuration("duration")
	seed, _ := f.GetInt64("seed")
	metricsAddr, _ := f.GetString("http")
	pprofAddr, _ := f.GetString("pprof")
	if credentials <= 0 || workers <= 0 {
		return errors.New("--credentials and --workers must be positive")
	}

	// ---- pprof and Prometheus (on DefaultServeMux) ----
	metrics := pmet.New(nil, "deltacache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	for _, addr := range []string{pprofAddr, metricsAddr} {
		if addr == "" {
			continue
		}
		go func(addr string) {
			logger.Info("http: serving", "addr", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.Error("http: stopped", "addr", addr, "err", err)
			}
		}(addr)
	}

	// ---- Build cache and syncer ----
	opt := cfg.CacheOptions()
	opt.Metrics = metrics
	opt.Logger = logger
	cache, err := listcache.New(opt)
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	syncer := deltasync.New(cache, deltasync.Options{
		StrictCursor: cfg.Cache.StrictCursor,
		FetchTimeout: cfg.Cache.FetchTimeout,
		Observer:     metrics,
		Logger:       logger,
	})
	up := newUpstream(seed, items, changePct, addPct, removePct)
	types := []listcache.ResourceType{listcache.Torrents, listcache.Usenet, listcache.WebDownloads}

	// ---- Load generation ----
	var polls, fulls, sent, fullSize atomic.Int64
	ctx, cancel := context.WithTimeout(cmd.Context(), duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		id := w
		g.Go(func() error {
			// rand.Rand is NOT goroutine-safe: one per worker.
			r := rand.New(rand.NewSource(seed + int64(id)*9973))
			cursors := make(map[listcache.Key]string) // this worker's clients
			for gctx.Err() == nil {
				k := listcache.Key{
					Credential:   "cred-" + strconv.Itoa(r.Intn(credentials)),
					ResourceType: types[r.Intn(len(types))],
				}
				res, err := syncer.Sync(gctx, deltasync.Request{Key: k, Cursor: cursors[k]}, up.fetcher(k))
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return err
				}
				cursors[k] = res.Cursor

				polls.Add(1)
				if res.Full {
					fulls.Add(1)
				}
				sent.Add(int64(len(res.Data) + len(res.Removed)))
				fullSize.Add(int64(items))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	// ---- Report ----
	st := cache.Stats()
	hitRate := 0.0
	if lookups := st.Hits + st.Misses; lookups > 0 {
		hitRate = float64(st.Hits) / float64(lookups) * 100
	}
	ratio := 0.0
	if fs := fullSize.Load(); fs > 0 {
		ratio = float64(sent.Load()) / float64(fs) * 100
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "credentials=%d items=%d workers=%d dur=%v seed=%d\n",
		credentials, items, workers, elapsed, seed)
	fmt.Fprintf(out, "polls=%d (%.0f polls/s)  full=%d  items sent=%d (%.2f%% of full lists)\n",
		polls.Load(), float64(polls.Load())/elapsed.Seconds(), fulls.Load(), sent.Load(), ratio)
	fmt.Fprintf(out, "hits=%d  misses=%d  hit-rate=%.2f%%  evictions=%d\n",
		st.Hits, st.Misses, hitRate, st.Evictions)
	fmt.Fprintf(out, "entries=%d  compressed=%d bytes\n", st.Entries, st.Bytes)
	return nil
}
