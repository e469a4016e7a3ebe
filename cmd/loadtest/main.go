package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/codewandler/clstr-dispatch/adapters/nats"
	"github.com/codewandler/clstr-dispatch/adapters/prometheus"
	"github.com/codewandler/clstr-dispatch/adapters/tcp"
	"github.com/codewandler/clstr-dispatch/core/app"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

// === Config ===

// NOTE: for TRANSPORT=nats run: docker run --net=host nats:latest

var (
	logLevel    = slog.LevelInfo
	N           = getEnvInt("N", 100_000)
	batchSize   = getEnvInt("B", 10_000)
	concurrency = getEnvInt("CONCURRENCY", runtime.NumCPU())
	numNodes    = getEnvInt("NODES", 3)
	ratePerSec  = getEnvInt("RATE", 0)
	configPath  = getEnv("CONFIG", "")
	transportID = getEnv("TRANSPORT", "")
	natsURL     = getEnv("NATS_URL", "")
	natsAck     = getEnvBool("NATS_ACK", false)
	metricsAddr = getEnv("METRICS_ADDR", "")
)

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if v == "1" || strings.ToLower(v) == "true" {
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

// === Domain ===

type OrderPlaced struct {
	OrderID string
	Amount  int
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := app.LoadConfig(configPath)
	checkErr(err)
	if transportID != "" {
		cfg.Transport = transportID
	}
	if len(cfg.Node.Nodes) == 0 {
		for i := 0; i < numNodes; i++ {
			cfg.Node.Nodes = append(cfg.Node.Nodes, fmt.Sprintf("node-%d", i))
		}
	}

	fmt.Printf("Transport: %s\n", cfg.Transport)
	fmt.Printf("  Routing: %s\n", cfg.Routing)
	fmt.Printf("    Nodes: %d\n", len(cfg.Node.Nodes))

	reg := promclient.NewRegistry()
	m := prometheus.NewMetrics(reg)
	if metricsAddr != "" {
		go serveMetrics(log, reg)
	}

	var received atomic.Int64
	count := func(context.Context, transport.Envelope) error {
		received.Add(1)
		return nil
	}

	// receivers that must exist before the App resolves node addresses
	var closers []func() error
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()
	opts := []app.Option{app.WithLogger(log), app.WithMetrics(m)}

	switch cfg.Transport {
	case tcp.TypeTCP:
		nodes := make([]string, 0, len(cfg.Node.Nodes))
		for range cfg.Node.Nodes {
			srv, err := tcp.Listen(ctx, tcp.ServerConfig{Addr: "127.0.0.1:0", Log: log}, count)
			checkErr(err)
			closers = append(closers, srv.Close)
			nodes = append(nodes, srv.Addr().HostPort)
		}
		cfg.Node.Nodes = nodes
		opts = append(opts, app.WithPlugins(tcp.Plugins(tcp.FactoryConfig{})))

	case nats.TypeNATS:
		connect := nats.ConnectDefault()
		if natsURL != "" {
			connect = nats.ConnectURL(natsURL)
		}
		connect = nats.ReuseConnection(connect)
		for _, id := range cfg.Node.Nodes {
			l, err := nats.Listen(ctx, nats.ListenConfig{Connect: connect, Log: log, Node: id}, count)
			checkErr(err)
			closers = append(closers, l.Close)
		}
		opts = append(opts, app.WithPlugins(nats.Plugins(nats.FactoryConfig{Connect: connect, Ack: natsAck})))
	}

	a, err := app.New(cfg, opts...)
	checkErr(err)
	defer func() { checkErr(a.Close()) }()

	switch a.Config().Transport {
	case transport.TypeQueue:
		for _, id := range cfg.Node.Nodes {
			inbox, _ := a.Inbox(id)
			go func() {
				for env := range inbox {
					_ = count(ctx, env)
				}
			}()
		}
	case transport.TypePassthrough:
		for _, id := range cfg.Node.Nodes {
			checkErr(a.Handle(id, count))
		}
	}

	// === START ===

	log.Info("==================================")
	log.Info("Starting ...")

	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	limiter := rate.NewLimiter(limit, max(1, concurrency))

	var (
		next     atomic.Int64
		sent     atomic.Int64
		failed   atomic.Int64
		startAt  = time.Now()
		lastTime atomic.Int64
	)
	lastTime.Store(startAt.UnixNano())

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			for {
				i := int(next.Add(1)) - 1
				if i >= N {
					return nil
				}
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				msg := OrderPlaced{OrderID: fmt.Sprintf("order-%d", i), Amount: i % 100}
				if err := a.Dispatch(gctx, msg.OrderID, msg); err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					failed.Add(1)
					continue
				}
				if n := sent.Add(1); n%int64(batchSize) == 0 {
					report(&lastTime)
				}
			}
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		checkErr(err)
	}

	// give asynchronous receivers a moment to drain
	deadline := time.Now().Add(5 * time.Second)
	for received.Load() < sent.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	// === stats ===
	println("")
	println("==========================================")

	took := time.Since(startAt)
	runtime.GC()

	fmt.Printf("  total runtime: %.3f seconds\n", took.Seconds())
	fmt.Printf("           sent: %d\n", sent.Load())
	fmt.Printf("         failed: %d\n", failed.Load())
	fmt.Printf("       received: %d\n", received.Load())
	fmt.Printf("avg. dispatch/s: %d\n", int(float64(sent.Load())/took.Seconds()))
}

func serveMetrics(log *slog.Logger, reg *promclient.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("serving metrics", slog.String("addr", metricsAddr))
	if err := http.ListenAndServe(metricsAddr, mux); err != nil {
		log.Error("metrics server stopped", slog.Any("error", err))
	}
}

// === stats helpers ===

type MemUsage struct {
	Alloc uint64 // bytes allocated and not yet freed (heap)
	Sys   uint64 // total bytes obtained from OS
	NumGC uint32 // gc cycles
}

func getMemUsage() MemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemUsage{
		Alloc: m.Alloc,
		Sys:   m.Sys,
		NumGC: m.NumGC,
	}
}

func report(last *atomic.Int64) {
	mu := getMemUsage()
	now := time.Now()
	took := now.Sub(time.Unix(0, last.Swap(now.UnixNano())))
	fmt.Printf(" | %6d msgs | %6d ms | %8d msgs/s | (%d / %d) MiB mem (sys) |\n",
		batchSize, took.Milliseconds(), int(float64(batchSize)/took.Seconds()), mu.Alloc/1024/1024, mu.Sys/1024/1024)
}

// === Helpers ===

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}
