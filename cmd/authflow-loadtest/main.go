package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kurabu/authflow"
	otelexport "github.com/kurabu/authflow/metrics/export/otel"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const loadPassword = "Aa1!aaaa"

func main() {
	var (
		flows        = flag.Int("flows", 2000, "registrations to drive through register, verify and complete")
		concurrency  = flag.Int("concurrency", 64, "number of concurrent workers")
		exchangeWait = flag.Duration("exchange-latency", 20*time.Millisecond, "simulated upstream token exchange latency")
		throttle     = flag.Bool("throttle", false, "enable the Redis-backed register throttle")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *flows <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "flows and concurrency must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	cfg := authflow.DefaultConfig()
	cfg.Upstream.ClientID = "loadtest"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.EnableLatencyHistograms = true
	if *throttle {
		cfg.Register.EnableEmailThrottle = true
		cfg.Register.MaxAttempts = 1_000_000
	}

	mailer := &codeMailer{}
	builder := authflow.New().
		WithConfig(cfg).
		WithRepository(newMemRepository()).
		WithMailer(mailer).
		WithExchanger(&slowExchanger{delay: *exchangeWait}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	if *throttle {
		client, cleanup, err := redisClient(*redisAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		builder.WithRedis(client)
	}

	engine, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	keys := make([]string, *flows)
	emails := make([]string, *flows)
	for i := range emails {
		emails[i] = fmt.Sprintf("user-%d@load.test", i)
	}

	registerStats := runPhase(*flows, *concurrency, func(i int) error {
		key, err := engine.StartRegister(ctx, emails[i], loadPassword)
		keys[i] = key
		return err
	})
	verifyStats := runPhase(*flows, *concurrency, func(i int) error {
		if keys[i] == "" {
			return errors.New("no session")
		}
		_, err := engine.VerifyCode(ctx, keys[i], mailer.code(emails[i]), "https://load.test", "")
		return err
	})
	completeStats := runPhase(*flows, *concurrency, func(i int) error {
		if keys[i] == "" {
			return errors.New("no session")
		}
		_, err := engine.CompleteRegistration(ctx, keys[i], fmt.Sprintf("authcode-%d", i), "https://load.test")
		return err
	})

	fmt.Println("---- results ----")
	printStats("register", registerStats)
	printStats("verify", verifyStats)
	printStats("complete", completeStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("sessions=%d completed=%d mail_failures=%d\n",
		engine.SessionCount(),
		snap.Counters[authflow.MetricRegistrationCompleted],
		snap.Counters[authflow.MetricMailFailure],
	)

	if err := printLatency(ctx, engine); err != nil {
		fmt.Fprintf(os.Stderr, "latency report: %v\n", err)
	}
}

// printLatency reads the exchange latency histogram through the OTel
// exporter, the same path a deployed service would scrape.
func printLatency(ctx context.Context, engine *authflow.Engine) error {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	exp, err := otelexport.NewOTelExporter(provider.Meter("authflow-loadtest"), engine)
	if err != nil {
		return err
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return err
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "authflow_exchange_latency_seconds_bucket" {
				continue
			}
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			if !ok {
				continue
			}
			points := gauge.DataPoints
			sort.Slice(points, func(i, j int) bool { return points[i].Value < points[j].Value })
			fmt.Print("exchange latency:")
			for _, dp := range points {
				le, _ := dp.Attributes.Value("le")
				fmt.Printf(" le=%s:%d", le.AsString(), dp.Value)
			}
			fmt.Println()
		}
	}
	return nil
}

func redisClient(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func runPhase(ops, concurrency int, op func(i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// codeMailer keeps the last verification code sent to each address.
type codeMailer struct {
	codes sync.Map
}

func (m *codeMailer) SendHTML(_ context.Context, to, _, body, _ string) error {
	const marker = "code is "
	i := strings.Index(body, marker)
	if i < 0 {
		return errors.New("no code in body")
	}
	code := strings.TrimSuffix(body[i+len(marker):], "</b>")
	m.codes.Store(to, code)
	return nil
}

func (m *codeMailer) code(email string) string {
	v, _ := m.codes.Load(email)
	code, _ := v.(string)
	return code
}

type slowExchanger struct {
	delay time.Duration
	n     atomic.Int64
}

func (x *slowExchanger) ExchangeCode(ctx context.Context, code, _, _ string) (authflow.TokenPair, error) {
	select {
	case <-time.After(x.delay):
	case <-ctx.Done():
		return authflow.TokenPair{}, ctx.Err()
	}
	n := x.n.Add(1)
	return authflow.TokenPair{
		AccessToken:  fmt.Sprintf("access-%s-%d", code, n),
		RefreshToken: fmt.Sprintf("refresh-%s-%d", code, n),
	}, nil
}
