package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/metrics/export/internaldefs"
	"github.com/MrEthical07/goGuard/storage/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		apps        = flag.Int("apps", 10000, "number of locked apps to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (decide + grant)")
		grace       = flag.Duration("grace", time.Minute, "grace period used by the decide phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gg-load", "key prefix")
	)
	flag.Parse()

	if *apps <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "apps, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	ctx := context.Background()
	store := redisstore.NewStore(client, *prefix)

	ids, err := seed(ctx, store, *apps)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	policy := goGuard.NewPolicy("", nil, *grace)
	var challenged atomic.Int64

	decide := runPhase(ids, *ops, *concurrency, func(app goGuard.AppID) error {
		locked, err := store.Contains(ctx, app)
		if err != nil || !locked {
			return err
		}
		grant, ok, err := store.Get(ctx, app)
		if err != nil {
			return err
		}
		if policy.Evaluate(app, true, grant, ok, time.Now()).Decision == goGuard.ChallengeRequired {
			challenged.Add(1)
		}
		return nil
	})
	grant := runPhase(ids, *ops, *concurrency, func(app goGuard.AppID) error {
		return store.Put(ctx, app, time.Now())
	})

	if err := store.Clear(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cleanup failed: %v\n", err)
	}

	fmt.Println("---- results ----")
	decide.print("decide")
	fmt.Printf("decide: challenged=%d\n", challenged.Load())
	grant.print("grant")
}

func connect(addr string) (redis.UniversalClient, func(), error) {
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

// seed locks n apps and grants every other one, so the decide phase sees both outcomes.
func seed(ctx context.Context, store *redisstore.Store, n int) ([]goGuard.AppID, error) {
	ids := make([]goGuard.AppID, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("com.example.app%d", i)
	}

	fmt.Printf("seeding %d locked apps...\n", n)
	start := time.Now()
	if err := store.Replace(ctx, ids); err != nil {
		return nil, fmt.Errorf("seed locked set: %w", err)
	}
	for i := 0; i < len(ids); i += 2 {
		if err := store.Put(ctx, ids[i], start); err != nil {
			return nil, fmt.Errorf("seed grant: %w", err)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return ids, nil
}

// runPhase calls op ops times from concurrency workers, each on a random app. Workers keep
// their own samples; they are merged once the phase ends.
func runPhase(ids []goGuard.AppID, ops, concurrency int, op func(goGuard.AppID) error) *phaseResult {
	var (
		wg      sync.WaitGroup
		next    atomic.Int64
		failed  atomic.Int64
		samples = make([][]time.Duration, concurrency)
	)

	start := time.Now()
	for w := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(start.UnixNano() + int64(w)))
			own := make([]time.Duration, 0, ops/concurrency+1)
			for next.Add(1) <= int64(ops) {
				t0 := time.Now()
				if err := op(ids[r.Intn(len(ids))]); err != nil {
					failed.Add(1)
				}
				own = append(own, time.Since(t0))
			}
			samples[w] = own
		}()
	}
	wg.Wait()

	return newPhaseResult(time.Since(start), slices.Concat(samples...), failed.Load())
}

// phaseResult summarizes one phase as percentiles plus a histogram over the same
// buckets the engine exports for tick latency.
type phaseResult struct {
	elapsed  time.Duration
	sorted   []time.Duration
	failures int64
	buckets  []uint64
}

func newPhaseResult(elapsed time.Duration, samples []time.Duration, failures int64) *phaseResult {
	slices.Sort(samples)
	res := &phaseResult{
		elapsed:  elapsed,
		sorted:   samples,
		failures: failures,
		buckets:  make([]uint64, len(internaldefs.HistogramBoundSuffix)),
	}
	for _, d := range samples {
		i, _ := slices.BinarySearch(internaldefs.HistogramUpperBounds, d.Seconds())
		res.buckets[i]++
	}
	return res
}

// quantile returns the sample below which a fraction q of samples fall.
func (r *phaseResult) quantile(q float64) time.Duration {
	if len(r.sorted) == 0 {
		return 0
	}
	i := int(q * float64(len(r.sorted)-1))
	return r.sorted[min(max(i, 0), len(r.sorted)-1)]
}

func (r *phaseResult) print(name string) {
	rate := 0.0
	if r.elapsed > 0 {
		rate = float64(len(r.sorted)) / r.elapsed.Seconds()
	}
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, len(r.sorted), r.failures, r.elapsed.Round(time.Millisecond), rate,
		r.quantile(0.50).Round(time.Microsecond),
		r.quantile(0.95).Round(time.Microsecond),
		r.quantile(0.99).Round(time.Microsecond),
	)

	var b strings.Builder
	for i, n := range r.buckets {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "le_%s=%d", internaldefs.HistogramBoundSuffix[i], n)
	}
	fmt.Printf("%s: %s\n", name, b.String())
}
