// Command secretroom-loadtest seeds a set of unlimited rooms and hammers the
// meta and solve paths, reporting throughput and latency percentiles.
//
// It is self-contained: rooms live in a throwaway SQLite file and nonces in an
// embedded miniredis unless a real Redis address is supplied.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	secretroom "github.com/internos-labs/secretroom"
	"github.com/internos-labs/secretroom/sqlitestore"
)

const answerText = "loadtest-answer"

func main() {
	var (
		rooms       = flag.Int("rooms", 200, "number of rooms to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 5000, "operations per phase (meta + solve)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		dbPath      = flag.String("db", "", "sqlite path; if empty, a temp file is used")
	)
	flag.Parse()

	if *rooms <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "rooms, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	var client *redis.Client
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	path := *dbPath
	if path == "" {
		dir, err := os.MkdirTemp("", "secretroom-loadtest")
		if err != nil {
			fmt.Fprintf(os.Stderr, "temp dir: %v\n", err)
			os.Exit(1)
		}
		defer os.RemoveAll(dir)
		path = filepath.Join(dir, "loadtest.db")
	}

	store, err := sqlitestore.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	cfg := secretroom.DefaultConfig()
	cfg.Origin.Pepper = "loadtest-pepper"
	// Floor-level argon2id parameters keep the run CPU-bound on the engine
	// path rather than on deliberately slow production hashing.
	cfg.Answer.Memory = 8 * 1024
	cfg.Answer.Time = 1
	cfg.Answer.Parallelism = 1
	cfg.Answer.KeyLength = 16

	engine, err := secretroom.New().
		WithConfig(cfg).
		WithRedis(client).
		WithRooms(store).
		WithLedger(store).
		WithLockouts(store).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	owner := secretroom.CallerIdentity{UserID: "loadtest", Name: "loadtest"}
	ids := make([]int64, *rooms)
	fmt.Printf("seeding %d rooms...\n", *rooms)
	startSeed := time.Now()
	for i := 0; i < *rooms; i++ {
		res, err := engine.CreateRoom(ctx, owner, secretroom.CreateRoomInput{
			Title:      fmt.Sprintf("load room %d", i),
			Answer:     answerText,
			Policy:     secretroom.PolicyUnlimited,
			Visibility: secretroom.VisibilityPublic,
			Content:    secretroom.ContentSpec{Kind: secretroom.ContentText, Text: "payload"},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		ids[i] = res.ID
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	metaStats := runMetaPhase(ctx, engine, ids, *ops, *concurrency)
	solveStats := runSolvePhase(ctx, engine, ids, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("meta", metaStats)
	printStats("solve", solveStats)
}

func runMetaPhase(ctx context.Context, engine *secretroom.Engine, ids []int64, ops, concurrency int) phaseStats {
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
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			wctx := secretroom.WithClientIP(ctx, fmt.Sprintf("10.0.%d.%d", worker/250, worker%250))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				id := ids[r.Intn(len(ids))]
				t0 := time.Now()
				_, err := engine.RoomSolveMeta(wctx, id)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runSolvePhase(ctx context.Context, engine *secretroom.Engine, ids []int64, ops, concurrency int) phaseStats {
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
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			wctx := secretroom.WithClientIP(ctx, fmt.Sprintf("10.1.%d.%d", worker/250, worker%250))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				id := ids[r.Intn(len(ids))]
				t0 := time.Now()
				grant, err := engine.NonceForRoom(wctx, id)
				if err == nil {
					_, err = engine.Solve(wctx, id, grant.Nonce, answerText)
				}
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
