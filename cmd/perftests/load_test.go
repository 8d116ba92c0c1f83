package perftests

import (
	"context"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// LoadScenario defines configurable benchmark parameters
type LoadScenario struct {
	Name        string
	NumUsers    int
	NumAuctions int
	ReadRatio   int  // out of 10
	Burst       bool // if true, no delay between ops
}

// OperationMetrics collects latencies from many goroutines
type OperationMetrics struct {
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(d time.Duration) {
	om.mu.Lock()
	om.latencies = append(om.latencies, d)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (min, max, avg, p95, p99 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()
	if len(om.latencies) == 0 {
		return
	}
	l := om.latencies
	sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })

	min = l[0]
	max = l[len(l)-1]

	var total time.Duration
	for _, d := range l {
		total += d
	}
	avg = total / time.Duration(len(l))
	p95 = l[int(0.95*float64(len(l)-1))]
	p99 = l[int(0.99*float64(len(l)-1))]
	return
}

// Benchmark_Load_BiddingSystem runs multiple scenarios
func Benchmark_Load_BiddingSystem(b *testing.B) {
	scenarios := []LoadScenario{
		{"Low-Contention-WriteHeavy", 200, 200, 0, false},
		{"High-Contention-WriteHeavy", 500, 10, 0, false},
		{"Mixed-Workload", 300, 50, 7, false},
		{"ReadHeavy", 200, 50, 9, false},
		{"Edge-Case-SingleAuction", 100, 1, 5, false},
		{"Peak-Burst", 500, 50, 0, true},
	}

	for _, s := range scenarios {
		b.Run(s.Name, func(b *testing.B) {
			runParallelScenario(b, s)
		})
	}
}

func runParallelScenario(b *testing.B, s LoadScenario) {
	f := newFixture(b, s.NumAuctions, s.NumUsers)
	ctx := context.Background()

	var totalOps, acceptedBids, rejectedBids, totalReads int64
	perAuction := make([]int64, s.NumAuctions)
	metrics := &OperationMetrics{}

	b.ReportAllocs()
	b.ResetTimer()
	start := time.Now()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

		for pb.Next() {
			idx := rnd.Intn(s.NumAuctions)
			auctionID := f.auctions[idx]

			opStart := time.Now()
			if rnd.Intn(10) < s.ReadRatio {
				if _, err := f.svc.GetAuction(ctx, auctionID); err != nil {
					b.Logf("ignored read error: %v", err)
				}
				atomic.AddInt64(&totalReads, 1)
			} else {
				bidder := f.users[rnd.Intn(len(f.users))]
				if err := f.nextBid(ctx, auctionID, bidder); err != nil {
					atomic.AddInt64(&rejectedBids, 1)
				} else {
					atomic.AddInt64(&acceptedBids, 1)
					atomic.AddInt64(&perAuction[idx], 1)
				}
			}

			metrics.Record(time.Since(opStart))
			atomic.AddInt64(&totalOps, 1)

			if !s.Burst {
				time.Sleep(time.Millisecond)
			}
		}
	})

	elapsed := time.Since(start)
	b.StopTimer()

	if got, want := f.totalFunds(b), benchBalance*int64(len(f.users)); got != want {
		b.Fatalf("%s: funds not conserved: got %d, want %d", s.Name, got, want)
	}

	throughput := float64(totalOps) / elapsed.Seconds()
	min, max, avg, p95, p99 := metrics.Stats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	b.Logf(
		"Scenario: %s | Auctions: %d | Total Ops: %d | Accepted Bids: %d | Rejected Bids: %d | Reads: %d | Elapsed: %s | Throughput: %.2f ops/sec | Latency(us) min: %.2f avg: %.2f max: %.2f p95: %.2f p99: %.2f | Memory Alloc: %.2f MB",
		s.Name, s.NumAuctions, totalOps, acceptedBids, rejectedBids, totalReads, elapsed,
		throughput,
		float64(min.Microseconds()), float64(avg.Microseconds()), float64(max.Microseconds()),
		float64(p95.Microseconds()), float64(p99.Microseconds()),
		float64(mem.Alloc)/1024/1024,
	)

	for i, v := range perAuction {
		if v > 0 {
			b.Logf("Auction %d accepted bids: %d", i, v)
		}
	}
}
