package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"livebid/internal/biddingerrors"
	"livebid/utils"
)

// DefaultInterval is used when NewClosingScheduler gets a non-positive interval
const DefaultInterval = 10 * time.Second

// AuctionFinder lists auctions the scheduler has to act on
type AuctionFinder interface {
	// FindExpiredLive lists LIVE auctions whose end time has passed
	FindExpiredLive(ctx context.Context, now time.Time) ([]string, error)
	// FindStuckClosing lists auctions claimed for closing but never settled
	FindStuckClosing(ctx context.Context) ([]string, error)
}

// AuctionCloser runs the closing protocol for one auction
type AuctionCloser interface {
	CloseAuction(ctx context.Context, auctionID string) error
	ResumeClosing(ctx context.Context, auctionID string) error
}

// SweepResult summarises one sweep. Stuck counts CLOSING auctions found at
// the start of the sweep, Resumed those of them settled by it.
type SweepResult struct {
	Found   int
	Closed  int
	Failed  int
	Stuck   int
	Resumed int
}

// ClosingScheduler periodically closes auctions that are past their end
// time. It holds no locks of its own: CloseAuction is idempotent, so a
// sweep racing a manual close is harmless.
type ClosingScheduler struct {
	interval time.Duration
	finder   AuctionFinder
	closer   AuctionCloser
	now      func() time.Time

	mu      sync.Mutex
	corrupt map[string]bool // auctions whose settlement hit a data fault
}

// Option configures a ClosingScheduler
type Option func(*ClosingScheduler)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *ClosingScheduler) {
		s.now = now
	}
}

// NewClosingScheduler creates a scheduler sweeping every interval
func NewClosingScheduler(finder AuctionFinder, closer AuctionCloser, interval time.Duration, opts ...Option) *ClosingScheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &ClosingScheduler{
		interval: interval,
		finder:   finder,
		closer:   closer,
		now:      time.Now,
		corrupt:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the sweep period
func (s *ClosingScheduler) Interval() time.Duration {
	return s.interval
}

// Start sweeps on every tick until ctx is cancelled. It blocks.
func (s *ClosingScheduler) Start(ctx context.Context) error {
	utils.Info("closing scheduler started", map[string]any{"interval": s.interval.String()})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			utils.Info("closing scheduler stopped", nil)
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep first retries settlement of auctions left in CLOSING by an earlier
// failure, then closes every auction found expired at the current time. A
// failure or panic on one auction is logged and the sweep moves on.
func (s *ClosingScheduler) Sweep(ctx context.Context) SweepResult {
	var res SweepResult

	s.resumeStuck(ctx, &res)

	ids, err := s.finder.FindExpiredLive(ctx, s.now().UTC())
	if err != nil {
		utils.Error("closing scheduler: failed to find expired auctions", map[string]any{"error": err.Error()})
		return res
	}
	res.Found = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := s.guard(id, func() error { return s.closer.CloseAuction(ctx, id) }); err != nil {
			res.Failed++
			s.logFailure("close", id, err)
			continue
		}
		res.Closed++
	}

	if res.Found > 0 || res.Stuck > 0 {
		utils.Info("closing sweep finished", map[string]any{
			"found":   res.Found,
			"closed":  res.Closed,
			"failed":  res.Failed,
			"stuck":   res.Stuck,
			"resumed": res.Resumed,
		})
	}
	return res
}

// resumeStuck re-runs settlement for every CLOSING auction. Transient faults
// heal on a later sweep; data faults keep failing until repaired.
func (s *ClosingScheduler) resumeStuck(ctx context.Context, res *SweepResult) {
	ids, err := s.finder.FindStuckClosing(ctx)
	if err != nil {
		utils.Error("closing scheduler: failed to find closing auctions", map[string]any{"error": err.Error()})
		return
	}
	res.Stuck = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := s.guard(id, func() error { return s.closer.ResumeClosing(ctx, id) }); err != nil {
			res.Failed++
			s.logFailure("resume", id, err)
			continue
		}
		res.Resumed++
		s.mu.Lock()
		delete(s.corrupt, id)
		s.mu.Unlock()
	}
}

// logFailure reports a data fault at error level once per auction, later
// repeats at debug level.
func (s *ClosingScheduler) logFailure(step, auctionID string, err error) {
	fields := map[string]any{"auction_id": auctionID, "step": step, "error": err.Error()}
	if !biddingerrors.IsDataCorruption(err) {
		utils.Error("closing scheduler: failed to close auction", fields)
		return
	}

	s.mu.Lock()
	seen := s.corrupt[auctionID]
	s.corrupt[auctionID] = true
	s.mu.Unlock()

	if seen {
		utils.Debug("closing scheduler: auction still needs manual repair", fields)
		return
	}
	utils.Error("closing scheduler: data fault, auction left CLOSING for manual repair", fields)
}

func (s *ClosingScheduler) guard(auctionID string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: panic while closing auction %s: %v", auctionID, r)
		}
	}()
	return fn()
}
