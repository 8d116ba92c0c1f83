package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"livebid/internal/biddingerrors"
	model "livebid/internal/models"

	"github.com/google/btree"
)

const expiryIndexDegree = 16

// expiryEntry orders LIVE auctions by end time, then id
type expiryEntry struct {
	EndTime   time.Time
	AuctionID string
}

func expiryLess(a, b expiryEntry) bool {
	if !a.EndTime.Equal(b.EndTime) {
		return a.EndTime.Before(b.EndTime)
	}
	return a.AuctionID < b.AuctionID
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB and
// NotificationStore. Row locks serialise the bidding and closing protocols;
// mu only guards the maps for the short time a read or commit touches them.
type MemoryRepo struct {
	mu           sync.RWMutex
	users        map[string]model.User
	emails       map[string]string // key: lower-cased email -> value: userID
	auctions     map[string]model.Auction
	auctionOrder []string
	bids         map[string][]model.Bid // key: auctionID -> value: bids in acceptance order
	userAuctions map[string][]string    // key: userID -> value: auctionIDs the user has bid on
	settlements  map[string]model.Settlement
	settleOrder  []string
	notes        map[string][]*model.Notification // key: userID
	noteIndex    map[string]*model.Notification   // key: notificationID

	live      *btree.BTreeG[expiryEntry]
	liveEntry map[string]expiryEntry

	locks *RowLocks
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:        make(map[string]model.User),
		emails:       make(map[string]string),
		auctions:     make(map[string]model.Auction),
		bids:         make(map[string][]model.Bid),
		userAuctions: make(map[string][]string),
		settlements:  make(map[string]model.Settlement),
		notes:        make(map[string][]*model.Notification),
		noteIndex:    make(map[string]*model.Notification),
		live:         btree.NewG[expiryEntry](expiryIndexDegree, expiryLess),
		liveEntry:    make(map[string]expiryEntry),
		locks:        NewRowLocks(),
	}
}

// RunInTx runs fn with a fresh transaction and applies its staged writes only
// if fn succeeds.
func (r *MemoryRepo) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := newMemTx(r)
	defer tx.finish()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.commit(); err != nil {
		return err
	}
	// hooks run before finish releases the row locks
	tx.runHooks()
	return nil
}

// CreateUser stores a new user. Emails are unique, case-insensitively.
func (r *MemoryRepo) CreateUser(_ context.Context, user model.User) error {
	if user.UserID == "" {
		return fmt.Errorf("repository: create user: %w", biddingerrors.ErrInvalidUser)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.UserID]; ok {
		return fmt.Errorf("repository: create user %s: %w", user.UserID, biddingerrors.ErrAlreadyExists)
	}
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email != "" {
		if _, ok := r.emails[email]; ok {
			return fmt.Errorf("repository: create user %s: %w", user.UserID, biddingerrors.ErrEmailTaken)
		}
		r.emails[email] = user.UserID
	}
	r.users[user.UserID] = user
	return nil
}

// GetUser returns a user without locking its row
func (r *MemoryRepo) GetUser(_ context.Context, userID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("repository: get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return u, nil
}

// CreateAuction stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction model.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("repository: create auction: %w", biddingerrors.ErrInvalidAuction)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("repository: create auction %s: %w", auction.AuctionID, biddingerrors.ErrAlreadyExists)
	}
	r.auctions[auction.AuctionID] = auction
	r.auctionOrder = append(r.auctionOrder, auction.AuctionID)
	r.reindex(auction)
	return nil
}

// GetAuction returns an auction without locking its row
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("repository: get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return a, nil
}

// UpdateAuction compares auction.Version with the stored version, writes the
// auction and returns it with the bumped version.
func (r *MemoryRepo) UpdateAuction(_ context.Context, auction model.Auction) (model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.auctions[auction.AuctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("repository: update auction %s: %w", auction.AuctionID, biddingerrors.ErrAuctionNotFound)
	}
	if stored.Version != auction.Version {
		return model.Auction{}, fmt.Errorf("repository: update auction %s at version %d, stored %d: %w",
			auction.AuctionID, auction.Version, stored.Version, biddingerrors.ErrVersionConflict)
	}
	auction.Version++
	r.auctions[auction.AuctionID] = auction
	r.reindex(auction)
	return auction, nil
}

// ListAuctions returns auctions matching filter in creation order
func (r *MemoryRepo) ListAuctions(_ context.Context, filter AuctionFilter) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]model.Auction, 0)
	for _, id := range r.auctionOrder {
		a := r.auctions[id]
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.SellerID != "" && a.SellerID != filter.SellerID {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(a.Title), query) &&
			!strings.Contains(strings.ToLower(a.Description), query) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// ClaimForClosing takes the auction row lock, so a bid holding the row is
// either committed before the claim looks at the status or sees CLOSING.
func (r *MemoryRepo) ClaimForClosing(ctx context.Context, auctionID string, now time.Time) (bool, error) {
	key := AuctionKey(auctionID)
	if err := r.locks.Acquire(ctx, key); err != nil {
		return false, fmt.Errorf("repository: claim auction %s: %w", auctionID, err)
	}
	defer r.locks.Release(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[auctionID]
	if !ok || a.Status != model.AuctionStatusLive || !a.EndTime.Before(now) {
		return false, nil
	}
	a.Status = model.AuctionStatusClosing
	a.Version++
	r.auctions[auctionID] = a
	r.reindex(a)
	return true, nil
}

// FindExpiredLive walks the end-time index up to now
func (r *MemoryRepo) FindExpiredLive(_ context.Context, now time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	r.live.Ascend(func(e expiryEntry) bool {
		if !e.EndTime.Before(now) {
			return false
		}
		ids = append(ids, e.AuctionID)
		return true
	})
	return ids, nil
}

// FindStuckClosing returns CLOSING auctions in creation order
func (r *MemoryRepo) FindStuckClosing(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, id := range r.auctionOrder {
		if r.auctions[id].Status == model.AuctionStatusClosing {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GetBidsByAuction returns the bid history of an auction, oldest first
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("repository: get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return append([]model.Bid{}, r.bids[auctionID]...), nil
}

// GetAuctionsByBidder returns every auction the user has bid on
func (r *MemoryRepo) GetAuctionsByBidder(_ context.Context, bidderID string) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.userAuctions[bidderID]
	auctions := make([]model.Auction, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.auctions[id]; ok {
			auctions = append(auctions, a)
		}
	}
	return auctions, nil
}

// GetSettlementByAuction returns the settlement of a closed auction
func (r *MemoryRepo) GetSettlementByAuction(_ context.Context, auctionID string) (model.Settlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.settlements[auctionID]
	if !ok {
		return model.Settlement{}, fmt.Errorf("repository: get settlement for auction %s: %w", auctionID, biddingerrors.ErrSettlementNotFound)
	}
	return s, nil
}

// ListSettlementsBySeller returns the sales of a user
func (r *MemoryRepo) ListSettlementsBySeller(_ context.Context, sellerID string) ([]model.Settlement, error) {
	return r.listSettlements(func(s model.Settlement) bool { return s.SellerID == sellerID }), nil
}

// ListSettlementsByWinner returns the purchases of a user
func (r *MemoryRepo) ListSettlementsByWinner(_ context.Context, winnerID string) ([]model.Settlement, error) {
	return r.listSettlements(func(s model.Settlement) bool { return s.WinnerID == winnerID }), nil
}

func (r *MemoryRepo) listSettlements(match func(model.Settlement) bool) []model.Settlement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Settlement, 0)
	for _, id := range r.settleOrder {
		if s := r.settlements[id]; match(s) {
			out = append(out, s)
		}
	}
	return out
}

// CreateNotification stores a notification for its user
func (r *MemoryRepo) CreateNotification(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.noteIndex[n.NotificationID]; ok {
		return fmt.Errorf("repository: create notification %s: %w", n.NotificationID, biddingerrors.ErrAlreadyExists)
	}
	stored := n
	r.notes[n.UserID] = append(r.notes[n.UserID], &stored)
	r.noteIndex[n.NotificationID] = &stored
	return nil
}

// ListNotifications returns a user's notifications, newest first
func (r *MemoryRepo) ListNotifications(_ context.Context, userID string) ([]model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := r.notes[userID]
	out := make([]model.Notification, 0, len(notes))
	for _, n := range notes {
		out = append(out, *n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CountUnread returns how many of a user's notifications are unread
func (r *MemoryRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, note := range r.notes[userID] {
		if !note.Read {
			n++
		}
	}
	return n, nil
}

// MarkRead marks one notification owned by userID as read
func (r *MemoryRepo) MarkRead(_ context.Context, userID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.noteIndex[notificationID]
	if !ok || n.UserID != userID {
		return fmt.Errorf("repository: mark notification %s read: %w", notificationID, biddingerrors.ErrNotificationNotFound)
	}
	n.Read = true
	return nil
}

// MarkAllRead marks every notification of userID as read
func (r *MemoryRepo) MarkAllRead(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range r.notes[userID] {
		n.Read = true
	}
	return nil
}

// reindex keeps the end-time index in step with an auction's status. Callers
// hold r.mu.
func (r *MemoryRepo) reindex(a model.Auction) {
	if old, ok := r.liveEntry[a.AuctionID]; ok {
		r.live.Delete(old)
		delete(r.liveEntry, a.AuctionID)
	}
	if a.Status == model.AuctionStatusLive {
		e := expiryEntry{EndTime: a.EndTime, AuctionID: a.AuctionID}
		r.live.ReplaceOrInsert(e)
		r.liveEntry[a.AuctionID] = e
	}
}

// memTx stages writes in private maps until commit
type memTx struct {
	repo        *MemoryRepo
	held        map[string]bool
	heldOrder   []string
	auctions    map[string]model.Auction
	users       map[string]model.User
	bids        []model.Bid
	settlements []model.Settlement
	hooks       []func()
	done        bool
}

func newMemTx(r *MemoryRepo) *memTx {
	return &memTx{
		repo:     r,
		held:     make(map[string]bool),
		auctions: make(map[string]model.Auction),
		users:    make(map[string]model.User),
	}
}

func (t *memTx) lock(ctx context.Context, key string) error {
	if t.done {
		return biddingerrors.ErrTxDone
	}
	if t.held[key] {
		return nil
	}
	if err := t.repo.locks.Acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = true
	t.heldOrder = append(t.heldOrder, key)
	return nil
}

// LockAuction locks and loads an auction row
func (t *memTx) LockAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	if err := t.lock(ctx, AuctionKey(auctionID)); err != nil {
		return model.Auction{}, fmt.Errorf("repository: lock auction %s: %w", auctionID, err)
	}
	if a, ok := t.auctions[auctionID]; ok {
		return a, nil
	}
	return t.repo.GetAuction(ctx, auctionID)
}

// LockUser locks and loads a user row
func (t *memTx) LockUser(ctx context.Context, userID string) (model.User, error) {
	if err := t.lock(ctx, UserKey(userID)); err != nil {
		return model.User{}, fmt.Errorf("repository: lock user %s: %w", userID, err)
	}
	if u, ok := t.users[userID]; ok {
		return u, nil
	}
	return t.repo.GetUser(ctx, userID)
}

// SaveAuction stages an auction write
func (t *memTx) SaveAuction(_ context.Context, auction model.Auction) error {
	if err := t.requireLock(AuctionKey(auction.AuctionID)); err != nil {
		return fmt.Errorf("repository: save auction %s: %w", auction.AuctionID, err)
	}
	t.auctions[auction.AuctionID] = auction
	return nil
}

// SaveUser stages a ledger write
func (t *memTx) SaveUser(_ context.Context, user model.User) error {
	if err := t.requireLock(UserKey(user.UserID)); err != nil {
		return fmt.Errorf("repository: save user %s: %w", user.UserID, err)
	}
	t.users[user.UserID] = user
	return nil
}

// InsertBid stages a bid. The auction row must be locked.
func (t *memTx) InsertBid(_ context.Context, bid model.Bid) error {
	if err := t.requireLock(AuctionKey(bid.AuctionID)); err != nil {
		return fmt.Errorf("repository: insert bid for auction %s: %w", bid.AuctionID, err)
	}
	t.bids = append(t.bids, bid)
	return nil
}

// InsertSettlement stages a settlement. The auction row must be locked.
func (t *memTx) InsertSettlement(_ context.Context, s model.Settlement) error {
	if err := t.requireLock(AuctionKey(s.AuctionID)); err != nil {
		return fmt.Errorf("repository: insert settlement for auction %s: %w", s.AuctionID, err)
	}
	t.settlements = append(t.settlements, s)
	return nil
}

// AfterCommit registers fn to run once the writes are visible, while the
// row locks are still held
func (t *memTx) AfterCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

func (t *memTx) runHooks() {
	for _, fn := range t.hooks {
		fn()
	}
	t.hooks = nil
}

func (t *memTx) requireLock(key string) error {
	if t.done {
		return biddingerrors.ErrTxDone
	}
	if !t.held[key] {
		return biddingerrors.ErrLockNotHeld
	}
	return nil
}

// commit validates every staged write before applying any of them
func (t *memTx) commit() error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, a := range t.auctions {
		stored, ok := r.auctions[id]
		if !ok {
			return fmt.Errorf("repository: commit auction %s: %w", id, biddingerrors.ErrAuctionNotFound)
		}
		if stored.Version != a.Version {
			return fmt.Errorf("repository: commit auction %s at version %d, stored %d: %w",
				id, a.Version, stored.Version, biddingerrors.ErrVersionConflict)
		}
	}
	for id := range t.users {
		if _, ok := r.users[id]; !ok {
			return fmt.Errorf("repository: commit user %s: %w", id, biddingerrors.ErrUserNotFound)
		}
	}
	seen := make(map[string]bool, len(t.settlements))
	for _, s := range t.settlements {
		if _, ok := r.settlements[s.AuctionID]; ok || seen[s.AuctionID] {
			return fmt.Errorf("repository: commit settlement for auction %s: %w", s.AuctionID, biddingerrors.ErrAlreadyExists)
		}
		seen[s.AuctionID] = true
	}

	for id, a := range t.auctions {
		a.Version++
		r.auctions[id] = a
		r.reindex(a)
	}
	for id, u := range t.users {
		r.users[id] = u
	}
	for _, b := range t.bids {
		r.bids[b.AuctionID] = append(r.bids[b.AuctionID], b)
		r.trackBidder(b.BidderID, b.AuctionID)
	}
	for _, s := range t.settlements {
		r.settlements[s.AuctionID] = s
		r.settleOrder = append(r.settleOrder, s.AuctionID)
	}
	return nil
}

func (r *MemoryRepo) trackBidder(userID, auctionID string) {
	for _, id := range r.userAuctions[userID] {
		if id == auctionID {
			return
		}
	}
	r.userAuctions[userID] = append(r.userAuctions[userID], auctionID)
}

// finish releases every held lock in reverse acquisition order
func (t *memTx) finish() {
	t.done = true
	for i := len(t.heldOrder) - 1; i >= 0; i-- {
		t.repo.locks.Release(t.heldOrder[i])
	}
	t.heldOrder = nil
}

var (
	_ AuctionDB         = (*MemoryRepo)(nil)
	_ NotificationStore = (*MemoryRepo)(nil)
)
