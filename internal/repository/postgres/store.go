package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"livebid/internal/biddingerrors"
	model "livebid/internal/models"
	"livebid/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Store implements repository.AuctionDB and repository.NotificationStore
// using PostgreSQL. Row locks are SELECT ... FOR UPDATE inside one pgx
// transaction.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type scanner interface {
	Scan(dest ...any) error
}

const userSelectCols = `user_id, email, name, available_balance, reserved_balance, created_at`

func scanUser(row scanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.UserID, &u.Email, &u.Name, &u.AvailableBalance, &u.ReservedBalance, &u.CreatedAt)
	return u, err
}

const auctionSelectCols = `auction_id, seller_id, title, description, image_key,
	start_price, current_price, current_leader_id, current_leader_bid_id,
	start_time, end_time, status, version`

func scanAuction(row scanner) (model.Auction, error) {
	var a model.Auction
	var status string
	err := row.Scan(
		&a.AuctionID, &a.SellerID, &a.Title, &a.Description, &a.ImageKey,
		&a.StartPrice, &a.CurrentPrice, &a.CurrentLeaderID, &a.CurrentLeaderBidID,
		&a.StartTime, &a.EndTime, &status, &a.Version,
	)
	a.Status = model.AuctionStatus(status)
	return a, err
}

func scanAuctions(rows pgx.Rows) ([]model.Auction, error) {
	auctions := make([]model.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}

const settlementSelectCols = `settlement_id, auction_id, winner_id, seller_id, amount, created_at`

func scanSettlement(row scanner) (model.Settlement, error) {
	var s model.Settlement
	err := row.Scan(&s.SettlementID, &s.AuctionID, &s.WinnerID, &s.SellerID, &s.Amount, &s.CreatedAt)
	return s, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// RunInTx begins a transaction, runs fn and commits when fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	tx := &storeTx{tx: pgTx, local: s.local, held: make(map[string]bool)}
	defer func() {
		tx.done = true
		_ = pgTx.Rollback(ctx)
		tx.releaseLocal()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userSelectCols+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.UserID, u.Email, u.Name, u.AvailableBalance, u.ReservedBalance, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			var pgErr *pgconn.PgError
			errors.As(err, &pgErr)
			if pgErr.ConstraintName == "users_email_lower_idx" {
				return fmt.Errorf("postgres: create user %s: %w", u.UserID, biddingerrors.ErrEmailTaken)
			}
			return fmt.Errorf("postgres: create user %s: %w", u.UserID, biddingerrors.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create user %s: %w", u.UserID, err)
	}
	return nil
}

// GetUser retrieves a user without locking it.
func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userSelectCols+` FROM users WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, fmt.Errorf("postgres: get user %s: %w", userID, biddingerrors.ErrUserNotFound)
		}
		return model.User{}, fmt.Errorf("postgres: get user %s: %w", userID, err)
	}
	return u, nil
}

// CreateAuction inserts a new auction.
func (s *Store) CreateAuction(ctx context.Context, a model.Auction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auctions (`+auctionSelectCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.AuctionID, a.SellerID, a.Title, a.Description, a.ImageKey,
		a.StartPrice, a.CurrentPrice, a.CurrentLeaderID, a.CurrentLeaderBidID,
		a.StartTime, a.EndTime, string(a.Status), a.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create auction %s: %w", a.AuctionID, biddingerrors.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create auction %s: %w", a.AuctionID, err)
	}
	return nil
}

// GetAuction retrieves an auction without locking it.
func (s *Store) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	a, err := scanAuction(s.pool.QueryRow(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions WHERE auction_id = $1`, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Auction{}, fmt.Errorf("postgres: get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
		}
		return model.Auction{}, fmt.Errorf("postgres: get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// UpdateAuction writes a if its version still matches and bumps the version.
func (s *Store) UpdateAuction(ctx context.Context, a model.Auction) (model.Auction, error) {
	if err := updateAuction(ctx, s.pool, a); err != nil {
		return model.Auction{}, err
	}
	a.Version++
	return a, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func updateAuction(ctx context.Context, db execer, a model.Auction) error {
	tag, err := db.Exec(ctx,
		`UPDATE auctions SET
			title = $3, description = $4, image_key = $5,
			start_price = $6, current_price = $7,
			current_leader_id = $8, current_leader_bid_id = $9,
			start_time = $10, end_time = $11, status = $12,
			version = version + 1
		 WHERE auction_id = $1 AND version = $2`,
		a.AuctionID, a.Version, a.Title, a.Description, a.ImageKey,
		a.StartPrice, a.CurrentPrice, a.CurrentLeaderID, a.CurrentLeaderBidID,
		a.StartTime, a.EndTime, string(a.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: update auction %s: %w", a.AuctionID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM auctions WHERE auction_id = $1)`, a.AuctionID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: update auction %s: %w", a.AuctionID, err)
	}
	if !exists {
		return fmt.Errorf("postgres: update auction %s: %w", a.AuctionID, biddingerrors.ErrAuctionNotFound)
	}
	return fmt.Errorf("postgres: update auction %s at version %d: %w", a.AuctionID, a.Version, biddingerrors.ErrVersionConflict)
}

// ListAuctions returns auctions matching filter, oldest first.
func (s *Store) ListAuctions(ctx context.Context, filter repository.AuctionFilter) ([]model.Auction, error) {
	query := `SELECT ` + auctionSelectCols + ` FROM auctions WHERE TRUE`
	var args []any
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.SellerID != "" {
		query += fmt.Sprintf(" AND seller_id = $%d", argIdx)
		args = append(args, filter.SellerID)
		argIdx++
	}
	if filter.Query != "" {
		query += fmt.Sprintf(" AND (title ILIKE $%d ESCAPE '\\' OR description ILIKE $%d ESCAPE '\\')", argIdx, argIdx)
		args = append(args, "%"+escapeLike(filter.Query)+"%")
	}
	query += " ORDER BY created_at, auction_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions: %w", err)
	}
	defer rows.Close()

	auctions, err := scanAuctions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan auctions: %w", err)
	}
	return auctions, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes q match literally inside an ILIKE pattern
func escapeLike(q string) string {
	return likeEscaper.Replace(q)
}

// ClaimForClosing is a single conditional UPDATE. It waits on the row lock
// of any in-flight bid and re-evaluates the predicate afterwards.
func (s *Store) ClaimForClosing(ctx context.Context, auctionID string, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE auctions SET status = 'CLOSING', version = version + 1
		 WHERE auction_id = $1 AND status = 'LIVE' AND end_time < $2`,
		auctionID, now,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: claim auction %s: %w", auctionID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// FindExpiredLive returns ids of LIVE auctions that ended before now.
func (s *Store) FindExpiredLive(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT auction_id FROM auctions WHERE status = 'LIVE' AND end_time < $1 ORDER BY end_time, auction_id`, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: find expired auctions: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan expired auctions: %w", err)
	}
	return ids, nil
}

// FindStuckClosing returns ids of auctions claimed for closing but not settled.
func (s *Store) FindStuckClosing(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT auction_id FROM auctions WHERE status = 'CLOSING' ORDER BY end_time, auction_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: find closing auctions: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closing auctions: %w", err)
	}
	return ids, nil
}

// GetBidsByAuction returns the bid history of an auction, oldest first.
func (s *Store) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT bid_id, auction_id, bidder_id, amount, created_at FROM bids
		 WHERE auction_id = $1 ORDER BY seq`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	bids := make([]model.Bid, 0)
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// GetAuctionsByBidder returns every auction the user has bid on.
func (s *Store) GetAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions
		 WHERE auction_id IN (SELECT auction_id FROM bids WHERE bidder_id = $1)
		 ORDER BY created_at, auction_id`, bidderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions by bidder %s: %w", bidderID, err)
	}
	defer rows.Close()

	auctions, err := scanAuctions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan auctions by bidder: %w", err)
	}
	return auctions, nil
}

// GetSettlementByAuction returns the settlement of a closed auction.
func (s *Store) GetSettlementByAuction(ctx context.Context, auctionID string) (model.Settlement, error) {
	st, err := scanSettlement(s.pool.QueryRow(ctx,
		`SELECT `+settlementSelectCols+` FROM settlements WHERE auction_id = $1`, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Settlement{}, fmt.Errorf("postgres: get settlement for auction %s: %w", auctionID, biddingerrors.ErrSettlementNotFound)
		}
		return model.Settlement{}, fmt.Errorf("postgres: get settlement for auction %s: %w", auctionID, err)
	}
	return st, nil
}

// ListSettlementsBySeller returns the sales of a user.
func (s *Store) ListSettlementsBySeller(ctx context.Context, sellerID string) ([]model.Settlement, error) {
	return s.listSettlements(ctx, "seller_id", sellerID)
}

// ListSettlementsByWinner returns the purchases of a user.
func (s *Store) ListSettlementsByWinner(ctx context.Context, winnerID string) ([]model.Settlement, error) {
	return s.listSettlements(ctx, "winner_id", winnerID)
}

func (s *Store) listSettlements(ctx context.Context, column, userID string) ([]model.Settlement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+settlementSelectCols+` FROM settlements WHERE `+column+` = $1 ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements by %s: %w", column, err)
	}
	defer rows.Close()

	out := make([]model.Settlement, 0)
	for rows.Next() {
		st, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CreateNotification inserts a notification.
func (s *Store) CreateNotification(ctx context.Context, n model.Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (notification_id, user_id, type, message, auction_id, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.NotificationID, n.UserID, string(n.Type), n.Message, n.AuctionID, n.Read, n.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create notification %s: %w", n.NotificationID, biddingerrors.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create notification %s: %w", n.NotificationID, err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT notification_id, user_id, type, message, auction_id, read, created_at
		 FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list notifications for %s: %w", userID, err)
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		var typ string
		if err := rows.Scan(&n.NotificationID, &n.UserID, &typ, &n.Message, &n.AuctionID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan notification: %w", err)
		}
		n.Type = model.NotificationType(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread returns how many of a user's notifications are unread.
func (s *Store) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count unread for %s: %w", userID, err)
	}
	return n, nil
}

// MarkRead marks one notification owned by userID as read.
func (s *Store) MarkRead(ctx context.Context, userID, notificationID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE notification_id = $1 AND user_id = $2`,
		notificationID, userID)
	if err != nil {
		return fmt.Errorf("postgres: mark notification %s read: %w", notificationID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark notification %s read: %w", notificationID, biddingerrors.ErrNotificationNotFound)
	}
	return nil
}

// MarkAllRead marks every notification of userID as read.
func (s *Store) MarkAllRead(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID); err != nil {
		return fmt.Errorf("postgres: mark all read for %s: %w", userID, err)
	}
	return nil
}

// storeTx adapts a pgx.Tx to repository.Tx.
type storeTx struct {
	tx        pgx.Tx
	local     *repository.RowLocks
	held      map[string]bool
	heldOrder []string
	hooks     []func()
	done      bool
}

// lockLocal takes the in-process lock for key once per transaction
func (t *storeTx) lockLocal(ctx context.Context, key string) error {
	if t.held[key] {
		return nil
	}
	if err := t.local.Acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = true
	t.heldOrder = append(t.heldOrder, key)
	return nil
}

func (t *storeTx) releaseLocal() {
	for i := len(t.heldOrder) - 1; i >= 0; i-- {
		t.local.Release(t.heldOrder[i])
	}
	t.heldOrder = nil
}

// AfterCommit queues fn to run after COMMIT, before the in-process locks
// are released.
func (t *storeTx) AfterCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

func (t *storeTx) requireLock(key string) error {
	if t.done {
		return biddingerrors.ErrTxDone
	}
	if !t.held[key] {
		return biddingerrors.ErrLockNotHeld
	}
	return nil
}

// LockAuction selects the auction row FOR UPDATE.
func (t *storeTx) LockAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	if t.done {
		return model.Auction{}, biddingerrors.ErrTxDone
	}
	if err := t.lockLocal(ctx, repository.AuctionKey(auctionID)); err != nil {
		return model.Auction{}, fmt.Errorf("postgres: lock auction %s: %w", auctionID, err)
	}
	a, err := scanAuction(t.tx.QueryRow(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions WHERE auction_id = $1 FOR UPDATE`, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Auction{}, fmt.Errorf("postgres: lock auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
		}
		return model.Auction{}, fmt.Errorf("postgres: lock auction %s: %w", auctionID, err)
	}
	return a, nil
}

// LockUser selects the user row FOR UPDATE.
func (t *storeTx) LockUser(ctx context.Context, userID string) (model.User, error) {
	if t.done {
		return model.User{}, biddingerrors.ErrTxDone
	}
	if err := t.lockLocal(ctx, repository.UserKey(userID)); err != nil {
		return model.User{}, fmt.Errorf("postgres: lock user %s: %w", userID, err)
	}
	u, err := scanUser(t.tx.QueryRow(ctx,
		`SELECT `+userSelectCols+` FROM users WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, fmt.Errorf("postgres: lock user %s: %w", userID, biddingerrors.ErrUserNotFound)
		}
		return model.User{}, fmt.Errorf("postgres: lock user %s: %w", userID, err)
	}
	return u, nil
}

// SaveAuction updates a locked auction row.
func (t *storeTx) SaveAuction(ctx context.Context, a model.Auction) error {
	if err := t.requireLock(repository.AuctionKey(a.AuctionID)); err != nil {
		return fmt.Errorf("postgres: save auction %s: %w", a.AuctionID, err)
	}
	return updateAuction(ctx, t.tx, a)
}

// SaveUser writes a locked user's balances.
func (t *storeTx) SaveUser(ctx context.Context, u model.User) error {
	if err := t.requireLock(repository.UserKey(u.UserID)); err != nil {
		return fmt.Errorf("postgres: save user %s: %w", u.UserID, err)
	}
	_, err := t.tx.Exec(ctx,
		`UPDATE users SET available_balance = $2, reserved_balance = $3 WHERE user_id = $1`,
		u.UserID, u.AvailableBalance, u.ReservedBalance)
	if err != nil {
		return fmt.Errorf("postgres: save user %s: %w", u.UserID, err)
	}
	return nil
}

// InsertBid appends to the bid history.
func (t *storeTx) InsertBid(ctx context.Context, b model.Bid) error {
	if err := t.requireLock(repository.AuctionKey(b.AuctionID)); err != nil {
		return fmt.Errorf("postgres: insert bid for auction %s: %w", b.AuctionID, err)
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO bids (bid_id, auction_id, bidder_id, amount, created_at) VALUES ($1, $2, $3, $4, $5)`,
		b.BidID, b.AuctionID, b.BidderID, b.Amount, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert bid %s: %w", b.BidID, err)
	}
	return nil
}

// InsertSettlement records a settlement. The unique auction_id constraint
// rejects a second settlement for the same auction.
func (t *storeTx) InsertSettlement(ctx context.Context, st model.Settlement) error {
	if err := t.requireLock(repository.AuctionKey(st.AuctionID)); err != nil {
		return fmt.Errorf("postgres: insert settlement for auction %s: %w", st.AuctionID, err)
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO settlements (`+settlementSelectCols+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		st.SettlementID, st.AuctionID, st.WinnerID, st.SellerID, st.Amount, st.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: insert settlement for auction %s: %w", st.AuctionID, biddingerrors.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: insert settlement for auction %s: %w", st.AuctionID, err)
	}
	return nil
}

var (
	_ repository.AuctionDB         = (*Store)(nil)
	_ repository.NotificationStore = (*Store)(nil)
	_ execer                       = (*pgxpool.Pool)(nil)
	_ execer                       = (pgx.Tx)(nil)
)
