package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool     *pgxpool.Pool
	attempts int
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, attempts: db.DefaultTxAttempts}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction,
// retrying on serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithRetry(ctx, r.pool, r.attempts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const entryColumns = `location_id, flavor_id, ounces, avg_cost, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.LocationID, &e.FlavorID, &e.Ounces, &e.AvgCost, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return e, err
}

// GetEntry reads one ledger entry.
func (r *Repository) GetEntry(ctx context.Context, locationID, flavorID int64) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE location_id=$1 AND flavor_id=$2`, locationID, flavorID)
	return scanEntry(row)
}

// ListEntries returns all ledger entries ordered by location then flavor.
func (r *Repository) ListEntries(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries ORDER BY location_id, flavor_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		return scanEntry(row)
	})
}

// ListPurchases returns purchases dated in [from, to).
func (r *Repository) ListPurchases(ctx context.Context, from, to time.Time) ([]Purchase, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, ref, location_id, flavor_id, purchase_date, containers, cost_per_container
FROM purchases
WHERE ($1::date IS NULL OR purchase_date >= $1) AND ($2::date IS NULL OR purchase_date < $2)
ORDER BY purchase_date, id`, dateArg(from), dateArg(to))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Purchase, error) {
		var p Purchase
		err := row.Scan(&p.ID, &p.Ref, &p.LocationID, &p.FlavorID, &p.Date, &p.Containers, &p.CostPerContainer)
		return p, err
	})
}

// ListSales returns sales dated in [from, to).
func (r *Repository) ListSales(ctx context.Context, from, to time.Time) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, ref, location_id, flavor_id, sale_date, size, container_id, quantity
FROM sales
WHERE ($1::date IS NULL OR sale_date >= $1) AND ($2::date IS NULL OR sale_date < $2)
ORDER BY sale_date, id`, dateArg(from), dateArg(to))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Sale, error) {
		var (
			s    Sale
			size string
		)
		err := row.Scan(&s.ID, &s.Ref, &s.LocationID, &s.FlavorID, &s.Date, &size, &s.ContainerID, &s.Quantity)
		s.Size = catalog.Size(size)
		return s, err
	})
}

func dateArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func (t *txRepo) GetEntryForUpdate(ctx context.Context, locationID, flavorID int64) (Entry, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE location_id=$1 AND flavor_id=$2 FOR UPDATE`, locationID, flavorID)
	return scanEntry(row)
}

func (t *txRepo) UpsertEntry(ctx context.Context, e Entry) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO ledger_entries (location_id, flavor_id, ounces, avg_cost, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (location_id, flavor_id) DO UPDATE SET ounces = EXCLUDED.ounces, avg_cost = EXCLUDED.avg_cost, updated_at = EXCLUDED.updated_at`,
		e.LocationID, e.FlavorID, e.Ounces, e.AvgCost, e.UpdatedAt)
	return err
}

func (t *txRepo) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchases (ref, location_id, flavor_id, purchase_date, containers, cost_per_container)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.Ref, p.LocationID, p.FlavorID, p.Date, p.Containers, p.CostPerContainer).Scan(&id)
	return id, err
}

func (t *txRepo) InsertSale(ctx context.Context, s Sale) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO sales (ref, location_id, flavor_id, sale_date, size, container_id, quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		s.Ref, s.LocationID, s.FlavorID, s.Date, string(s.Size), s.ContainerID, s.Quantity).Scan(&id)
	return id, err
}
