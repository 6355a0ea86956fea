package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/datascoop/datascoop/internal/platform/db"
	"github.com/datascoop/datascoop/internal/shared"
)

// PostgresRepository persists the catalog in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PostgresRepository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateLocation(ctx context.Context, name string) (Location, error) {
	loc := Location{Name: name}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO locations (name) VALUES ($1) RETURNING id`, name).Scan(&loc.ID); err != nil {
			return mapUniqueViolation(err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO ledger_entries (location_id, flavor_id, ounces, avg_cost, updated_at)
SELECT $1, id, 0, 0, NOW() FROM flavors
ON CONFLICT (location_id, flavor_id) DO NOTHING`, loc.ID)
		return err
	})
	if err != nil {
		return Location{}, err
	}
	return loc, nil
}

func (r *PostgresRepository) CreateFlavor(ctx context.Context, name string, cost decimal.Decimal) (Flavor, error) {
	flavor := Flavor{Name: name, CostPerContainer: cost}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO flavors (name, cost_per_container) VALUES ($1, $2) RETURNING id`, name, cost).Scan(&flavor.ID); err != nil {
			return mapUniqueViolation(err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO ledger_entries (location_id, flavor_id, ounces, avg_cost, updated_at)
SELECT id, $1, 0, 0, NOW() FROM locations
ON CONFLICT (location_id, flavor_id) DO NOTHING`, flavor.ID)
		return err
	})
	if err != nil {
		return Flavor{}, err
	}
	return flavor, nil
}

func (r *PostgresRepository) UpdateFlavorCost(ctx context.Context, id int64, cost decimal.Decimal) (Flavor, error) {
	var f Flavor
	err := r.pool.QueryRow(ctx, `UPDATE flavors SET cost_per_container=$2 WHERE id=$1 RETURNING id, name, cost_per_container`, id, cost).
		Scan(&f.ID, &f.Name, &f.CostPerContainer)
	if err != nil {
		return Flavor{}, notFound(err, "flavor", id)
	}
	return f, nil
}

func (r *PostgresRepository) CreateContainer(ctx context.Context, c Container) (Container, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO containers (name, price_per_pack, units_per_pack) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.PricePerPack, c.UnitsPerPack).Scan(&c.ID)
	if err != nil {
		return Container{}, mapUniqueViolation(err)
	}
	return c, nil
}

func (r *PostgresRepository) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM locations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Location, error) {
		var l Location
		err := row.Scan(&l.ID, &l.Name)
		return l, err
	})
}

func (r *PostgresRepository) ListFlavors(ctx context.Context) ([]Flavor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, cost_per_container FROM flavors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Flavor, error) {
		var f Flavor
		err := row.Scan(&f.ID, &f.Name, &f.CostPerContainer)
		return f, err
	})
}

func (r *PostgresRepository) ListContainers(ctx context.Context) ([]Container, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, price_per_pack, units_per_pack FROM containers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Container, error) {
		var c Container
		err := row.Scan(&c.ID, &c.Name, &c.PricePerPack, &c.UnitsPerPack)
		return c, err
	})
}

func (r *PostgresRepository) GetLocation(ctx context.Context, id int64) (Location, error) {
	var l Location
	if err := r.pool.QueryRow(ctx, `SELECT id, name FROM locations WHERE id=$1`, id).Scan(&l.ID, &l.Name); err != nil {
		return Location{}, notFound(err, "location", id)
	}
	return l, nil
}

func (r *PostgresRepository) GetFlavor(ctx context.Context, id int64) (Flavor, error) {
	var f Flavor
	if err := r.pool.QueryRow(ctx, `SELECT id, name, cost_per_container FROM flavors WHERE id=$1`, id).Scan(&f.ID, &f.Name, &f.CostPerContainer); err != nil {
		return Flavor{}, notFound(err, "flavor", id)
	}
	return f, nil
}

func (r *PostgresRepository) GetContainer(ctx context.Context, id int64) (Container, error) {
	var c Container
	if err := r.pool.QueryRow(ctx, `SELECT id, name, price_per_pack, units_per_pack FROM containers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.PricePerPack, &c.UnitsPerPack); err != nil {
		return Container{}, notFound(err, "container", id)
	}
	return c, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicateName
	}
	return err
}

func notFound(err error, entity string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", entity, id, shared.ErrNotFound)
	}
	return err
}
