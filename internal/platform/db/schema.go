package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS locations (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS locations_name_key ON locations (lower(name));

CREATE TABLE IF NOT EXISTS flavors (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    cost_per_container NUMERIC(14,4) NOT NULL CHECK (cost_per_container >= 0)
);
CREATE UNIQUE INDEX IF NOT EXISTS flavors_name_key ON flavors (lower(name));

CREATE TABLE IF NOT EXISTS containers (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    price_per_pack NUMERIC(14,4) NOT NULL,
    units_per_pack INTEGER NOT NULL CHECK (units_per_pack > 0)
);
CREATE UNIQUE INDEX IF NOT EXISTS containers_name_key ON containers (lower(name));

CREATE TABLE IF NOT EXISTS ledger_entries (
    location_id BIGINT NOT NULL REFERENCES locations(id),
    flavor_id BIGINT NOT NULL REFERENCES flavors(id),
    ounces BIGINT NOT NULL DEFAULT 0 CHECK (ounces >= 0),
    avg_cost NUMERIC NOT NULL DEFAULT 0 CHECK (avg_cost >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (location_id, flavor_id)
);

CREATE TABLE IF NOT EXISTS purchases (
    id BIGSERIAL PRIMARY KEY,
    ref UUID NOT NULL UNIQUE,
    location_id BIGINT NOT NULL REFERENCES locations(id),
    flavor_id BIGINT NOT NULL REFERENCES flavors(id),
    purchase_date DATE NOT NULL,
    containers INTEGER NOT NULL CHECK (containers > 0),
    cost_per_container NUMERIC(14,4) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sales (
    id BIGSERIAL PRIMARY KEY,
    ref UUID NOT NULL UNIQUE,
    location_id BIGINT NOT NULL REFERENCES locations(id),
    flavor_id BIGINT NOT NULL REFERENCES flavors(id),
    sale_date DATE NOT NULL,
    size TEXT NOT NULL,
    container_id BIGINT NOT NULL REFERENCES containers(id),
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS sales_date_idx ON sales (sale_date, location_id);

CREATE TABLE IF NOT EXISTS audit_logs (
    id BIGSERIAL PRIMARY KEY,
    action TEXT NOT NULL,
    entity TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    meta JSONB,
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS idempotency_keys (
    key TEXT PRIMARY KEY,
    module TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the tables used by the application when missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("platform/db: migrate: %w", err)
	}
	return nil
}
