// Package memory keeps catalog and ledger state in process. It backs the
// CLI and tests when no PostgreSQL DSN is configured.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/inventory"
	"github.com/datascoop/datascoop/internal/shared"
)

type ledgerKey struct {
	locationID int64
	flavorID   int64
}

// Store implements catalog.Repository and inventory.RepositoryPort.
type Store struct {
	mu         sync.RWMutex
	locations  map[int64]catalog.Location
	flavors    map[int64]catalog.Flavor
	containers map[int64]catalog.Container
	entries    map[ledgerKey]inventory.Entry
	purchases  []inventory.Purchase
	sales      []inventory.Sale
	seq        int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		locations:  make(map[int64]catalog.Location),
		flavors:    make(map[int64]catalog.Flavor),
		containers: make(map[int64]catalog.Container),
		entries:    make(map[ledgerKey]inventory.Entry),
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func nameTaken[T any](items map[int64]T, name string, nameOf func(T) string) bool {
	for _, it := range items {
		if strings.EqualFold(nameOf(it), name) {
			return true
		}
	}
	return false
}

func (s *Store) CreateLocation(ctx context.Context, name string) (catalog.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nameTaken(s.locations, name, func(l catalog.Location) string { return l.Name }) {
		return catalog.Location{}, fmt.Errorf("location %q: %w", name, shared.ErrDuplicateName)
	}
	loc := catalog.Location{ID: s.nextID(), Name: name}
	s.locations[loc.ID] = loc
	for id := range s.flavors {
		s.entries[ledgerKey{loc.ID, id}] = inventory.Entry{LocationID: loc.ID, FlavorID: id, UpdatedAt: time.Now().UTC()}
	}
	return loc, nil
}

func (s *Store) CreateFlavor(ctx context.Context, name string, cost decimal.Decimal) (catalog.Flavor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nameTaken(s.flavors, name, func(f catalog.Flavor) string { return f.Name }) {
		return catalog.Flavor{}, fmt.Errorf("flavor %q: %w", name, shared.ErrDuplicateName)
	}
	f := catalog.Flavor{ID: s.nextID(), Name: name, CostPerContainer: cost}
	s.flavors[f.ID] = f
	for id := range s.locations {
		s.entries[ledgerKey{id, f.ID}] = inventory.Entry{LocationID: id, FlavorID: f.ID, UpdatedAt: time.Now().UTC()}
	}
	return f, nil
}

func (s *Store) UpdateFlavorCost(ctx context.Context, id int64, cost decimal.Decimal) (catalog.Flavor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flavors[id]
	if !ok {
		return catalog.Flavor{}, fmt.Errorf("flavor %d: %w", id, shared.ErrNotFound)
	}
	f.CostPerContainer = cost
	s.flavors[id] = f
	return f, nil
}

func (s *Store) CreateContainer(ctx context.Context, c catalog.Container) (catalog.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nameTaken(s.containers, c.Name, func(c catalog.Container) string { return c.Name }) {
		return catalog.Container{}, fmt.Errorf("container %q: %w", c.Name, shared.ErrDuplicateName)
	}
	c.ID = s.nextID()
	s.containers[c.ID] = c
	return c, nil
}

func (s *Store) ListLocations(ctx context.Context) ([]catalog.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Location, 0, len(s.locations))
	for _, l := range s.locations {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b catalog.Location) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) ListFlavors(ctx context.Context) ([]catalog.Flavor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Flavor, 0, len(s.flavors))
	for _, f := range s.flavors {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b catalog.Flavor) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) ListContainers(ctx context.Context) ([]catalog.Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Container, 0, len(s.containers))
	for _, c := range s.containers {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b catalog.Container) int { return compareInt(a.ID, b.ID) })
	return out, nil
}

func (s *Store) GetLocation(ctx context.Context, id int64) (catalog.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locations[id]
	if !ok {
		return catalog.Location{}, fmt.Errorf("location %d: %w", id, shared.ErrNotFound)
	}
	return l, nil
}

func (s *Store) GetFlavor(ctx context.Context, id int64) (catalog.Flavor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flavors[id]
	if !ok {
		return catalog.Flavor{}, fmt.Errorf("flavor %d: %w", id, shared.ErrNotFound)
	}
	return f, nil
}

func (s *Store) GetContainer(ctx context.Context, id int64) (catalog.Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[id]
	if !ok {
		return catalog.Container{}, fmt.Errorf("container %d: %w", id, shared.ErrNotFound)
	}
	return c, nil
}

// WithTx stages writes and applies them only when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memoryTx{store: s, entries: make(map[ledgerKey]inventory.Entry)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, e := range tx.entries {
		s.entries[k] = e
	}
	s.purchases = append(s.purchases, tx.purchases...)
	s.sales = append(s.sales, tx.sales...)
	return nil
}

func (s *Store) GetEntry(ctx context.Context, locationID, flavorID int64) (inventory.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[ledgerKey{locationID, flavorID}]
	if !ok {
		return inventory.Entry{}, inventory.ErrEntryNotFound
	}
	return e, nil
}

func (s *Store) ListEntries(ctx context.Context) ([]inventory.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]inventory.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b inventory.Entry) int {
		if a.LocationID != b.LocationID {
			return compareInt(a.LocationID, b.LocationID)
		}
		return compareInt(a.FlavorID, b.FlavorID)
	})
	return out, nil
}

func (s *Store) ListPurchases(ctx context.Context, from, to time.Time) ([]inventory.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []inventory.Purchase
	for _, p := range s.purchases {
		if inWindow(p.Date, from, to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListSales(ctx context.Context, from, to time.Time) ([]inventory.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []inventory.Sale
	for _, sl := range s.sales {
		if inWindow(sl.Date, from, to) {
			out = append(out, sl)
		}
	}
	return out, nil
}

func inWindow(d, from, to time.Time) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && !d.Before(to) {
		return false
	}
	return true
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type memoryTx struct {
	store     *Store
	entries   map[ledgerKey]inventory.Entry
	purchases []inventory.Purchase
	sales     []inventory.Sale
}

func (t *memoryTx) GetEntryForUpdate(ctx context.Context, locationID, flavorID int64) (inventory.Entry, error) {
	k := ledgerKey{locationID, flavorID}
	if e, ok := t.entries[k]; ok {
		return e, nil
	}
	if e, ok := t.store.entries[k]; ok {
		return e, nil
	}
	return inventory.Entry{}, inventory.ErrEntryNotFound
}

func (t *memoryTx) UpsertEntry(ctx context.Context, e inventory.Entry) error {
	if e.Ounces < 0 {
		return fmt.Errorf("ledger entry %d/%d: negative ounces", e.LocationID, e.FlavorID)
	}
	t.entries[ledgerKey{e.LocationID, e.FlavorID}] = e
	return nil
}

func (t *memoryTx) InsertPurchase(ctx context.Context, p inventory.Purchase) (int64, error) {
	p.ID = t.store.nextID()
	t.purchases = append(t.purchases, p)
	return p.ID, nil
}

func (t *memoryTx) InsertSale(ctx context.Context, sl inventory.Sale) (int64, error) {
	sl.ID = t.store.nextID()
	t.sales = append(t.sales, sl)
	return sl.ID, nil
}
