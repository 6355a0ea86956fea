// Package transfer moves ledger events and locations in and out of CSV files.
// Imports always go through the transaction recorder, one row at a time; a
// failing row is reported and skipped while the remaining rows still apply.
package transfer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/inventory"
	"github.com/datascoop/datascoop/internal/shared"
)

// Column layouts shared by import and export.
var (
	PurchaseColumns = []string{"location_id", "flavor_id", "purchase_date", "containers", "cost_per_container"}
	SaleColumns     = []string{"location_id", "flavor_id", "sale_date", "size", "container_type_id", "quantity"}
	LocationColumns = []string{"id", "name"}
)

// Recorder records purchases and sales.
type Recorder interface {
	RecordPurchase(ctx context.Context, input inventory.PurchaseInput) (inventory.Purchase, error)
	RecordSale(ctx context.Context, input inventory.SaleInput) (inventory.Sale, error)
}

// EventSource lists recorded events. Zero bounds are open.
type EventSource interface {
	Purchases(ctx context.Context, from, to time.Time) ([]inventory.Purchase, error)
	Sales(ctx context.Context, from, to time.Time) ([]inventory.Sale, error)
}

// LocationSource lists locations.
type LocationSource interface {
	ListLocations(ctx context.Context) ([]catalog.Location, error)
}

// RowError describes a rejected input row. Line is 1-based and counts the header.
type RowError struct {
	Line int   `json:"line"`
	Err  error `json:"-"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ImportReport summarises an import run.
type ImportReport struct {
	Imported int        `json:"imported"`
	Failed   []RowError `json:"failed,omitempty"`
}

// Service runs imports and exports.
type Service struct {
	recorder  Recorder
	events    EventSource
	locations LocationSource
	logger    *slog.Logger
}

// NewService wires the CSV transfer service.
func NewService(recorder Recorder, events EventSource, locations LocationSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{recorder: recorder, events: events, locations: locations, logger: logger}
}

// ExportPurchases writes every purchase in date order.
func (s *Service) ExportPurchases(ctx context.Context, w io.Writer) (int, error) {
	purchases, err := s.events.Purchases(ctx, time.Time{}, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("transfer: export purchases: %w", err)
	}
	rows := make([][]string, 0, len(purchases))
	for _, p := range purchases {
		rows = append(rows, []string{
			formatID(p.LocationID),
			formatID(p.FlavorID),
			p.Date.Format(time.DateOnly),
			formatID(p.Containers),
			p.CostPerContainer.StringFixed(2),
		})
	}
	return len(rows), writeAll(w, PurchaseColumns, rows)
}

// ExportSales writes every sale in date order.
func (s *Service) ExportSales(ctx context.Context, w io.Writer) (int, error) {
	sales, err := s.events.Sales(ctx, time.Time{}, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("transfer: export sales: %w", err)
	}
	rows := make([][]string, 0, len(sales))
	for _, sl := range sales {
		rows = append(rows, []string{
			formatID(sl.LocationID),
			formatID(sl.FlavorID),
			sl.Date.Format(time.DateOnly),
			string(sl.Size),
			formatID(sl.ContainerID),
			formatID(sl.Quantity),
		})
	}
	return len(rows), writeAll(w, SaleColumns, rows)
}

// ExportLocations writes the location list.
func (s *Service) ExportLocations(ctx context.Context, w io.Writer) (int, error) {
	locations, err := s.locations.ListLocations(ctx)
	if err != nil {
		return 0, fmt.Errorf("transfer: export locations: %w", err)
	}
	rows := make([][]string, 0, len(locations))
	for _, l := range locations {
		rows = append(rows, []string{formatID(l.ID), l.Name})
	}
	return len(rows), writeAll(w, LocationColumns, rows)
}

// ImportPurchases records one purchase per row. Columns are matched by header
// name; purchase_date may be blank and cost_per_container is ignored because
// the flavor's current cost is authoritative.
func (s *Service) ImportPurchases(ctx context.Context, r io.Reader) (ImportReport, error) {
	return s.importRows(ctx, r, []string{"location_id", "flavor_id", "containers"}, func(ctx context.Context, row record) error {
		input := inventory.PurchaseInput{IdempotencyKey: row.get("idempotency_key")}
		var err error
		if input.LocationID, err = row.integer("location_id"); err != nil {
			return err
		}
		if input.FlavorID, err = row.integer("flavor_id"); err != nil {
			return err
		}
		if input.Containers, err = row.integer("containers"); err != nil {
			return err
		}
		if input.Date, err = row.date("purchase_date"); err != nil {
			return err
		}
		_, err = s.recorder.RecordPurchase(ctx, input)
		return err
	})
}

// ImportSales records one sales line per row.
func (s *Service) ImportSales(ctx context.Context, r io.Reader) (ImportReport, error) {
	return s.importRows(ctx, r, []string{"location_id", "flavor_id", "size", "container_type_id", "quantity"}, func(ctx context.Context, row record) error {
		input := inventory.SaleInput{IdempotencyKey: row.get("idempotency_key")}
		var err error
		if input.LocationID, err = row.integer("location_id"); err != nil {
			return err
		}
		if input.FlavorID, err = row.integer("flavor_id"); err != nil {
			return err
		}
		if input.Size, err = catalog.ParseSize(row.get("size")); err != nil {
			return err
		}
		if input.ContainerID, err = row.integer("container_type_id"); err != nil {
			return err
		}
		if input.Quantity, err = row.integer("quantity"); err != nil {
			return err
		}
		if input.Date, err = row.date("sale_date"); err != nil {
			return err
		}
		_, err = s.recorder.RecordSale(ctx, input)
		return err
	})
}

func (s *Service) importRows(ctx context.Context, r io.Reader, required []string, apply func(context.Context, record) error) (ImportReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ImportReport{}, fmt.Errorf("transfer: %w: empty file", shared.ErrInvalidArgument)
	}
	if err != nil {
		return ImportReport{}, fmt.Errorf("transfer: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return ImportReport{}, fmt.Errorf("transfer: %w: missing column %q", shared.ErrInvalidArgument, name)
		}
	}

	var report ImportReport
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			report.Failed = append(report.Failed, RowError{Line: line, Err: err})
			continue
		}
		if err := apply(ctx, record{index: index, fields: fields}); err != nil {
			s.logger.Warn("import row skipped", slog.Int("line", line), slog.Any("error", err))
			report.Failed = append(report.Failed, RowError{Line: line, Err: err})
			continue
		}
		report.Imported++
	}
	return report, nil
}

type record struct {
	index  map[string]int
	fields []string
}

func (r record) get(name string) string {
	i, ok := r.index[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r record) integer(name string) (int64, error) {
	v, err := strconv.ParseInt(r.get(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", shared.ErrInvalidArgument, name)
	}
	return v, nil
}

func (r record) date(name string) (*time.Time, error) {
	value := r.get(name)
	if value == "" {
		return nil, nil
	}
	d, err := shared.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("transfer: write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("transfer: write rows: %w", err)
	}
	return nil
}

func formatID(v int64) string {
	return strconv.FormatInt(v, 10)
}
