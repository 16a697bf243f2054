// Package export renders a month of transactions as a CSV file and
// optionally publishes it to Cloud Storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/period"
	"github.com/google/uuid"
)

// ContentType is the MIME type of generated files.
const ContentType = "text/csv; charset=utf-8"

// TotalMarker fills the date column of the per-category totals rows.
const TotalMarker = "TOTAL"

// bom lets spreadsheet tools detect UTF-8.
var bom = []byte{0xEF, 0xBB, 0xBF}

// Header is the column layout of every export.
var Header = []string{"date", "type", "amount", "currency", "category", "description"}

// ErrPublishDisabled is returned by Publish when no bucket is configured.
var ErrPublishDisabled = errors.New("export publishing is not configured")

// Store reads the transactions and category aggregates of a window.
type Store interface {
	ListRange(ctx context.Context, ownerID int64, r period.Range) ([]domain.Transaction, error)
	CategoryTotals(ctx context.Context, ownerID int64, kind domain.Kind, r period.Range) ([]domain.CategoryTotal, error)
}

// Uploader stores bytes in a bucket and returns their gs:// URI.
type Uploader interface {
	UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error)
}

// File is a rendered export.
type File struct {
	OwnerID int64
	Year    int
	Month   time.Month
	Name    string
	Rows    int
	Data    []byte
}

// Service builds and publishes exports.
type Service struct {
	store    Store
	uploader Uploader
	bucket   string
	clock    clock.Clock
	currency string
	newID    func() string
}

// NewService creates an export service without publishing.
func NewService(store Store, c clock.Clock, currency string) *Service {
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return &Service{
		store:    store,
		clock:    c,
		currency: currency,
		newID:    func() string { return uuid.NewString() },
	}
}

// UsePublisher enables Publish. An empty bucket leaves it disabled.
func (s *Service) UsePublisher(u Uploader, bucket string) {
	if bucket == "" {
		return
	}
	s.uploader = u
	s.bucket = bucket
}

// Publishing reports whether Publish has somewhere to upload to.
func (s *Service) Publishing() bool {
	return s.uploader != nil
}

// MonthCSV renders the owner's transactions for a month, oldest first,
// followed by one TOTAL row per kind and category. Zero year or month
// default to the current one.
func (s *Service) MonthCSV(ctx context.Context, ownerID int64, year, month int) (*File, error) {
	y, m, err := period.ResolveMonth(period.Today(s.clock), year, month)
	if err != nil {
		return nil, err
	}
	window := period.MonthRange(y, m)

	txs, err := s.store.ListRange(ctx, ownerID, window)
	if err != nil {
		return nil, fmt.Errorf("MonthCSV: list transactions: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(bom)
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("MonthCSV: write header: %w", err)
	}
	for _, tx := range txs {
		row := []string{
			tx.Date.String(),
			string(tx.Kind),
			tx.Amount.StringFixed(domain.AmountScale),
			tx.Currency,
			tx.Category,
			tx.Description,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("MonthCSV: write row %d: %w", tx.ID, err)
		}
	}

	for _, kind := range []domain.Kind{domain.KindExpense, domain.KindIncome} {
		totals, err := s.store.CategoryTotals(ctx, ownerID, kind, window)
		if err != nil {
			return nil, fmt.Errorf("MonthCSV: %s totals: %w", kind, err)
		}
		for _, ct := range totals {
			row := []string{
				TotalMarker,
				string(kind),
				ct.Amount.StringFixed(domain.AmountScale),
				s.currency,
				ct.Category,
				strconv.Itoa(ct.Count) + " transactions",
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("MonthCSV: write totals: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("MonthCSV: flush: %w", err)
	}

	log := logger.ForOwner(ctx, ownerID)
	log.Info().
		Int("year", y).
		Int("month", int(m)).
		Int("rows", len(txs)).
		Msg("Exported month as CSV")

	return &File{
		OwnerID: ownerID,
		Year:    y,
		Month:   m,
		Name:    fmt.Sprintf("finance-%04d-%02d.csv", y, int(m)),
		Rows:    len(txs),
		Data:    buf.Bytes(),
	}, nil
}

// ObjectName is where a file is stored inside the export bucket.
func (s *Service) ObjectName(f *File) string {
	return fmt.Sprintf("exports/%d/%04d-%02d-%s.csv", f.OwnerID, f.Year, int(f.Month), s.newID())
}

// Publish uploads f and returns its gs:// URI.
func (s *Service) Publish(ctx context.Context, f *File) (string, error) {
	if s.uploader == nil {
		return "", ErrPublishDisabled
	}
	uri, err := s.uploader.UploadBytes(ctx, s.bucket, s.ObjectName(f), ContentType, f.Data)
	if err != nil {
		return "", fmt.Errorf("Publish: %w: %v", domain.ErrTransient, err)
	}

	log := logger.ForOwner(ctx, f.OwnerID)
	log.Info().Str("uri", uri).Msg("Published export")
	return uri, nil
}

// Export renders a month and, when publishing is enabled, uploads it.
// Without a bucket the CSV body is returned inline.
func (s *Service) Export(ctx context.Context, ownerID int64, year, month int) domain.Reply {
	f, err := s.MonthCSV(ctx, ownerID, year, month)
	if err != nil {
		return domain.Failure(ctx, "export", err)
	}
	if f.Rows == 0 {
		return domain.Success("📭 No transactions in %d/%d to export.", int(f.Month), f.Year)
	}
	if !s.Publishing() {
		return domain.Success("📤 %s (%d transactions)\n\n%s", f.Name, f.Rows, bytes.TrimPrefix(f.Data, bom))
	}
	uri, err := s.Publish(ctx, f)
	if err != nil {
		return domain.Failure(ctx, "export", err)
	}
	return domain.Success("📤 Exported %d transactions for %d/%d:\n%s", f.Rows, int(f.Month), f.Year, uri)
}
