package directory

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/and161185/authentic-caller/internal/errs"
	"github.com/and161185/authentic-caller/internal/model"
	"github.com/and161185/authentic-caller/internal/repository"
)

// DefaultMaxImportRows caps the number of data lines accepted in one upload.
const DefaultMaxImportRows = 10000

// ParseCSV splits an uploaded address book into raw rows: one per "\n"-separated
// line, trimmed, with fields split on ",". The header line is kept; Import drops it.
// More than maxRows non-empty data lines is rejected with errs.ErrInvalidArgument.
func ParseCSV(r io.Reader, maxRows int) ([]model.ImportRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	lines := strings.Split(string(data), "\n")

	rows := make([]model.ImportRow, 0, len(lines))
	dataLines := 0
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if i > 0 && line != "" {
			dataLines++
		}
		fields := strings.Split(line, ",")
		row := model.ImportRow{Name: fields[0]}
		if len(fields) > 1 {
			row.Phone = fields[1]
		}
		if len(fields) > 2 {
			row.Email = fields[2]
		}
		rows = append(rows, row)
	}
	if maxRows > 0 && dataLines > maxRows {
		return nil, fmt.Errorf("upload has %d rows, limit is %d: %w", dataLines, maxRows, errs.ErrInvalidArgument)
	}
	return rows, nil
}

// Importer ingests address book rows as unregistered records owned by the uploader.
type Importer struct {
	store repository.ContactRepository
}

// NewImporter constructs an Importer over store.
func NewImporter(store repository.ContactRepository) *Importer {
	return &Importer{store: store}
}

// Accept converts rows into records owned by ownerID. The first row is a header
// and is always dropped. A row needs a name and a phone that parses as a
// non-negative integer; anything else is skipped. Duplicates are kept.
func Accept(rows []model.ImportRow, ownerID int64) []model.Contact {
	out := make([]model.Contact, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}
		name := strings.TrimSpace(row.Name)
		phoneText := strings.TrimSpace(row.Phone)
		if name == "" || phoneText == "" {
			continue
		}
		phone, err := strconv.ParseInt(phoneText, 10, 64)
		if err != nil || phone < 0 {
			continue
		}
		owner := ownerID
		out = append(out, model.Contact{
			Name:    name,
			Phone:   phone,
			Email:   row.Email,
			OwnerID: &owner,
		})
	}
	return out
}

// Import stores the accepted rows and returns them with assigned ids, in input order.
func (im *Importer) Import(ctx context.Context, rows []model.ImportRow, ownerID int64) ([]model.Contact, error) {
	if ownerID <= 0 {
		return nil, errs.ErrUnauthenticated
	}
	records := Accept(rows, ownerID)
	if len(records) == 0 {
		return []model.Contact{}, nil
	}
	return im.store.InsertMany(ctx, records)
}
