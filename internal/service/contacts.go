package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/authentic-caller/internal/directory"
	"github.com/and161185/authentic-caller/internal/errs"
	"github.com/and161185/authentic-caller/internal/metrics"
	"github.com/and161185/authentic-caller/internal/model"
	"github.com/and161185/authentic-caller/internal/repository"
)

// ContactService defines directory operations available to signed-in callers.
type ContactService interface {
	// Search resolves a phone or name query into ranked, redacted views.
	Search(ctx context.Context, query string, requesterID int64) ([]model.PublicView, error)
	// GetByID returns the redacted view of one record.
	GetByID(ctx context.Context, id, requesterID int64) (model.PublicView, error)
	// ReportSpam increments the spam counter of a record and returns the new value.
	ReportSpam(ctx context.Context, id int64) (int64, error)
	// UploadContacts imports an address book CSV owned by ownerID.
	UploadContacts(ctx context.Context, ownerID int64, csv io.Reader) ([]model.Contact, error)
}

type ContactServiceImpl struct {
	contacts repository.ContactRepository
	resolver *directory.Resolver
	importer *directory.Importer
	maxRows  int
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewContactService constructs ContactService over the directory store.
func NewContactService(
	contacts repository.ContactRepository,
	maxRows int,
	log *zap.Logger,
	m *metrics.Metrics,
	opts ...directory.ResolverOption,
) *ContactServiceImpl {
	if maxRows <= 0 {
		maxRows = directory.DefaultMaxImportRows
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ContactServiceImpl{
		contacts: contacts,
		resolver: directory.NewResolver(contacts, opts...),
		importer: directory.NewImporter(contacts),
		maxRows:  maxRows,
		log:      log,
		metrics:  m,
	}
}

// Search runs a directory search for requesterID.
func (s *ContactServiceImpl) Search(ctx context.Context, query string, requesterID int64) ([]model.PublicView, error) {
	if requesterID <= 0 {
		return nil, errs.ErrUnauthenticated
	}
	kind := metrics.SearchName
	if _, ok := directory.PhoneQuery(strings.TrimSpace(query)); ok {
		kind = metrics.SearchPhone
	}
	out, err := s.resolver.Search(ctx, query, requesterID)
	if err != nil {
		return nil, err
	}
	s.metrics.IncSearch(kind)
	return out, nil
}

// GetByID looks up a single record for requesterID.
func (s *ContactServiceImpl) GetByID(ctx context.Context, id, requesterID int64) (model.PublicView, error) {
	if requesterID <= 0 {
		return model.PublicView{}, errs.ErrUnauthenticated
	}
	if id <= 0 {
		return model.PublicView{}, fmt.Errorf("user id is required: %w", errs.ErrInvalidArgument)
	}
	return s.resolver.Lookup(ctx, id, requesterID)
}

// ReportSpam bumps the spam counter of id.
func (s *ContactServiceImpl) ReportSpam(ctx context.Context, id int64) (int64, error) {
	if id <= 0 {
		return 0, fmt.Errorf("user id is required: %w", errs.ErrInvalidArgument)
	}
	n, err := s.contacts.IncrementSpamCount(ctx, id)
	if err != nil {
		return 0, err
	}
	s.metrics.IncSpamReport()
	return n, nil
}

// UploadContacts parses csv and stores the accepted rows as ownerID's address book.
func (s *ContactServiceImpl) UploadContacts(ctx context.Context, ownerID int64, csv io.Reader) ([]model.Contact, error) {
	if ownerID <= 0 {
		return nil, errs.ErrUnauthenticated
	}
	rows, err := directory.ParseCSV(csv, s.maxRows)
	if err != nil {
		return nil, err
	}
	out, err := s.importer.Import(ctx, rows, ownerID)
	if err != nil {
		return nil, err
	}
	s.metrics.AddImported(len(out))
	s.log.Info("contacts imported",
		zap.Int64("owner", ownerID),
		zap.Int("lines", len(rows)),
		zap.Int("stored", len(out)),
	)
	return out, nil
}
