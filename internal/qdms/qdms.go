// internal/qdms/qdms.go
package qdms

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bogdanrbucur/pal-e3/internal/client"
	"github.com/bogdanrbucur/pal-e3/internal/lookup"
	"github.com/bogdanrbucur/pal-e3/internal/paldate"
)

const (
	documentsPath = "/palqdms/QDMS/DocumentLibrary/DocumentList_Read"

	// DefaultPageSize is the page size FolderDocuments reads with.
	DefaultPageSize = 200
	pageFetches     = 4
)

// libraryEpoch is the earliest document date the library filter accepts.
var libraryEpoch = time.Date(2018, time.October, 1, 0, 0, 0, 0, time.UTC)

// Document is one controlled document in the QDMS library.
type Document struct {
	ID        lookup.ID `json:"ID"`
	DocNo     string    `json:"DocNo"`
	Title     string    `json:"Doctitle"`
	Folder    string    `json:"DocFolder"`
	Site      string    `json:"DocSite"`
	Revision  int       `json:"Revision"`
	CreatedBy string    `json:"CreatedBy"`
	CreatedOn string    `json:"CreatedOn"`
}

// Page is one page of a folder listing with the folder's document count.
type Page struct {
	Documents []Document
	Total     int
}

// Service wraps the QDMS document library.
type Service struct {
	poster client.Poster
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now as the end of the library date filter.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a QDMS service.
func New(poster client.Poster, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{poster: poster, logger: logger.Named("qdms"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FolderPage reads one page of the documents in folderID. Pages are 1-based.
func (s *Service) FolderPage(ctx context.Context, folderID string, page, pageSize int) (Page, error) {
	if page < 1 || pageSize < 1 {
		return Page{}, fmt.Errorf("invalid page %d of size %d", page, pageSize)
	}
	form := client.NewForm().
		Add("sort", "").
		Add("page", page).
		Add("pageSize", pageSize).
		Add("group", "").
		Add("SelectedID", folderID).
		Add("Dateoption", "ALL").
		Add("FromDate", paldate.FormatVendor(libraryEpoch)).
		Add("Todate", paldate.FormatVendor(s.now())).
		Add("Allword", "").
		Add("phrase", "").
		Add("anyword", "").
		Add("noneWords", "").
		Add("Selectedfolder", false).
		Add("VesselObjectID", "-1").
		Add("VesselTypeID", "-1").
		Add("Flag_ID", "-1").
		Add("ClassTypeID", "-1").
		Add("Applicable_To", "-1").
		Add("isMyVSl", "N").
		Add("companyList", "").
		Add("vesselList", "").
		Add("libraryID", "")

	resp, err := s.poster.Post(ctx, client.Request{Path: documentsPath, Encoding: client.URLEncoded, Form: form})
	if err != nil {
		return Page{}, fmt.Errorf("read QDMS folder %s page %d: %w", folderID, page, err)
	}
	var docs []Document
	total, err := resp.DecodeData(&docs)
	if err != nil {
		return Page{}, fmt.Errorf("read QDMS folder %s page %d: %w", folderID, page, err)
	}
	return Page{Documents: docs, Total: total}, nil
}

// FolderDocuments reads every document in folderID. The first page gives the
// total; the remaining pages are fetched concurrently and kept in page order.
func (s *Service) FolderDocuments(ctx context.Context, folderID string) ([]Document, error) {
	first, err := s.FolderPage(ctx, folderID, 1, DefaultPageSize)
	if err != nil {
		return nil, err
	}
	pages := (first.Total + DefaultPageSize - 1) / DefaultPageSize
	if pages <= 1 {
		return first.Documents, nil
	}

	rest := make([][]Document, pages-1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pageFetches)
	for i := range rest {
		g.Go(func() error {
			p, err := s.FolderPage(gctx, folderID, i+2, DefaultPageSize)
			if err != nil {
				return err
			}
			rest[i] = p.Documents
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := first.Documents
	for _, p := range rest {
		docs = append(docs, p...)
	}
	s.logger.Debug("Read QDMS folder.", zap.String("folder", folderID), zap.Int("pages", pages), zap.Int("documents", len(docs)))
	return docs, nil
}
