// pkg/pale3/report.go
package pale3

import (
	"context"
	"fmt"
	"time"

	"github.com/bogdanrbucur/pal-e3/internal/reports"
)

// ReportOptions tune a voyage consumption extraction.
type ReportOptions struct {
	// FromPreviousYear starts the period on 1 January of the previous year
	// instead of the first of the current year.
	FromPreviousYear bool
}

// Report is one vessel's voyage consumption result. Exactly one of EUMRV
// and IMODCS is set, matching Kind.
type Report struct {
	Kind   reports.Kind          `json:"-"`
	EUMRV  *reports.EUMRVReport  `json:"eu_mrv,omitempty"`
	IMODCS *reports.IMODCSReport `json:"imo_dcs,omitempty"`
}

// NoData reports whether the vendor showed no results within the polling budget.
func (r *Report) NoData() bool {
	switch {
	case r.EUMRV != nil:
		return r.EUMRV.NoData
	case r.IMODCS != nil:
		return r.IMODCS.NoData
	}
	return true
}

// VoyageConsumption extracts the EU MRV or IMO DCS report of vessel for the
// period ending at date. The browser used is always released, including when
// ctx is canceled mid-flow.
func (s *Session) VoyageConsumption(ctx context.Context, kind reports.Kind, vessel string, date time.Time, opts ReportOptions) (*Report, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := reports.Query{Vessel: vessel, Date: date, FromPreviousYear: opts.FromPreviousYear}
	switch kind {
	case reports.EUMRV:
		r, err := s.extractor.EUMRV(ctx, q)
		if err != nil {
			return nil, err
		}
		return &Report{Kind: kind, EUMRV: r}, nil
	case reports.IMODCS:
		r, err := s.extractor.IMODCS(ctx, q)
		if err != nil {
			return nil, err
		}
		return &Report{Kind: kind, IMODCS: r}, nil
	}
	return nil, fmt.Errorf("unsupported report kind %s", kind)
}

// VoyageConsumptionMany runs VoyageConsumption for every vessel with bounded
// concurrency. Results keep the order of vessels; the first failure cancels
// the rest.
func (s *Session) VoyageConsumptionMany(ctx context.Context, kind reports.Kind, vessels []string, date time.Time, opts ReportOptions) ([]*Report, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	base := reports.Query{Date: date, FromPreviousYear: opts.FromPreviousYear}
	switch kind {
	case reports.EUMRV:
		rs, err := s.extractor.EUMRVMany(ctx, vessels, base)
		if err != nil {
			return nil, err
		}
		out := make([]*Report, len(rs))
		for i, r := range rs {
			out[i] = &Report{Kind: kind, EUMRV: r}
		}
		return out, nil
	case reports.IMODCS:
		rs, err := s.extractor.IMODCSMany(ctx, vessels, base)
		if err != nil {
			return nil, err
		}
		out := make([]*Report, len(rs))
		for i, r := range rs {
			out[i] = &Report{Kind: kind, IMODCS: r}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported report kind %s", kind)
}
