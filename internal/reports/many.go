// internal/reports/many.go
package reports

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EUMRVMany runs EUMRV for every vessel with at most report.concurrency
// browsers at a time. Results keep the order of vessels. The first failure
// cancels the remaining extractions.
func (e *Extractor) EUMRVMany(ctx context.Context, vessels []string, base Query) ([]*EUMRVReport, error) {
	return runMany(ctx, e, vessels, base, e.EUMRV)
}

// IMODCSMany is EUMRVMany for the IMO DCS report.
func (e *Extractor) IMODCSMany(ctx context.Context, vessels []string, base Query) ([]*IMODCSReport, error) {
	return runMany(ctx, e, vessels, base, e.IMODCS)
}

func runMany[T any](ctx context.Context, e *Extractor, vessels []string, base Query, extract func(context.Context, Query) (T, error)) ([]T, error) {
	// Validate everything up front so a bad date fails before any browser starts.
	for _, v := range vessels {
		q := base
		q.Vessel = v
		if _, err := e.Window(q); err != nil {
			return nil, fmt.Errorf("%s: %w", v, err)
		}
	}

	limit := e.report.Concurrency
	if limit <= 0 {
		limit = 1
	}

	results := make([]T, len(vessels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, v := range vessels {
		q := base
		q.Vessel = v
		g.Go(func() error {
			r, err := extract(gctx, q)
			if err != nil {
				return fmt.Errorf("%s: %w", q.Vessel, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
