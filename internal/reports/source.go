// internal/reports/source.go
package reports

import (
	"context"

	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/auth"
	"github.com/bogdanrbucur/pal-e3/internal/browser"
)

// PageSource hands out authenticated pages. release must be called exactly
// once; healthy=false tells the source the page should not be reused.
type PageSource interface {
	Acquire(ctx context.Context) (page browser.Page, release func(healthy bool), err error)
}

// PerCall logs in on a fresh browser for every Acquire and closes it on release.
type PerCall struct {
	Flow   *auth.Flow
	Logger *zap.Logger
}

var _ PageSource = (*PerCall)(nil)

func (p *PerCall) Acquire(ctx context.Context) (browser.Page, func(bool), error) {
	page, err := p.Flow.OpenSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	release := func(bool) {
		if err := page.Close(browser.Detach(ctx)); err != nil && p.Logger != nil {
			p.Logger.Warn("Failed to close report browser.", zap.String("session_id", page.ID()), zap.Error(err))
		}
	}
	return page, release, nil
}
