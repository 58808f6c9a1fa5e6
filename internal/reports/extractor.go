// internal/reports/extractor.go
package reports

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/browser"
	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/metrics"
	"github.com/bogdanrbucur/pal-e3/internal/paldate"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

// Extractor drives the voyage consumption report screens.
type Extractor struct {
	source    PageSource
	vendorURL string
	browser   config.BrowserConfig
	report    config.ReportConfig
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) { e.logger = logger.Named("reports") }
}

// WithMetrics records flow outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// NewExtractor creates an extractor that obtains its pages from source.
func NewExtractor(source PageSource, vendorURL string, browserCfg config.BrowserConfig, reportCfg config.ReportConfig, opts ...Option) *Extractor {
	e := &Extractor{
		source:    source,
		vendorURL: strings.TrimRight(vendorURL, "/"),
		browser:   browserCfg,
		report:    reportCfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Window validates q and computes its date range without touching a browser.
func (e *Extractor) Window(q Query) (paldate.Window, error) {
	if strings.TrimSpace(q.Vessel) == "" {
		return paldate.Window{}, errors.New("vessel name is required")
	}
	w, err := paldate.ReportWindow(q.Date, e.report.DateMarginDays, q.FromPreviousYear)
	if err != nil {
		return paldate.Window{}, fmt.Errorf("invalid report date: %w", err)
	}
	return w, nil
}

// EUMRV extracts the per-leg EU MRV report.
func (e *Extractor) EUMRV(ctx context.Context, q Query) (report *EUMRVReport, err error) {
	window, err := e.Window(q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { e.metrics.ObserveFlow(EUMRV.String(), flowOutcome(report != nil && report.NoData, err), time.Since(start)) }()

	grid, err := e.run(ctx, EUMRV, q.Vessel, window, euMRVColumns)
	if err != nil {
		return nil, err
	}

	report = &EUMRVReport{Vessel: q.Vessel, StartDate: NewDate(window.Start)}
	if grid == nil {
		report.NoData = true
		report.EndDate = NewDate(window.End)
		return report, nil
	}

	legs, err := e.scrapeLegs(grid)
	if err != nil {
		return nil, err
	}
	report.Legs = legs

	end := window.End
	if n := len(legs); n > 0 {
		arrival, err := paldate.ParseVendor(legs[n-1].ArrivalTime)
		if err != nil {
			return nil, palerr.NewUnexpectedPageShapeError("read arrival time", colArrivalTime, err)
		}
		end = arrival
	}
	report.EndDate = NewDate(end)
	return report, nil
}

// IMODCS extracts the IMO DCS aggregate. The end date is the latest arrival,
// clipped to the end of the requested range.
func (e *Extractor) IMODCS(ctx context.Context, q Query) (report *IMODCSReport, err error) {
	window, err := e.Window(q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { e.metrics.ObserveFlow(IMODCS.String(), flowOutcome(report != nil && report.NoData, err), time.Since(start)) }()

	grid, err := e.run(ctx, IMODCS, q.Vessel, window, imoDCSColumns)
	if err != nil {
		return nil, err
	}

	report = &IMODCSReport{Vessel: q.Vessel, StartDate: NewDate(window.Start)}
	if grid == nil {
		report.NoData = true
		report.EndDate = NewDate(window.End)
		return report, nil
	}

	for _, f := range dcsFooter {
		text, ok := grid.FooterValue(f.column)
		if !ok {
			return nil, palerr.NewUnexpectedPageShapeError("read footer", f.column, errors.New("footer cell missing"))
		}
		v, err := ParseNumber(text)
		if err != nil {
			return nil, palerr.NewUnexpectedPageShapeError("read footer", f.column, err)
		}
		*f.field(report) = v
	}
	report.TotalHFO = report.SeaHFO + report.PortHFO
	report.TotalLFO = report.SeaLFO + report.PortLFO
	report.TotalMDO = report.SeaMDO + report.PortMDO

	end := window.End
	if arrival, ok, err := latestArrival(grid, e.maxRows(grid)); err != nil {
		return nil, err
	} else if ok {
		end = ClipEndDate(arrival, window.End)
	}
	report.EndDate = NewDate(end)
	return report, nil
}

// run performs the shared part of both flows and returns the parsed grid, or
// nil when the vendor never showed results.
func (e *Extractor) run(ctx context.Context, kind Kind, vessel string, window paldate.Window, columns browser.ColumnMap) (grid *browser.Grid, err error) {
	logger := e.logger.With(zap.Stringer("report", kind), zap.String("vessel", vessel),
		zap.String("from", window.StartInput()), zap.String("to", window.EndInput()))

	page, release, err := e.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	// Only pages that completed the flow cleanly go back for reuse.
	defer func() { release(err == nil) }()
	logger = logger.With(zap.String("session_id", page.ID()))

	sc := screens[kind]
	if err := e.openScreen(ctx, page, kind, vessel); err != nil {
		return nil, err
	}

	if err := page.WaitForSelector(ctx, sc.from, e.browser.ActionTimeout); err != nil {
		return nil, err
	}
	if err := page.TypeInto(ctx, sc.from, window.StartInput()); err != nil {
		return nil, err
	}
	if err := page.WaitForSelector(ctx, sc.to, e.browser.ActionTimeout); err != nil {
		return nil, err
	}
	if err := page.TypeInto(ctx, sc.to, window.EndInput()); err != nil {
		return nil, err
	}
	if err := page.Click(ctx, sc.trigger); err != nil {
		return nil, err
	}
	logger.Info("Report requested, waiting for results.")

	if err := page.WaitForSelector(ctx, sc.status(), e.browser.NavigationTimeout); err != nil {
		return nil, err
	}
	res, err := browser.Poller{Sleep: page.Sleep}.UntilTextChanges(ctx, page, sc.status(), e.report.NoDataSentinel,
		e.report.PollInterval, e.report.PollAttempts)
	if err != nil {
		return nil, err
	}
	if res.TimedOut {
		logger.Info("No results shown within the polling budget.", zap.Int("attempts", res.Attempts))
		return nil, nil
	}
	logger.Debug("Results displayed.", zap.String("status", res.Text), zap.Int("attempts", res.Attempts))

	// Grow the grid to its largest page so every row is in one snapshot.
	if err := page.Click(ctx, sc.pageSize()); err != nil {
		return nil, err
	}
	if err := page.PressKeys(ctx, kb.ArrowDown, kb.ArrowDown, kb.Enter); err != nil {
		return nil, err
	}
	if err := e.awaitFullPage(ctx, page, sc, logger); err != nil {
		return nil, err
	}

	html, err := page.Snapshot(ctx, sc.grid)
	if err != nil {
		return nil, err
	}
	return browser.ParseGrid(html, columns)
}

// awaitFullPage waits for the grid to re-render after the page size change,
// until the pager shows every item or a full page.
func (e *Extractor) awaitFullPage(ctx context.Context, page browser.Page, sc screen, logger *zap.Logger) error {
	interval := e.browser.SettlePollInterval
	attempts := 1
	if interval > 0 {
		attempts = max(1, int(e.browser.SettleTimeout/interval))
	}

	var last string
	res, err := browser.Poller{Sleep: page.Sleep}.Until(ctx, interval, attempts, func(ctx context.Context) (bool, error) {
		text, err := page.Text(ctx, sc.status())
		if err != nil {
			return false, err
		}
		last = text
		return pageComplete(text, e.report.PageSize), nil
	})
	if err != nil {
		return err
	}
	if res.TimedOut {
		return palerr.NewUnexpectedPageShapeError("expand page size", sc.status(),
			fmt.Errorf("grid did not show all rows, pager reads %q", last))
	}
	logger.Debug("Grid expanded.", zap.String("status", last), zap.Int("attempts", res.Attempts))
	return nil
}

// pagerInfo matches the Kendo pager label, e.g. "1 - 10 of 25 items".
var pagerInfo = regexp.MustCompile(`^\s*([\d,]+)\s*-\s*([\d,]+)\s+of\s+([\d,]+)`)

// pageComplete reports whether the pager label shows the last item or a
// full page of pageSize rows.
func pageComplete(label string, pageSize int) bool {
	m := pagerInfo.FindStringSubmatch(label)
	if m == nil {
		return false
	}
	shown, err := strconv.Atoi(strings.ReplaceAll(m[2], ",", ""))
	if err != nil {
		return false
	}
	total, err := strconv.Atoi(strings.ReplaceAll(m[3], ",", ""))
	if err != nil {
		return false
	}
	return shown >= total || (pageSize > 0 && shown >= pageSize)
}

// openScreen navigates to the report and selects the vessel. The vessel
// picker is an autocomplete; the first suggestion is taken.
func (e *Extractor) openScreen(ctx context.Context, page browser.Page, kind Kind, vessel string) error {
	if err := page.Goto(ctx, e.vendorURL+reportPath); err != nil {
		return err
	}
	if kind == IMODCS {
		// The DCS sub-report has no URL of its own; it sits two tabs to the right.
		if err := page.PressKeys(ctx, kb.Tab, kb.Tab, kb.ArrowRight, kb.ArrowRight); err != nil {
			return err
		}
	}

	if err := page.WaitForSelector(ctx, vesselPickerSelector, e.browser.NavigationTimeout); err != nil {
		return err
	}
	if err := page.Click(ctx, vesselPickerSelector); err != nil {
		return err
	}
	if err := page.PressKeys(ctx, kb.Tab); err != nil {
		return err
	}
	if err := page.TypeText(ctx, vessel); err != nil {
		return err
	}
	if err := page.Sleep(ctx, e.browser.AutocompleteDelay); err != nil {
		return err
	}
	return page.PressKeys(ctx, kb.ArrowDown, kb.Enter)
}

func (e *Extractor) maxRows(grid *browser.Grid) int {
	n := grid.RowCount()
	if e.report.PageSize > 0 && n > e.report.PageSize {
		n = e.report.PageSize
	}
	return n
}

// scrapeLegs reads every populated row. Rows without a leg cell or with
// every cell blank are unused page slots.
func (e *Extractor) scrapeLegs(grid *browser.Grid) ([]VoyageLeg, error) {
	var legs []VoyageLeg
	for row := 1; row <= e.maxRows(grid); row++ {
		if !legPopulated(grid, row) {
			continue
		}
		var leg VoyageLeg
		for _, c := range legText {
			v, _ := grid.Value(row, c.column)
			*c.field(&leg) = v
		}
		for _, c := range legNumbers {
			text, _ := grid.Value(row, c.column)
			v, err := ParseNumber(text)
			if err != nil {
				return nil, palerr.NewUnexpectedPageShapeError(fmt.Sprintf("read row %d", row), c.column, err)
			}
			*c.field(&leg) = v
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

func legPopulated(grid *browser.Grid, row int) bool {
	if _, ok := grid.Value(row, colLeg); !ok {
		return false
	}
	for _, c := range legText {
		if v, _ := grid.Value(row, c.column); strings.TrimSpace(v) != "" {
			return true
		}
	}
	for _, c := range legNumbers {
		if v, _ := grid.Value(row, c.column); strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// latestArrival returns the arrival date of the last populated row.
func latestArrival(grid *browser.Grid, rows int) (time.Time, bool, error) {
	var last string
	for row := 1; row <= rows; row++ {
		if v, ok := grid.Value(row, colDateOfArrival); ok && v != "" {
			last = v
		}
	}
	if last == "" {
		return time.Time{}, false, nil
	}
	t, err := paldate.ParseVendor(last)
	if err != nil {
		return time.Time{}, false, palerr.NewUnexpectedPageShapeError("read date of arrival", colDateOfArrival, err)
	}
	return t, true, nil
}

func flowOutcome(noData bool, err error) string {
	switch {
	case err != nil:
		return "failure"
	case noData:
		return "no_data"
	default:
		return "success"
	}
}
