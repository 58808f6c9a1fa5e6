// internal/reports/extractor_test.go
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/bogdanrbucur/pal-e3/internal/auth"
	"github.com/bogdanrbucur/pal-e3/internal/browser"
	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/mocks"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sentinel = "No items to display"

var reportDate = time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)

// legRow renders a 32 cell EU MRV row.
func legRow(leg, arrival string) []string {
	cells := make([]string, 32)
	cells[1] = leg
	cells[2] = "Antwerp {BEANR}"
	cells[3] = "BELGIUM"
	cells[4] = "01-Jan-2023 10:00"
	cells[5] = "Rotterdam {NLRTM}"
	cells[6] = "NETHERLANDS"
	cells[7] = arrival
	for i := 8; i < 32; i++ {
		cells[i] = "1,234"
	}
	cells[30] = "-"
	cells[31] = "12,345,678.5"
	return cells
}

func gridHTML(id string, rows [][]string, slots int, footer []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<div id="%s"><div class="k-grid-content"><table><tbody>`, id)
	for i := 0; i < slots; i++ {
		sb.WriteString("<tr>")
		if i < len(rows) {
			for _, c := range rows[i] {
				fmt.Fprintf(&sb, "<td>%s</td>", c)
			}
		} else {
			sb.WriteString(strings.Repeat("<td></td>", 32))
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString(`</tbody></table></div>`)
	if footer != nil {
		sb.WriteString(`<div class="k-grid-footer"><div class="k-grid-footer-wrap"><table><tbody><tr class="k-footer-template">`)
		for _, c := range footer {
			fmt.Fprintf(&sb, "<td><div><strong><span>%s</span></strong></div></td>", c)
		}
		sb.WriteString(`</tr></tbody></table></div></div>`)
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

func loggedIn(p *mocks.FakePage) *mocks.FakePage {
	p.Present[auth.UserNameSelector] = []bool{false}
	p.Jar = []browser.Cookie{{Name: ".SessionAuthCookie", Value: strings.Repeat("c", 192)}}
	return p
}

func euMRVPage() *mocks.FakePage {
	p := loggedIn(mocks.NewFakePage())
	sc := screens[EUMRV]
	p.Texts[sc.status()] = []string{sentinel, sentinel, "1 - 3 of 3 items"}
	p.Snapshots[sc.grid] = gridHTML("grdResult", [][]string{
		legRow("1", "03-Jan-2023 12:00"),
		legRow("2", "25-Jan-2023 06:00"),
		legRow("3", "20-Feb-2023 08:30"),
	}, 500, nil)
	return p
}

func imoDCSPage(lastArrival string) *mocks.FakePage {
	p := loggedIn(mocks.NewFakePage())
	sc := screens[IMODCS]
	p.Texts[sc.status()] = []string{"1 - 2 of 2 items"}

	row := func(arrival string) []string {
		cells := make([]string, 21)
		cells[6] = arrival
		return cells
	}
	footer := make([]string, 21)
	footer[7], footer[8], footer[9] = "1,000.5", "20", "3"
	footer[11], footer[12], footer[13] = "100", "-", "7"
	footer[15] = "12,400"
	footer[16], footer[17], footer[18], footer[19], footer[20] = "1,300", "48", "2", "1,298", "120"
	p.Snapshots[sc.grid] = gridHTML("grdResultIMO", [][]string{
		row("10-Jan-2023 10:00"),
		row(lastArrival),
	}, 2, footer)
	return p
}

type harness struct {
	launcher  *mocks.FakeLauncher
	extractor *Extractor
	report    config.ReportConfig
	browser   config.BrowserConfig
}

func newHarness(t *testing.T, newPage func() *mocks.FakePage) *harness {
	cfg := config.NewDefaultConfig()
	vendor := cfg.Vendor()
	vendor.URL = "https://pal.example.com"
	vendor.Username = "captain"
	vendor.Password = "s3cret"

	logger := zaptest.NewLogger(t)
	launcher := &mocks.FakeLauncher{NewPage: newPage}
	flow := auth.NewFlow(launcher, vendor, cfg.Browser(), auth.WithLogger(logger))
	source := &PerCall{Flow: flow, Logger: logger}
	return &harness{
		launcher:  launcher,
		extractor: NewExtractor(source, vendor.URL, cfg.Browser(), cfg.Report(), WithLogger(logger)),
		report:    cfg.Report(),
		browser:   cfg.Browser(),
	}
}

func TestEUMRV_ScrapesPopulatedRows(t *testing.T) {
	h := newHarness(t, euMRVPage)

	report, err := h.extractor.EUMRV(context.Background(), Query{Vessel: "CHEM MIA", Date: reportDate})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.False(t, report.NoData)
	require.Len(t, report.Legs, 3, "empty page slots are skipped")

	leg := report.Legs[0]
	assert.Equal(t, "1", leg.Leg)
	assert.Equal(t, "Antwerp {BEANR}", leg.DeparturePort)
	assert.Equal(t, "NETHERLANDS", leg.ArrivalCountry)
	assert.Equal(t, 1234.0, leg.SeaHFO)
	assert.Equal(t, 1234.0, leg.PortTotalCO2)
	assert.Equal(t, 0.0, leg.Cargo)
	assert.Equal(t, 12345678.5, leg.TransportWork)

	assert.Equal(t, Date{Canonical: "01012023", Display: "01.01.2023"}, report.StartDate)
	assert.Equal(t, Date{Canonical: "20022023", Display: "20.02.2023"}, report.EndDate)
	assert.Equal(t, 0, h.launcher.Open(), "the browser is closed after the report")

	calls := h.launcher.Pages()[0].Calls()
	assert.Contains(t, calls, "goto https://pal.example.com/palvoyage/VoyagePAL/EUMRVLogReport")
	assert.Contains(t, calls, "typetext CHEM MIA")
	assert.Contains(t, calls, "type #dtpFromDate=01012023")
	assert.Contains(t, calls, "type #dtpToDate=27022023", "the end date is the report date minus the margin")
	assert.Contains(t, calls, "click #btnShow")
	assert.Contains(t, calls, "keys ArrowDown,ArrowDown,Enter")
	assert.NotContains(t, calls, "keys Tab,Tab,ArrowRight,ArrowRight")
}

func TestEUMRV_FromPreviousYear(t *testing.T) {
	h := newHarness(t, euMRVPage)
	report, err := h.extractor.EUMRV(context.Background(), Query{Vessel: "CHEM MIA", Date: reportDate, FromPreviousYear: true})
	require.NoError(t, err)
	assert.Equal(t, "01012022", report.StartDate.Canonical)
}

func TestEUMRV_TimeoutIsNoData(t *testing.T) {
	h := newHarness(t, func() *mocks.FakePage {
		p := euMRVPage()
		p.Texts[screens[EUMRV].status()] = []string{sentinel}
		return p
	})

	report, err := h.extractor.EUMRV(context.Background(), Query{Vessel: "CHEM MIA", Date: reportDate})
	require.NoError(t, err, "an empty report is not a failure")
	require.NotNil(t, report)
	assert.True(t, report.NoData)
	assert.Empty(t, report.Legs)
	assert.Equal(t, 0, h.launcher.Open())

	page := h.launcher.Pages()[0]
	budget := time.Duration(h.report.PollAttempts-1) * h.report.PollInterval
	assert.GreaterOrEqual(t, page.Slept(), budget)
	assert.NotContains(t, page.Calls(), "snapshot #grdResult")
}

func shortThenFullPage(settleAfter int) func() *mocks.FakePage {
	return func() *mocks.FakePage {
		p := loggedIn(mocks.NewFakePage())
		sc := screens[EUMRV]
		rows := func(n int) [][]string {
			out := make([][]string, n)
			for i := range out {
				out[i] = legRow(fmt.Sprint(i+1), "03-Jan-2023 12:00")
			}
			return out
		}
		p.Texts[sc.status()] = []string{sentinel, "1 - 10 of 25 items", "1 - 10 of 25 items", "1 - 25 of 25 items"}
		p.Snapshots[sc.grid] = gridHTML("grdResult", rows(10), 10, nil)

		var mu sync.Mutex
		reads := 0
		p.OnAction = func(call string) {
			if call != "text "+sc.status() {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			reads++
			if reads == settleAfter {
				p.Snapshots[sc.grid] = gridHTML("grdResult", rows(25), 500, nil)
			}
		}
		return p
	}
}

func TestEUMRV_WaitsForExpandedGrid(t *testing.T) {
	h := newHarness(t, shortThenFullPage(4))

	report, err := h.extractor.EUMRV(context.Background(), Query{Vessel: "CHEM MIA", Date: reportDate})
	require.NoError(t, err)
	assert.Len(t, report.Legs, 25, "the snapshot is taken once the pager shows every item")
	assert.Equal(t, "25", report.Legs[24].Leg)
	assert.Equal(t, 0, h.launcher.Open())
}

func TestEUMRV_GridNeverExpandsIsShapeError(t *testing.T) {
	h := newHarness(t, func() *mocks.FakePage {
		p := euMRVPage()
		p.Texts[screens[EUMRV].status()] = []string{sentinel, "1 - 10 of 25 items"}
		return p
	})

	_, err := h.extractor.EUMRV(context.Background(), Query{Vessel: "CHEM MIA", Date: reportDate})
	var shapeErr *palerr.UnexpectedPageShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, screens[EUMRV].status(), shapeErr.Selector)
	assert.NotContains(t, h.launcher.Pages()[0].Calls(), "snapshot #grdResult")
	assert.Equal(t, 0, h.launcher.Open())
}

func TestPageComplete(t *testing.T) {
	tests := []struct {
		label    string
		pageSize int
		want     bool
	}{
		{"1 - 25 of 25 items", 500, true},
		{"1 - 10 of 25 items", 500, false},
		{"1 - 500 of 1,200 items", 500, true},
		{"1 - 1,200 of 1,200 items", 500, true},
		{"1 - 10 of 1,200 items", 500, false},
		{"No items to display", 500, false},
		{"", 500, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, pageComplete(tt.label, tt.pageSize))
		})
	}
}

func TestEUMRV_KeepsRowWithBlankLeg(t *testing.T) {
	h := newHarness(t, func() *mocks.FakePage {
		p := euMRVPage()
		p.Snapshots[screens[EUMRV].grid] = gridHTML("grdResult", [][]string{
			legRow("1", "03-Jan-2023 12:00"),
			legRow("", "25-Jan-2023 06:00"),
			legRow("3", "20-Feb-2023 08:30"),
		}, 500, nil)
		return p
	})

	report, err := h.extractor.EUMRV(context.Background(), Query{Vessel: "CHEM MIA", Date: reportDate})
	require.NoError(t, err)
	require.Len(t, report.Legs, 3, "a row with data is kept even when its leg cell is blank")
	assert.Empty(t, report.Legs[1].Leg)
	assert.Equal(t, "Antwerp {BEANR}", report.Legs[1].DeparturePort)
}

func TestIMODCS_ClipsEndDateToReportCutoff(t *testing.T) {
	h := newHarness(t, func() *mocks.FakePage { return imoDCSPage("05-Mar-2023 10:00") })

	report, err := h.extractor.IMODCS(context.Background(), Query{Vessel: "CHEM MIA", Date: reportDate})
	require.NoError(t, err)
	assert.Equal(t, "27022023", report.EndDate.Canonical, "a later arrival is clipped to the cutoff")
	assert.Equal(t, "27.02.2023", report.EndDate.Display)

	assert.Equal(t, 1000.5, report.SeaHFO)
	assert.Equal(t, 0.0, report.PortLFO)
	assert.Equal(t, 1100.5, report.TotalHFO)
	assert.Equal(t, 20.0, report.TotalLFO)
	assert.Equal(t, 10.0, report.TotalMDO)
	assert.Equal(t, 12400.0, report.Distance)
	assert.Equal(t, 1300.0, report.HoursAtSea)
	assert.Equal(t, 48.0, report.HoursAtAnchor)
	assert.Equal(t, 2.0, report.HoursDrifting)
	assert.Equal(t, 1298.0, report.HoursSteaming)
	assert.Equal(t, 120.0, report.HoursInPort)

	calls := h.launcher.Pages()[0].Calls()
	assert.Contains(t, calls, "keys Tab,Tab,ArrowRight,ArrowRight")
	assert.Contains(t, calls, "type #dtpFromDatedcs=01012023")
	assert.Contains(t, calls, "click #btnShow0")
	assert.Equal(t, 0, h.launcher.Open())
}

func TestIMODCS_KeepsEarlierArrival(t *testing.T) {
	h := newHarness(t, func() *mocks.FakePage { return imoDCSPage("15-Feb-2023 10:00") })

	report, err := h.extractor.IMODCS(context.Background(), Query{Vessel: "CHEM MIA", Date: reportDate})
	require.NoError(t, err)
	assert.Equal(t, "15022023", report.EndDate.Canonical)
}

func TestExtractor_RejectsBadInputBeforeLaunch(t *testing.T) {
	h := newHarness(t, euMRVPage)

	_, err := h.extractor.EUMRV(context.Background(), Query{Vessel: " ", Date: reportDate})
	assert.Error(t, err)

	_, err = h.extractor.IMODCS(context.Background(), Query{Vessel: "CHEM MIA", Date: time.Date(1971, 1, 2, 0, 0, 0, 0, time.UTC)})
	assert.Error(t, err)

	_, err = h.extractor.EUMRV(context.Background(), Query{Vessel: "CHEM MIA", Date: time.Date(2050, 1, 3, 0, 0, 0, 0, time.UTC)})
	assert.Error(t, err)

	assert.Equal(t, 0, h.launcher.Launched())
}

func TestExtractor_MissingElementIsShapeError(t *testing.T) {
	h := newHarness(t, func() *mocks.FakePage {
		p := euMRVPage()
		p.Missing[vesselPickerSelector] = true
		return p
	})

	_, err := h.extractor.EUMRV(context.Background(), Query{Vessel: "CHEM MIA", Date: reportDate})
	var shapeErr *palerr.UnexpectedPageShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, vesselPickerSelector, shapeErr.Selector)
	assert.Equal(t, 0, h.launcher.Open())
}

func TestExtractor_MalformedNumberIsShapeError(t *testing.T) {
	h := newHarness(t, func() *mocks.FakePage {
		p := euMRVPage()
		row := legRow("1", "03-Jan-2023 12:00")
		row[8] = "n/a"
		p.Snapshots[screens[EUMRV].grid] = gridHTML("grdResult", [][]string{row}, 1, nil)
		return p
	})

	_, err := h.extractor.EUMRV(context.Background(), Query{Vessel: "CHEM MIA", Date: reportDate})
	var shapeErr *palerr.UnexpectedPageShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestExtractor_CancellationTearsDownBrowser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, func() *mocks.FakePage {
		p := euMRVPage()
		p.OnAction = func(call string) {
			if call == "click #btnShow" {
				cancel()
			}
		}
		return p
	})

	_, err := h.extractor.EUMRV(ctx, Query{Vessel: "CHEM MIA", Date: reportDate})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, h.launcher.Launched())
	assert.Equal(t, 0, h.launcher.Open())
}

func TestExtractor_LoginFailureIsAuthenticationError(t *testing.T) {
	h := newHarness(t, func() *mocks.FakePage {
		p := euMRVPage()
		p.Jar = nil
		return p
	})

	_, err := h.extractor.IMODCS(context.Background(), Query{Vessel: "CHEM MIA", Date: reportDate})
	var authErr *palerr.AuthenticationError
	assert.True(t, errors.As(err, &authErr))
	assert.Equal(t, 0, h.launcher.Open())
}

func TestMany_KeepsOrderAndBoundsBrowsers(t *testing.T) {
	h := newHarness(t, euMRVPage)
	vessels := []string{"CHEM MIA", "CHEM HOUSTON", "CHEM ALYA"}

	reports, err := h.extractor.EUMRVMany(context.Background(), vessels, Query{Date: reportDate})
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for i, r := range reports {
		assert.Equal(t, vessels[i], r.Vessel)
		assert.Len(t, r.Legs, 3)
	}
	assert.Equal(t, 3, h.launcher.Launched())
	assert.Equal(t, 0, h.launcher.Open())

	_, err = h.extractor.IMODCSMany(context.Background(), []string{"CHEM MIA", ""}, Query{Date: reportDate})
	assert.Error(t, err)
	assert.Equal(t, 3, h.launcher.Launched(), "validation happens before any launch")
}
