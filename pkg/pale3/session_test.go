// pkg/pale3/session_test.go
package pale3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/bogdanrbucur/pal-e3/internal/auth"
	"github.com/bogdanrbucur/pal-e3/internal/browser"
	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/mocks"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
	"github.com/bogdanrbucur/pal-e3/internal/reports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"))
}

const (
	euMRVStatus = "#grdResult > div.k-pager-wrap.k-grid-pager.k-widget > span.k-pager-info.k-label"
	noItems     = "No items to display"
)

var token = strings.Repeat("t", 192)

// emptyReportPage logs in and then never shows any report rows.
func emptyReportPage() *mocks.FakePage {
	p := mocks.NewFakePage()
	p.Present[auth.UserNameSelector] = []bool{false}
	p.Jar = []browser.Cookie{{Name: ".SessionAuthCookie", Value: token}}
	p.Texts[euMRVStatus] = []string{noItems}
	return p
}

func testConfig(url string, pooled bool) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.SetVendorCredentials(url, "captain", "s3cret")
	cfg.VendorCfg.RateLimit = 0
	cfg.VendorCfg.RequestTimeout = 5 * time.Second
	cfg.ReportCfg.PollAttempts = 3
	cfg.SetPoolEnabled(pooled)
	return cfg
}

func newSession(t *testing.T, cfg config.Interface, launcher *mocks.FakeLauncher, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLauncher(launcher), WithLogger(zaptest.NewLogger(t))}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestNew_RejectsIncompleteConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	_, err := New(cfg, WithLauncher(&mocks.FakeLauncher{}))
	assert.Error(t, err)
}

func TestSession_RequiresLogin(t *testing.T) {
	launcher := &mocks.FakeLauncher{NewPage: emptyReportPage}
	s := newSession(t, testConfig("https://pal.example.com", false), launcher)
	ctx := context.Background()

	_, err := s.Vessels(ctx)
	assert.ErrorIs(t, err, palerr.ErrNotLoggedIn)
	_, err = s.Users(ctx)
	assert.ErrorIs(t, err, palerr.ErrNotLoggedIn)
	_, err = s.ResolveUsers(ctx, []string{"geva"})
	assert.ErrorIs(t, err, palerr.ErrNotLoggedIn)
	_, err = s.VoyageConsumption(ctx, reports.EUMRV, "CHEM MIA", time.Now(), ReportOptions{})
	assert.ErrorIs(t, err, palerr.ErrNotLoggedIn)
	_, err = s.Purchase().CycleTemplates(ctx)
	assert.ErrorIs(t, err, palerr.ErrNotLoggedIn)
	_, err = s.QDMS().FolderDocuments(ctx, "42")
	assert.ErrorIs(t, err, palerr.ErrNotLoggedIn)

	assert.Zero(t, launcher.Launched(), "no browser before Login")
	assert.Empty(t, s.Cookie())
}

func TestSession_LoginThenVendorCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ".SessionAuthCookie="+token, r.Header.Get("Cookie"))
		_, _ = io.WriteString(w, `{"Data":[{"Id":1,"VesselId":246049,"VesselObjectId":9001,"VesselName":"CHEM MIA"}],"Total":1}`)
	}))
	defer server.Close()

	launcher := &mocks.FakeLauncher{NewPage: emptyReportPage}
	s := newSession(t, testConfig(server.URL, false), launcher)

	require.NoError(t, s.Login(context.Background()))
	assert.Equal(t, token, s.Cookie())
	assert.Zero(t, launcher.Open(), "the login browser is closed")

	vessels, err := s.Vessels(context.Background())
	require.NoError(t, err)
	require.Len(t, vessels, 1)
	assert.Equal(t, "CHEM MIA", vessels[0].VesselName)
}

func TestSession_LoginFailureKeepsSessionLoggedOut(t *testing.T) {
	launcher := &mocks.FakeLauncher{NewPage: func() *mocks.FakePage {
		p := emptyReportPage()
		p.Jar = []browser.Cookie{{Name: ".SessionAuthCookie", Value: "short"}}
		return p
	}}
	s := newSession(t, testConfig("https://pal.example.com", false), launcher)

	err := s.Login(context.Background())
	var authErr *palerr.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, launcher.Open())

	_, err = s.Vessels(context.Background())
	assert.ErrorIs(t, err, palerr.ErrNotLoggedIn)
}

func TestSession_VoyageConsumption(t *testing.T) {
	date := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		pooled   bool
		launched int
		open     int
	}{
		// One login browser plus one browser per report.
		{"per call", false, 3, 0},
		// The pooled report browser is reused and stays open until Close.
		{"pooled", true, 2, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			launcher := &mocks.FakeLauncher{NewPage: emptyReportPage}
			s, err := New(testConfig("https://pal.example.com", tc.pooled),
				WithLauncher(launcher), WithLogger(zaptest.NewLogger(t)))
			require.NoError(t, err)
			require.NoError(t, s.Login(context.Background()))

			for i := 0; i < 2; i++ {
				r, err := s.VoyageConsumption(context.Background(), reports.EUMRV, "CHEM MIA", date, ReportOptions{})
				require.NoError(t, err)
				assert.True(t, r.NoData())
				require.NotNil(t, r.EUMRV)
				assert.Equal(t, "01012023", r.EUMRV.StartDate.Canonical)
			}
			assert.Equal(t, tc.launched, launcher.Launched())
			assert.Equal(t, tc.open, launcher.Open())

			require.NoError(t, s.Close(context.Background()))
			assert.Zero(t, launcher.Open(), "Close tears down pooled browsers")
			require.NoError(t, s.Close(context.Background()))
		})
	}
}

func TestSession_VoyageConsumptionMany(t *testing.T) {
	launcher := &mocks.FakeLauncher{NewPage: emptyReportPage}
	s := newSession(t, testConfig("https://pal.example.com", false), launcher)
	require.NoError(t, s.Login(context.Background()))

	date := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	rs, err := s.VoyageConsumptionMany(context.Background(), reports.EUMRV, []string{"CHEM MIA", "CHEM HOUSTON"}, date, ReportOptions{FromPreviousYear: true})
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "CHEM MIA", rs[0].EUMRV.Vessel)
	assert.Equal(t, "CHEM HOUSTON", rs[1].EUMRV.Vessel)
	assert.Equal(t, "01012022", rs[1].EUMRV.StartDate.Canonical)
	assert.Zero(t, launcher.Open())
}

func TestSession_ClosedRejectsLogin(t *testing.T) {
	s := newSession(t, testConfig("https://pal.example.com", false), &mocks.FakeLauncher{NewPage: emptyReportPage})
	require.NoError(t, s.Close(context.Background()))
	assert.Error(t, s.Login(context.Background()))
}

func TestSession_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	launcher := &mocks.FakeLauncher{NewPage: emptyReportPage}
	s := newSession(t, testConfig("https://pal.example.com", false), launcher, WithRegisterer(reg))
	require.NoError(t, s.Login(context.Background()))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "pale3_browser_flow_duration_seconds")
}
