// internal/qhse/qhse_test.go
package qhse

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bogdanrbucur/pal-e3/internal/client"
	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/lookup"
	"github.com/bogdanrbucur/pal-e3/internal/mocks"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

type staticSource struct{}

func (staticSource) FetchVessels(context.Context) ([]lookup.Vessel, error) {
	return []lookup.Vessel{{VesselID: "246049", VesselObjectID: "9001", VesselName: "CHEM MIA"}}, nil
}

func (staticSource) FetchUsers(context.Context) ([]lookup.User, error) { return nil, nil }

func newService(t *testing.T, poster client.Poster) *Service {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := func() time.Time { return time.Date(2024, time.May, 7, 9, 0, 0, 0, time.UTC) }
	return New(poster, lookup.NewCache(staticSource{}, logger, nil), logger, WithClock(clock))
}

func TestDrills(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, drillsPath, r.URL.Path)
		assert.Equal(t, "246049", r.FormValue("VesselIds"))
		assert.Equal(t, "1", r.FormValue("CategoryId"))
		assert.Equal(t, "false", r.FormValue("MyVessels"))
		_, _ = io.WriteString(w, `{"Data":[{"DrillName":"Fire Drill","ReferenceNo":"FD-01","DrillId":12,"VesselObjectId":9001,"Vessel":"CHEM MIA","DrillStatus":"Closed"}],"Total":1}`)
	}))
	defer server.Close()

	cfg := config.NewDefaultConfig().Vendor()
	cfg.URL = server.URL
	cfg.RateLimit = 0
	cfg.RequestTimeout = 5 * time.Second

	drills, err := newService(t, client.New(cfg, client.WithToken("tok"))).Drills(context.Background(), "chem mia")
	require.NoError(t, err)
	require.Len(t, drills, 1)
	assert.Equal(t, "Fire Drill", drills[0].DrillName)
	assert.Equal(t, lookup.ID("12"), drills[0].DrillID)
}

func TestDrills_UnknownVessel(t *testing.T) {
	poster := new(mocks.MockPoster)
	_, err := newService(t, poster).Drills(context.Background(), "GHOST SHIP")

	var nf *palerr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "vessel", nf.Kind)
	poster.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
}

func TestPSCReports(t *testing.T) {
	poster := new(mocks.MockPoster)
	defer poster.AssertExpectations(t)
	poster.On("Post", mock.Anything, mock.MatchedBy(func(req client.Request) bool {
		from, _ := req.Form.Get("FromDate")
		to, _ := req.Form.Get("Todate")
		kind, _ := req.Form.Get("ReportTypeId")
		return req.Path == reportsPath && from == "01-Jan-2000" && to == "07-May-2024" && kind == "-1001"
	})).Return(mocks.JSONResponse(reportsPath,
		`{"Data":[{"Id":1,"ReportType":"PSC","Unit":"CHEM MIA","NoOfDeficiencies":3,"NoOfOpenDeficiencie":1,"pscmou":"Paris MOU","Port":"Antwerp"}],"Total":1}`), nil)

	reports, err := newService(t, poster).PSCReports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 3, reports[0].NoOfDeficiencies)
	assert.Equal(t, 1, reports[0].NoOfOpenDeficiencies)
	assert.Equal(t, "Paris MOU", reports[0].PSCMOU)
}

func TestPSCReports_MissingData(t *testing.T) {
	poster := new(mocks.MockPoster)
	poster.On("Post", mock.Anything, mocks.ForPath(reportsPath)).Return(mocks.JSONResponse(reportsPath, `{"Total":0}`), nil)

	_, err := newService(t, poster).PSCReports(context.Background())
	assert.ErrorIs(t, err, palerr.ErrNoData)
}
