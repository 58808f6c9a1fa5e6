// internal/qhse/qhse.go
package qhse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/client"
	"github.com/bogdanrbucur/pal-e3/internal/lookup"
	"github.com/bogdanrbucur/pal-e3/internal/paldate"
)

const (
	drillsPath  = "/pallpsq/LPSQ/Drill/GetDrillList"
	reportsPath = "/pallpsq/LPSQ/ComplianceOverview/GetReportList"

	// pscReportType selects port state control inspections in the
	// compliance overview.
	pscReportType = -1001
	pscPageSize   = 10000
)

// pscEpoch is the earliest inspection date requested.
var pscEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Directory resolves vessel names for the QHSE wrappers.
type Directory interface {
	VesselIDs(ctx context.Context, names []string) (string, error)
}

// Service wraps the LPSQ compliance endpoints.
type Service struct {
	poster client.Poster
	dir    Directory
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now as the end of the inspection window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a QHSE service.
func New(poster client.Poster, dir Directory, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{poster: poster, dir: dir, logger: logger.Named("qhse"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Drill is one logged drill.
type Drill struct {
	DrillName        string    `json:"DrillName"`
	ReferenceNo      string    `json:"ReferenceNo"`
	DrillCategoryID  lookup.ID `json:"DrillCategoryId"`
	DrillID          lookup.ID `json:"DrillId"`
	VesselObjectID   lookup.ID `json:"VesselObjectId"`
	Vessel           string    `json:"Vessel"`
	AlarmSoundedTime string    `json:"AlarmSoundedTime"`
	DrillStatus      string    `json:"DrillStatus"`
}

// Drills lists every drill logged on vessel.
func (s *Service) Drills(ctx context.Context, vessel string) ([]Drill, error) {
	vesselIDs, err := s.dir.VesselIDs(ctx, []string{vessel})
	if err != nil {
		return nil, err
	}

	form := client.NewForm().
		Add("sort", "").
		Add("group", "").
		Add("filter", "").
		Add("RefNo", "").
		Add("VesselIds", vesselIDs).
		Add("unitId", "").
		Add("CompanyId", "").
		Add("CategoryId", 1).
		Add("GroupId", "").
		Add("SubGroupId", "").
		Add("DrillId", "").
		Add("FromDate", "").
		Add("ToDate", "").
		Add("StatusId", "").
		Add("ManagerId", "").
		Add("MyVessels", false).
		Add("MyNotification", false)

	resp, err := s.poster.Post(ctx, client.Request{Path: drillsPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return nil, fmt.Errorf("list drills of %s: %w", vessel, err)
	}
	var drills []Drill
	if _, err := resp.DecodeData(&drills); err != nil {
		return nil, fmt.Errorf("list drills of %s: %w", vessel, err)
	}
	return drills, nil
}

// PSCReport is one port state control inspection.
type PSCReport struct {
	ID                   lookup.ID `json:"Id"`
	ReportTypeID         lookup.ID `json:"ReportTypeId"`
	ReportType           string    `json:"ReportType"`
	ReportSubTypeID      lookup.ID `json:"ReportSubTypeId"`
	ReportSubType        string    `json:"ReportSubType"`
	RefNo                string    `json:"RefNo"`
	InspectionDate       string    `json:"InspectionDate"`
	InspectorName        string    `json:"InspectorName"`
	UnitType             string    `json:"UnitType"`
	Unit                 string    `json:"Unit"`
	VesselStatus         string    `json:"VesselStatus"`
	NoOfDeficiencies     int       `json:"NoOfDeficiencies"`
	NoOfOpenDeficiencies int       `json:"NoOfOpenDeficiencie"`
	Status               string    `json:"Status"`
	Result               string    `json:"Result"`
	PSCMOU               string    `json:"pscmou"`
	ReportStatus         string    `json:"ReportStatus"`
	StatusDate           string    `json:"StatusDate"`
	Port                 string    `json:"Port"`
}

// PSCReports lists every port state control inspection of the fleet since
// 2000.
func (s *Service) PSCReports(ctx context.Context) ([]PSCReport, error) {
	form := client.NewForm().
		Add("pages", 1).
		Add("pageSize", pscPageSize).
		Add("TreeLevel", 2).
		Add("OffVslOptSelect", "VSL").
		Add("DateYearOptSelect", "DATE").
		Add("FromDate", paldate.FormatVendor(pscEpoch)).
		Add("Todate", paldate.FormatVendor(s.now())).
		Add("ReportViewType", "PSC").
		Add("IsPendApproval", "N").
		Add("ReportTypeId", pscReportType)

	resp, err := s.poster.Post(ctx, client.Request{Path: reportsPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return nil, fmt.Errorf("list PSC reports: %w", err)
	}
	var reports []PSCReport
	total, err := resp.DecodeData(&reports)
	if err != nil {
		return nil, fmt.Errorf("list PSC reports: %w", err)
	}
	s.logger.Debug("Read PSC reports.", zap.Int("total", total))
	return reports, nil
}
