// internal/reports/report.go
package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bogdanrbucur/pal-e3/internal/paldate"
)

// Kind selects the voyage consumption report.
type Kind int

const (
	// EUMRV is the per-leg EU MRV log report.
	EUMRV Kind = iota
	// IMODCS is the aggregated IMO DCS sub-report.
	IMODCS
)

func (k Kind) String() string {
	switch k {
	case EUMRV:
		return "eumrv"
	case IMODCS:
		return "imodcs"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "eumrv" or "imodcs" in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eumrv", "eu-mrv", "eu_mrv":
		return EUMRV, nil
	case "imodcs", "imo-dcs", "imo_dcs":
		return IMODCS, nil
	}
	return 0, fmt.Errorf("unknown report kind %q", s)
}

// Query describes one report extraction.
type Query struct {
	Vessel string
	// Date is the caller's report date; the configured margin is subtracted
	// before it is used as the end of the range.
	Date time.Time
	// FromPreviousYear starts the range on 1 January of the previous year.
	FromPreviousYear bool
}

// Date carries a report date in both textual forms callers use.
type Date struct {
	Canonical string `json:"canonical"` // DDMMYYYY
	Display   string `json:"display"`   // DD.MM.YYYY
}

// NewDate renders t in both forms.
func NewDate(t time.Time) Date {
	return Date{Canonical: paldate.FormatInput(t), Display: paldate.FormatDisplay(t)}
}

// VoyageLeg is one EU MRV row.
type VoyageLeg struct {
	Leg              string `json:"leg"`
	DeparturePort    string `json:"departure_port"`
	DepartureCountry string `json:"departure_country"`
	DepartureTime    string `json:"departure_time"`
	ArrivalPort      string `json:"arrival_port"`
	ArrivalCountry   string `json:"arrival_country"`
	ArrivalTime      string `json:"arrival_time"`

	SeaHFO      float64 `json:"sea_hfo"`
	SeaHFOCO2   float64 `json:"sea_hfo_co2"`
	SeaLFO      float64 `json:"sea_lfo"`
	SeaLFOCO2   float64 `json:"sea_lfo_co2"`
	SeaMDO      float64 `json:"sea_mdo"`
	SeaMDOCO2   float64 `json:"sea_mdo_co2"`
	SeaTotal    float64 `json:"sea_total"`
	SeaTotalCO2 float64 `json:"sea_total_co2"`

	PortHFO      float64 `json:"port_hfo"`
	PortHFOCO2   float64 `json:"port_hfo_co2"`
	PortLFO      float64 `json:"port_lfo"`
	PortLFOCO2   float64 `json:"port_lfo_co2"`
	PortMDO      float64 `json:"port_mdo"`
	PortMDOCO2   float64 `json:"port_mdo_co2"`
	PortTotal    float64 `json:"port_total"`
	PortTotalCO2 float64 `json:"port_total_co2"`

	Distance        float64 `json:"distance"`
	TimeAtSea       float64 `json:"time_at_sea"`
	TimeAtAnchorage float64 `json:"time_at_anchorage"`
	TimeDrifting    float64 `json:"time_drifting"`
	TimeNavigation  float64 `json:"time_navigation"`
	TimeSteaming    float64 `json:"time_steaming"`
	Cargo           float64 `json:"cargo"`
	TransportWork   float64 `json:"transport_work"`
}

// EUMRVReport is the EU MRV result for one vessel and period. NoData is set
// when the vendor showed nothing within the polling budget.
type EUMRVReport struct {
	Vessel    string      `json:"vessel"`
	StartDate Date        `json:"start_date"`
	EndDate   Date        `json:"end_date"`
	Legs      []VoyageLeg `json:"legs"`
	NoData    bool        `json:"no_data"`
}

// IMODCSReport is the IMO DCS aggregate for one vessel and period.
type IMODCSReport struct {
	Vessel    string `json:"vessel"`
	StartDate Date   `json:"start_date"`
	EndDate   Date   `json:"end_date"`
	NoData    bool   `json:"no_data"`

	Distance float64 `json:"distance"`
	SeaHFO   float64 `json:"sea_hfo"`
	SeaLFO   float64 `json:"sea_lfo"`
	SeaMDO   float64 `json:"sea_mdo"`
	PortHFO  float64 `json:"port_hfo"`
	PortLFO  float64 `json:"port_lfo"`
	PortMDO  float64 `json:"port_mdo"`
	TotalHFO float64 `json:"total_hfo"`
	TotalLFO float64 `json:"total_lfo"`
	TotalMDO float64 `json:"total_mdo"`

	HoursAtSea    float64 `json:"hours_at_sea"`
	HoursAtAnchor float64 `json:"hours_at_anchor"`
	HoursDrifting float64 `json:"hours_drifting"`
	HoursSteaming float64 `json:"hours_steaming"`
	HoursInPort   float64 `json:"hours_in_port"`
}

// ParseNumber converts the grid's comma grouped text into a number. Blank
// cells and "-" read as zero.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return v, nil
}

// ClipEndDate returns arrival, or cutoff when the arrival is later.
func ClipEndDate(arrival, cutoff time.Time) time.Time {
	if arrival.After(cutoff) {
		return cutoff
	}
	return arrival
}
