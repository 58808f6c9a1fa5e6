// internal/reports/columns.go
package reports

import "github.com/bogdanrbucur/pal-e3/internal/browser"

// Report screen markup. Every positional coupling to the vendor grid lives in
// this file.
const (
	reportPath = "/palvoyage/VoyagePAL/EUMRVLogReport"

	vesselPickerSelector = "#DivPerformanceOverView > #divHeader > table > tbody > tr > .bsm-common-content"

	pagerInfoSuffix = " > div.k-pager-wrap.k-grid-pager.k-widget > span.k-pager-info.k-label"
	pageSizeSuffix  = " > div.k-pager-wrap.k-grid-pager.k-widget > span.k-pager-sizes.k-label > span > span > span.k-select"
)

// screen holds the selectors of one report variant.
type screen struct {
	from    string
	to      string
	trigger string
	grid    string
}

func (s screen) status() string   { return s.grid + pagerInfoSuffix }
func (s screen) pageSize() string { return s.grid + pageSizeSuffix }

var screens = map[Kind]screen{
	EUMRV:  {from: "#dtpFromDate", to: "#dtpToDate", trigger: "#btnShow", grid: "#grdResult"},
	IMODCS: {from: "#dtpFromDatedcs", to: "#dtpToDatedcs", trigger: "#btnShow0", grid: "#grdResultIMO"},
}

// Logical column names.
const (
	colLeg              = "leg"
	colDeparturePort    = "departure_port"
	colDepartureCountry = "departure_country"
	colDepartureTime    = "departure_time"
	colArrivalPort      = "arrival_port"
	colArrivalCountry   = "arrival_country"
	colArrivalTime      = "arrival_time"

	colSeaHFO      = "sea_hfo"
	colSeaHFOCO2   = "sea_hfo_co2"
	colSeaLFO      = "sea_lfo"
	colSeaLFOCO2   = "sea_lfo_co2"
	colSeaMDO      = "sea_mdo"
	colSeaMDOCO2   = "sea_mdo_co2"
	colSeaTotal    = "sea_total"
	colSeaTotalCO2 = "sea_total_co2"

	colPortHFO      = "port_hfo"
	colPortHFOCO2   = "port_hfo_co2"
	colPortLFO      = "port_lfo"
	colPortLFOCO2   = "port_lfo_co2"
	colPortMDO      = "port_mdo"
	colPortMDOCO2   = "port_mdo_co2"
	colPortTotal    = "port_total"
	colPortTotalCO2 = "port_total_co2"

	colDistance        = "distance"
	colTimeAtSea       = "time_at_sea"
	colTimeAtAnchorage = "time_at_anchorage"
	colTimeDrifting    = "time_drifting"
	colTimeNavigation  = "time_navigation"
	colTimeSteaming    = "time_steaming"
	colCargo           = "cargo"
	colTransportWork   = "transport_work"

	colDateOfArrival = "date_of_arrival"
	colHoursInPort   = "hours_in_port"
)

// euMRVColumns maps the EU MRV row cells.
var euMRVColumns = browser.ColumnMap{
	colLeg:              2,
	colDeparturePort:    3,
	colDepartureCountry: 4,
	colDepartureTime:    5,
	colArrivalPort:      6,
	colArrivalCountry:   7,
	colArrivalTime:      8,
	colSeaHFO:           9,
	colSeaHFOCO2:        10,
	colSeaLFO:           11,
	colSeaLFOCO2:        12,
	colSeaMDO:           13,
	colSeaMDOCO2:        14,
	colSeaTotal:         15,
	colSeaTotalCO2:      16,
	colPortHFO:          17,
	colPortHFOCO2:       18,
	colPortLFO:          19,
	colPortLFOCO2:       20,
	colPortMDO:          21,
	colPortMDOCO2:       22,
	colPortTotal:        23,
	colPortTotalCO2:     24,
	colDistance:         25,
	colTimeAtSea:        26,
	colTimeAtAnchorage:  27,
	colTimeDrifting:     28,
	colTimeNavigation:   29,
	colTimeSteaming:     30,
	colCargo:            31,
	colTransportWork:    32,
}

// imoDCSColumns maps the IMO DCS footer aggregates and the arrival column.
var imoDCSColumns = browser.ColumnMap{
	colDateOfArrival:   7,
	colSeaHFO:          8,
	colSeaLFO:          9,
	colSeaMDO:          10,
	colPortHFO:         12,
	colPortLFO:         13,
	colPortMDO:         14,
	colDistance:        16,
	colTimeAtSea:       17,
	colTimeAtAnchorage: 18,
	colTimeDrifting:    19,
	colTimeSteaming:    20,
	colHoursInPort:     21,
}

var legText = []struct {
	column string
	field  func(*VoyageLeg) *string
}{
	{colLeg, func(l *VoyageLeg) *string { return &l.Leg }},
	{colDeparturePort, func(l *VoyageLeg) *string { return &l.DeparturePort }},
	{colDepartureCountry, func(l *VoyageLeg) *string { return &l.DepartureCountry }},
	{colDepartureTime, func(l *VoyageLeg) *string { return &l.DepartureTime }},
	{colArrivalPort, func(l *VoyageLeg) *string { return &l.ArrivalPort }},
	{colArrivalCountry, func(l *VoyageLeg) *string { return &l.ArrivalCountry }},
	{colArrivalTime, func(l *VoyageLeg) *string { return &l.ArrivalTime }},
}

var legNumbers = []struct {
	column string
	field  func(*VoyageLeg) *float64
}{
	{colSeaHFO, func(l *VoyageLeg) *float64 { return &l.SeaHFO }},
	{colSeaHFOCO2, func(l *VoyageLeg) *float64 { return &l.SeaHFOCO2 }},
	{colSeaLFO, func(l *VoyageLeg) *float64 { return &l.SeaLFO }},
	{colSeaLFOCO2, func(l *VoyageLeg) *float64 { return &l.SeaLFOCO2 }},
	{colSeaMDO, func(l *VoyageLeg) *float64 { return &l.SeaMDO }},
	{colSeaMDOCO2, func(l *VoyageLeg) *float64 { return &l.SeaMDOCO2 }},
	{colSeaTotal, func(l *VoyageLeg) *float64 { return &l.SeaTotal }},
	{colSeaTotalCO2, func(l *VoyageLeg) *float64 { return &l.SeaTotalCO2 }},
	{colPortHFO, func(l *VoyageLeg) *float64 { return &l.PortHFO }},
	{colPortHFOCO2, func(l *VoyageLeg) *float64 { return &l.PortHFOCO2 }},
	{colPortLFO, func(l *VoyageLeg) *float64 { return &l.PortLFO }},
	{colPortLFOCO2, func(l *VoyageLeg) *float64 { return &l.PortLFOCO2 }},
	{colPortMDO, func(l *VoyageLeg) *float64 { return &l.PortMDO }},
	{colPortMDOCO2, func(l *VoyageLeg) *float64 { return &l.PortMDOCO2 }},
	{colPortTotal, func(l *VoyageLeg) *float64 { return &l.PortTotal }},
	{colPortTotalCO2, func(l *VoyageLeg) *float64 { return &l.PortTotalCO2 }},
	{colDistance, func(l *VoyageLeg) *float64 { return &l.Distance }},
	{colTimeAtSea, func(l *VoyageLeg) *float64 { return &l.TimeAtSea }},
	{colTimeAtAnchorage, func(l *VoyageLeg) *float64 { return &l.TimeAtAnchorage }},
	{colTimeDrifting, func(l *VoyageLeg) *float64 { return &l.TimeDrifting }},
	{colTimeNavigation, func(l *VoyageLeg) *float64 { return &l.TimeNavigation }},
	{colTimeSteaming, func(l *VoyageLeg) *float64 { return &l.TimeSteaming }},
	{colCargo, func(l *VoyageLeg) *float64 { return &l.Cargo }},
	{colTransportWork, func(l *VoyageLeg) *float64 { return &l.TransportWork }},
}

var dcsFooter = []struct {
	column string
	field  func(*IMODCSReport) *float64
}{
	{colSeaHFO, func(r *IMODCSReport) *float64 { return &r.SeaHFO }},
	{colSeaLFO, func(r *IMODCSReport) *float64 { return &r.SeaLFO }},
	{colSeaMDO, func(r *IMODCSReport) *float64 { return &r.SeaMDO }},
	{colPortHFO, func(r *IMODCSReport) *float64 { return &r.PortHFO }},
	{colPortLFO, func(r *IMODCSReport) *float64 { return &r.PortLFO }},
	{colPortMDO, func(r *IMODCSReport) *float64 { return &r.PortMDO }},
	{colDistance, func(r *IMODCSReport) *float64 { return &r.Distance }},
	{colTimeAtSea, func(r *IMODCSReport) *float64 { return &r.HoursAtSea }},
	{colTimeAtAnchorage, func(r *IMODCSReport) *float64 { return &r.HoursAtAnchor }},
	{colTimeDrifting, func(r *IMODCSReport) *float64 { return &r.HoursDrifting }},
	{colTimeSteaming, func(r *IMODCSReport) *float64 { return &r.HoursSteaming }},
	{colHoursInPort, func(r *IMODCSReport) *float64 { return &r.HoursInPort }},
}
