// Package paldate converts between the date encodings used by the PAL e3 UI
// and its POST endpoints, and derives report windows.
//
// Three encodings are in play:
//   - input:   DDMMYYYY, typed into the UI date pickers
//   - vendor:  DD-MMM-YYYY, used in POST bodies and grid cells (cells may add " HH:mm")
//   - display: DD.MM.YYYY, used in report results
package paldate

import (
	"fmt"
	"strings"
	"time"
)

const (
	InputLayout   = "02012006"
	VendorLayout  = "02-Jan-2006"
	DisplayLayout = "02.01.2006"
)

var (
	// MinDate and MaxDate are exclusive bounds for any report date.
	MinDate = time.Date(1971, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxDate = time.Date(2050, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// FormatInput renders t as DDMMYYYY.
func FormatInput(t time.Time) string { return t.Format(InputLayout) }

// FormatVendor renders t as DD-MMM-YYYY.
func FormatVendor(t time.Time) string { return t.Format(VendorLayout) }

// FormatDisplay renders t as DD.MM.YYYY.
func FormatDisplay(t time.Time) string { return t.Format(DisplayLayout) }

// ParseInput parses a DDMMYYYY string.
func ParseInput(s string) (time.Time, error) {
	if len(s) != len(InputLayout) {
		return time.Time{}, fmt.Errorf("invalid input date %q: want DDMMYYYY", s)
	}
	t, err := time.Parse(InputLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid input date %q: %w", s, err)
	}
	return t, nil
}

// ParseVendor parses DD-MMM-YYYY, ignoring any trailing time of day.
func ParseVendor(s string) (time.Time, error) {
	s = ShortDate(strings.TrimSpace(s))
	t, err := time.Parse(VendorLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid vendor date %q: %w", s, err)
	}
	return t, nil
}

// ToInputDate converts "DD-MMM-YYYY[ HH:mm]" into DDMMYYYY.
func ToInputDate(s string) (string, error) {
	t, err := ParseVendor(s)
	if err != nil {
		return "", err
	}
	return FormatInput(t), nil
}

// ToDisplayDate converts DDMMYYYY back into DD-MMM-YYYY.
func ToDisplayDate(s string) (string, error) {
	t, err := ParseInput(s)
	if err != nil {
		return "", err
	}
	return FormatVendor(t), nil
}

// InputToDotted converts DDMMYYYY into DD.MM.YYYY.
func InputToDotted(s string) (string, error) {
	t, err := ParseInput(s)
	if err != nil {
		return "", err
	}
	return FormatDisplay(t), nil
}

// ShortDate trims "DD-MMM-YYYY hh:mm[:ss]" down to "DD-MMM-YYYY".
func ShortDate(s string) string {
	if len(s) > len(VendorLayout) {
		return s[:len(VendorLayout)]
	}
	return s
}

// Port extracts the port name from "Antwerp {BEANR}, BELGIUM".
func Port(s string) string {
	name, _, _ := strings.Cut(s, ",")
	name, _, _ = strings.Cut(name, "{")
	return strings.TrimSpace(name)
}

// Country extracts the country from "Antwerp {BEANR}, BELGIUM".
// It returns an empty string when no country part is present.
func Country(s string) string {
	_, country, found := strings.Cut(s, ",")
	if !found {
		return ""
	}
	return strings.TrimSpace(country)
}

// InRange reports whether t lies strictly between MinDate and MaxDate.
func InRange(t time.Time) bool {
	return t.After(MinDate) && t.Before(MaxDate)
}

// Window is the date range a report is run for.
type Window struct {
	Start time.Time
	End   time.Time
}

// StartInput returns the start date as DDMMYYYY.
func (w Window) StartInput() string { return FormatInput(w.Start) }

// EndInput returns the end date as DDMMYYYY.
func (w Window) EndInput() string { return FormatInput(w.End) }

// ReportWindow derives the report range for date: the end is date minus
// marginDays, the start is 1 January of the end's year, or of the year before
// when fromPreviousYear is set.
func ReportWindow(date time.Time, marginDays int, fromPreviousYear bool) (Window, error) {
	if marginDays < 0 {
		return Window{}, fmt.Errorf("negative date margin %d", marginDays)
	}
	end := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -marginDays)
	if !InRange(end) {
		return Window{}, fmt.Errorf("report date %s outside supported range (%s, %s)",
			FormatVendor(end), FormatVendor(MinDate), FormatVendor(MaxDate))
	}
	year := end.Year()
	if fromPreviousYear {
		year--
	}
	return Window{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   end,
	}, nil
}

// FirstOfMonth returns the first day of t's month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PreviousFirstJanuary returns 1 January of the year the previous month belongs to.
// In January 2023 that is 1 January 2022; in February 2023 it is 1 January 2023.
func PreviousFirstJanuary(t time.Time) time.Time {
	prev := FirstOfMonth(t).AddDate(0, 0, -1)
	return time.Date(prev.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}
