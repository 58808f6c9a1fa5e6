// internal/client/form.go
package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Encoding selects how a request body is serialized.
type Encoding int

const (
	// Multipart sends multipart/form-data, which most PAL grid endpoints expect.
	Multipart Encoding = iota
	// URLEncoded sends application/x-www-form-urlencoded.
	URLEncoded
	// JSON sends application/json.
	JSON
)

func (e Encoding) String() string {
	switch e {
	case Multipart:
		return "multipart"
	case URLEncoded:
		return "urlencoded"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

type field struct {
	key   string
	value string
}

// Form is an ordered list of form fields. Keys may repeat, which the vendor
// uses for array parameters such as "vesselArray[]".
type Form struct {
	fields []field
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{}
}

// Add appends a field. Strings, integers, floats and booleans are rendered the
// way the vendor's own frontend renders them; anything else uses fmt's %v.
func (f *Form) Add(key string, value any) *Form {
	f.fields = append(f.fields, field{key: key, value: formatValue(value)})
	return f
}

// AddAll appends one field per value under the same key.
func (f *Form) AddAll(key string, values []string) *Form {
	for _, v := range values {
		f.fields = append(f.fields, field{key: key, value: v})
	}
	return f
}

// Get returns the first value stored under key.
func (f *Form) Get(key string) (string, bool) {
	for _, fl := range f.fields {
		if fl.key == key {
			return fl.value, true
		}
	}
	return "", false
}

// Len returns the number of fields.
func (f *Form) Len() int {
	return len(f.fields)
}

// Values converts the form into url.Values, keeping the order of repeated keys.
func (f *Form) Values() url.Values {
	v := make(url.Values, len(f.fields))
	for _, fl := range f.fields {
		v.Add(fl.key, fl.value)
	}
	return v
}

// Map flattens the form into a map; for repeated keys the last value wins.
func (f *Form) Map() map[string]string {
	m := make(map[string]string, len(f.fields))
	for _, fl := range f.fields {
		m[fl.key] = fl.value
	}
	return m
}

// Encode renders the form as a URL-encoded body in insertion order.
func (f *Form) Encode() string {
	var sb strings.Builder
	for i, fl := range f.fields {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(fl.key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(fl.value))
	}
	return sb.String()
}

// GridDefaults appends the empty Kendo grid parameters most endpoints require.
func (f *Form) GridDefaults() *Form {
	return f.Add("sort", "").Add("group", "").Add("filter", "")
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
