// internal/client/response.go
package client

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the vendor's response wrapper. Field matching is case
// insensitive, so the lower-case "data" some voyage endpoints use lands in Data.
type Envelope struct {
	Data   jsoniter.RawMessage `json:"Data"`
	Total  int                 `json:"Total"`
	Errors jsoniter.RawMessage `json:"Errors"`
}

// HasData reports whether the envelope carried a non-null Data member.
func (e *Envelope) HasData() bool {
	return len(e.Data) > 0 && !isNull(e.Data)
}

// Response is a successfully transported vendor response.
type Response struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

// Empty reports whether the vendor sent back an empty body, which some
// mutation endpoints use to signal success.
func (r *Response) Empty() bool {
	return len(bytes.TrimSpace(r.Body)) == 0
}

// Decode unmarshals the whole body into out.
func (r *Response) Decode(out any) error {
	if r.Empty() {
		return fmt.Errorf("%s: empty body: %w", r.Endpoint, palerr.ErrNoData)
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("%s: malformed body: %v: %w", r.Endpoint, err, palerr.ErrNoData)
	}
	return nil
}

// Envelope parses the body as a Data/Total/Errors envelope.
func (r *Response) Envelope() (*Envelope, error) {
	var env Envelope
	if err := r.Decode(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// DecodeData unmarshals the envelope's Data member into out and returns the
// envelope Total. A missing or null Data is palerr.ErrNoData.
func (r *Response) DecodeData(out any) (int, error) {
	env, err := r.Envelope()
	if err != nil {
		return 0, err
	}
	if !env.HasData() {
		return 0, fmt.Errorf("%s: envelope has no Data: %w", r.Endpoint, palerr.ErrNoData)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return 0, fmt.Errorf("%s: malformed Data: %v: %w", r.Endpoint, err, palerr.ErrNoData)
	}
	return env.Total, nil
}

// vendorError extracts the vendor's error message from body, if it carries one.
// The Errors member is null on success; on failure it is a string, a list, or
// a Kendo style map of field name to {"errors": [...]}.
func vendorError(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var probe struct {
		Errors jsoniter.RawMessage `json:"Errors"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return "", false
	}
	if len(probe.Errors) == 0 || isNull(probe.Errors) {
		return "", false
	}

	var decoded any
	if err := json.Unmarshal(probe.Errors, &decoded); err != nil {
		return string(probe.Errors), true
	}
	var msgs []string
	collectStrings(decoded, &msgs)
	if len(msgs) == 0 {
		// An empty list or object is not an error report.
		if isEmptyContainer(decoded) {
			return "", false
		}
		return string(probe.Errors), true
	}
	return strings.Join(msgs, "; "), true
}

func collectStrings(v any, out *[]string) {
	switch t := v.(type) {
	case string:
		if t != "" {
			*out = append(*out, t)
		}
	case []any:
		for _, item := range t {
			collectStrings(item, out)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectStrings(t[k], out)
		}
	}
}

func isEmptyContainer(v any) bool {
	switch t := v.(type) {
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case bool:
		return !t
	}
	return false
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
