// internal/lookup/types.go
package lookup

import (
	"bytes"
	"fmt"
	"strconv"
)

// ID is a vendor record identifier. Some endpoints send ids as JSON numbers and
// others as strings, so both decode into the same textual form.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
	case data[0] == '"':
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("lookup: invalid id %s: %w", data, err)
		}
		*id = ID(s)
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return fmt.Errorf("lookup: invalid id %s: %w", data, err)
		}
		*id = ID(data)
	}
	return nil
}

func (id ID) String() string { return string(id) }

// Vessel is one row of the vessel allocation grid.
type Vessel struct {
	ID                      ID     `json:"Id"`
	VesselID                ID     `json:"VesselId"`
	VesselObjectID          ID     `json:"VesselObjectId"`
	VesselName              string `json:"VesselName"`
	ApprovalCycleTemplateID ID     `json:"ApprovalCycleTemplateId"`
	ApprovalTemplateID      ID     `json:"ApprovalTemplateId"`
	ModifiedOn              string `json:"ModifiedOn"`
}

// User is one row of the purchase user directory.
type User struct {
	UserID    ID     `json:"UserId"`
	LoginName string `json:"LoginName"`
	Name      string `json:"Name"`
	Email     string `json:"Email"`
	CompanyID ID     `json:"CompanyId"`
}
