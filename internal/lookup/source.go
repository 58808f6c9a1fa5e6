// internal/lookup/source.go
package lookup

import (
	"context"
	"fmt"

	"github.com/bogdanrbucur/pal-e3/internal/client"
)

const (
	vesselsPath = "/palpurchase/PurchasePAL/AllocationOfVessel/GetAllocationVesselDetails"
	usersPath   = "/palpurchase/PurchasePAL/AllocationOfVessel/GetAllocationVesselUserDetails"

	userPageSize = 500
)

// Source fetches the uncached directories.
type Source interface {
	FetchVessels(ctx context.Context) ([]Vessel, error)
	FetchUsers(ctx context.Context) ([]User, error)
}

// VendorSource reads the directories from the purchase allocation screens.
type VendorSource struct {
	Poster    client.Poster
	CompanyID int
}

var _ Source = (*VendorSource)(nil)

// FetchVessels returns every vessel known to the vendor.
func (s *VendorSource) FetchVessels(ctx context.Context) ([]Vessel, error) {
	form := client.NewForm().
		GridDefaults().
		Add("HideGridContent", false).
		Add("companyId", s.CompanyID)

	resp, err := s.Poster.Post(ctx, client.Request{Path: vesselsPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return nil, fmt.Errorf("fetch vessels: %w", err)
	}
	var vessels []Vessel
	if _, err := resp.DecodeData(&vessels); err != nil {
		return nil, fmt.Errorf("fetch vessels: %w", err)
	}
	return vessels, nil
}

// FetchUsers returns the purchase user directory.
func (s *VendorSource) FetchUsers(ctx context.Context) ([]User, error) {
	form := client.NewForm().
		Add("sort", "").
		Add("page", 1).
		Add("pageSize", userPageSize).
		Add("group", "").
		Add("filter", "").
		Add("companyId", s.CompanyID).
		Add("FunctionalRoleId", "1").
		Add("UserIds", "").
		Add("UserName", "").
		Add("VesselId", "").
		Add("VesselObjectId", "").
		Add("HideGridContent", false).
		Add("CategoryId", "").
		Add("DocType", "").
		Add("CycleTemplateId", "")

	resp, err := s.Poster.Post(ctx, client.Request{Path: usersPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	var users []User
	if _, err := resp.DecodeData(&users); err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	return users, nil
}
