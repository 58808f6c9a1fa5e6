// internal/voyage/voyage.go
package voyage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/client"
	"github.com/bogdanrbucur/pal-e3/internal/lookup"
	"github.com/bogdanrbucur/pal-e3/internal/paldate"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

const (
	schedulePath    = "/palvoyage/VoyagePAL/PortCallPlanner/GetLegPlanning"
	alertRolesPath  = "/palvoyage/VoyagePAL/AllocateRoles/GetAllocateRoles"
	insertRolesPath = "/palvoyage/VoyagePAL/AllocateRoles/InsertAllocateRoles"
)

// Directory is the subset of the lookup cache the voyage wrappers need.
type Directory interface {
	ResolveVessel(ctx context.Context, name string) (lookup.Vessel, error)
	ResolveUsers(ctx context.Context, fragments []string) (lookup.ResolvedUsers, error)
}

// Service wraps the voyage planning and alert endpoints.
type Service struct {
	poster client.Poster
	dir    Directory
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now as the start of schedule windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a voyage service.
func New(poster client.Poster, dir Directory, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{poster: poster, dir: dir, logger: logger.Named("voyage"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PortCall is one planned leg of the port call planner. The planner's
// columns vary with the tenant's configuration, so rows are kept as sent.
type PortCall map[string]any

// Schedule returns every vessel's planned port calls from today until days
// ahead, or one calendar month ahead when days is zero.
func (s *Service) Schedule(ctx context.Context, days int) ([]PortCall, error) {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	until := start.AddDate(0, 1, 0)
	if days > 0 {
		until = start.AddDate(0, 0, days)
	}

	body := map[string]string{
		"Fromdate": paldate.FormatVendor(start),
		"ToDate":   paldate.FormatVendor(until),
	}
	resp, err := s.poster.Post(ctx, client.Request{Path: schedulePath, Encoding: client.JSON, Body: body})
	if err != nil {
		return nil, fmt.Errorf("read vessel schedule: %w", err)
	}
	var calls []PortCall
	if _, err := resp.DecodeData(&calls); err != nil {
		return nil, fmt.Errorf("read vessel schedule: %w", err)
	}
	return calls, nil
}

// AlertRole is one voyage alert role of a vessel with its users. The vendor
// misspells the vessel keys.
type AlertRole struct {
	VesselID       lookup.ID `json:"VessleId"`
	VesselObjectID lookup.ID `json:"VessleObjectId"`
	AlertRoleName  string    `json:"AlertRoleName"`
	AlertRoleID    lookup.ID `json:"AlertRoleId"`
	UserIDs        string    `json:"UserIds"`
	UserNames      string    `json:"UserNames"`
}

// AlertRoles lists the voyage alert roles configured for a vessel.
func (s *Service) AlertRoles(ctx context.Context, vesselID, vesselObjectID string) ([]AlertRole, error) {
	form := client.NewForm().
		GridDefaults().
		Add("VesselId", vesselID).
		Add("VesselObjectId", vesselObjectID).
		Add("CategoryId", "")

	resp, err := s.poster.Post(ctx, client.Request{Path: alertRolesPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return nil, fmt.Errorf("list voyage alert roles: %w", err)
	}
	var roles []AlertRole
	if _, err := resp.DecodeData(&roles); err != nil {
		return nil, fmt.Errorf("list voyage alert roles: %w", err)
	}
	return roles, nil
}

// ConfigureAlert replaces the users of one voyage alert role on vessel. An
// empty users list clears the role.
func (s *Service) ConfigureAlert(ctx context.Context, vessel, role string, users []string) (bool, error) {
	v, err := s.dir.ResolveVessel(ctx, vessel)
	if err != nil {
		return false, err
	}
	var userIDs string
	if len(compact(users)) > 0 {
		resolved, err := s.dir.ResolveUsers(ctx, users)
		if err != nil {
			return false, err
		}
		userIDs = resolved.IDList()
	}

	roles, err := s.AlertRoles(ctx, v.VesselID.String(), v.VesselObjectID.String())
	if err != nil {
		return false, err
	}
	var roleID string
	for _, r := range roles {
		if strings.EqualFold(r.AlertRoleName, role) {
			roleID = r.AlertRoleID.String()
		}
	}
	if roleID == "" {
		return false, palerr.NewNotFoundError("role", role)
	}

	form := client.NewForm().
		GridDefaults().
		Add("VesselId", v.VesselID.String()).
		Add("VesselObjectId", v.VesselObjectID.String()).
		Add("models[0].VessleId", 0).
		Add("models[0].VessleObjectId", 0).
		Add("models[0].AlertRoleName", "").
		Add("models[0].AlertRoleId", roleID).
		Add("models[0].UserIds", userIDs).
		Add("models[0].UserNames", "").
		Add("models[0].SelectedUserIds", "").
		Add("models[0].RemovedUserIds", "")

	resp, err := s.poster.Post(ctx, client.Request{Path: insertRolesPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return false, fmt.Errorf("configure voyage alert: %w", err)
	}
	var ack struct {
		IsSuccess bool `json:"isSuccess"`
	}
	if err := resp.Decode(&ack); err != nil {
		return false, fmt.Errorf("configure voyage alert: %w", err)
	}
	if !ack.IsSuccess {
		return false, &palerr.VendorRequestError{Endpoint: insertRolesPath, StatusCode: resp.StatusCode, Message: "alert configuration rejected"}
	}
	s.logger.Info("Voyage alert configured.", zap.String("vessel", vessel), zap.String("role", role))
	return true, nil
}

func compact(users []string) []string {
	var out []string
	for _, u := range users {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	return out
}
