// internal/crewing/crewing.go
package crewing

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/client"
	"github.com/bogdanrbucur/pal-e3/internal/lookup"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

const (
	processesPath      = "/palmdm/CrewingPAL/ProcessMaster/GetProcessMasterData"
	rolesPath          = "/palmdm/CrewingPAL/FunctionalRoles/GetFunctionalRolesData"
	allocatedPath      = "/palmdm/CrewingPAL/AllocationOfVessel/GetFunctionalRoleDetails"
	addAllocationPath  = "/palmdm/CrewingPAL/AllocationOfVessel/UpdateFunctionalRoles"
	removeAllocPath    = "/palmdm/CrewingPAL/AllocationOfVessel/DeleteVesselAllocationList"
	plannedChangesPath = "/palcrewing/CrewingPAL/Plan/GetCrewListForPlan"
	contactsPath       = "/palcrewing/CrewingPAL/Address/PopulateData"
)

// Directory is the subset of the lookup cache the crewing wrappers need.
type Directory interface {
	ResolveVessel(ctx context.Context, name string) (lookup.Vessel, error)
	VesselObjectIDs(ctx context.Context, names []string) (string, error)
	ResolveUsers(ctx context.Context, fragments []string) (lookup.ResolvedUsers, error)
}

// Service wraps the crewing master data and planning endpoints.
type Service struct {
	poster    client.Poster
	dir       Directory
	companyID int
	logger    *zap.Logger
}

// New creates a crewing service.
func New(poster client.Poster, dir Directory, companyID int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{poster: poster, dir: dir, companyID: companyID, logger: logger.Named("crewing")}
}

// Process is a crewing workflow, e.g. "Crew Change".
type Process struct {
	ID   lookup.ID `json:"Id"`
	Name string    `json:"Name"`
}

// Role is a crewing functional role.
type Role struct {
	ID        lookup.ID `json:"Id"`
	Code      string    `json:"Code"`
	Name      string    `json:"Name"`
	RoleLevel int       `json:"RoleLevel"`
	Active    bool      `json:"Active"`
}

// AllocatedUser is one user assignment on a vessel's process roles. Name is
// the role name; FID identifies the assignment for removal.
type AllocatedUser struct {
	ID        lookup.ID `json:"Id"`
	FID       lookup.ID `json:"FId"`
	Name      string    `json:"Name"`
	UserIDs   string    `json:"UserIds"`
	UserNames string    `json:"UserNames"`
}

// Processes lists the crewing processes.
func (s *Service) Processes(ctx context.Context) ([]Process, error) {
	var out []Process
	if err := s.list(ctx, processesPath, 50, &out); err != nil {
		return nil, fmt.Errorf("list crewing processes: %w", err)
	}
	return out, nil
}

// Roles lists the crewing functional roles.
func (s *Service) Roles(ctx context.Context) ([]Role, error) {
	var out []Role
	if err := s.list(ctx, rolesPath, 100, &out); err != nil {
		return nil, fmt.Errorf("list crewing roles: %w", err)
	}
	return out, nil
}

func (s *Service) list(ctx context.Context, path string, pageSize int, out any) error {
	form := client.NewForm().
		Add("sort", "").
		Add("page", 1).
		Add("pageSize", pageSize).
		Add("group", "").
		Add("filter", "")
	resp, err := s.poster.Post(ctx, client.Request{Path: path, Encoding: client.Multipart, Form: form})
	if err != nil {
		return err
	}
	_, err = resp.DecodeData(out)
	return err
}

// AllocatedUsers lists the user assignments of a vessel for one process.
func (s *Service) AllocatedUsers(ctx context.Context, vesselID, vesselObjectID, processID string) ([]AllocatedUser, error) {
	form := client.NewForm().
		GridDefaults().
		Add("ProcessId", processID).
		Add("VesselId", vesselID).
		Add("VesselObjectId", vesselObjectID).
		Add("companyId", s.companyID)

	resp, err := s.poster.Post(ctx, client.Request{Path: allocatedPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return nil, fmt.Errorf("list allocated crewing users: %w", err)
	}
	var out []AllocatedUser
	if _, err := resp.DecodeData(&out); err != nil {
		return nil, fmt.Errorf("list allocated crewing users: %w", err)
	}
	return out, nil
}

// Assignment describes one user allocation to add.
type Assignment struct {
	RoleID         string
	UserIDs        string
	UserNames      string
	VesselID       string
	VesselObjectID string
	ProcessID      string
}

// AddAllocation assigns users to a role. The vendor acknowledges with an
// empty body.
func (s *Service) AddAllocation(ctx context.Context, a Assignment) (bool, error) {
	form := client.NewForm().
		GridDefaults().
		Add("models[0].Id", a.RoleID).
		Add("models[0].FId", 0).
		Add("models[0].Code", "").
		Add("models[0].Name", "").
		Add("models[0].RoleLevel", 0).
		Add("models[0].Active", true).
		Add("models[0].SortOrder", 0).
		Add("models[0].ModifiedById", 0).
		Add("models[0].VesselAllocationDetailId", 0).
		Add("models[0].HDCompanyId", 0).
		Add("models[0].LoggedUserCompanyId", 0).
		Add("models[0].UserIds", a.UserIDs).
		Add("models[0].UserNames", a.UserNames).
		Add("models[0].BackUpUserNames", "").
		Add("models[0].Email", "").
		Add("models[0].BackUpEmail", "").
		Add("models[0].VesselAllocationId", 0).
		Add("models[0].VesselId", 0).
		Add("models[0].VesselObjectId", 0).
		Add("models[0].ApprovalCycleTemplateId", 0).
		Add("models[0].ApprovalTemplateId", 0).
		Add("models[0].SNo", 0).
		Add("ApprovalCycleTemplateId", 0).
		Add("ApprovalTemplateId", 0).
		Add("VesselId", a.VesselID).
		Add("VesselObjectId", a.VesselObjectID).
		Add("CompanyId", s.companyID).
		Add("ProcessId", a.ProcessID)

	resp, err := s.poster.Post(ctx, client.Request{Path: addAllocationPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return false, fmt.Errorf("add crewing allocation: %w", err)
	}
	return resp.Empty(), nil
}

// RemoveAllocation deletes the assignment identified by fid.
func (s *Service) RemoveAllocation(ctx context.Context, fid string) error {
	form := client.NewForm().Add("checkedlist", fid)
	resp, err := s.poster.Post(ctx, client.Request{Path: removeAllocPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return fmt.Errorf("remove crewing allocation %s: %w", fid, err)
	}
	var ack struct {
		Success bool `json:"success"`
	}
	if err := resp.Decode(&ack); err != nil {
		return fmt.Errorf("remove crewing allocation %s: %w", fid, err)
	}
	if !ack.Success {
		return &palerr.VendorRequestError{Endpoint: removeAllocPath, StatusCode: resp.StatusCode, Message: "allocation not removed"}
	}
	return nil
}

// Allocate makes users the exact set assigned to role for process on
// vessel. Assigned users not matched by any requested name fragment are
// removed; fragments matching no assigned user are added. An empty users
// list clears the role.
func (s *Service) Allocate(ctx context.Context, vessel, process, role string, users []string) (bool, error) {
	logger := s.logger.With(zap.String("vessel", vessel), zap.String("process", process), zap.String("role", role))

	v, err := s.dir.ResolveVessel(ctx, vessel)
	if err != nil {
		return false, err
	}
	vesselID, objectID := v.VesselID.String(), v.VesselObjectID.String()

	processID, err := s.processID(ctx, process)
	if err != nil {
		return false, err
	}
	roleID, err := s.roleID(ctx, role)
	if err != nil {
		return false, err
	}
	allocated, err := s.AllocatedUsers(ctx, vesselID, objectID, processID)
	if err != nil {
		return false, err
	}

	requested := compact(users)
	removed := 0
	for _, a := range allocated {
		if !strings.EqualFold(a.Name, role) || matchesAny(a.UserNames, requested) {
			continue
		}
		if err := s.RemoveAllocation(ctx, a.FID.String()); err != nil {
			return false, err
		}
		removed++
		logger.Info("Removed crewing allocation.", zap.String("user", a.UserNames))
	}
	if removed > 0 {
		if allocated, err = s.AllocatedUsers(ctx, vesselID, objectID, processID); err != nil {
			return false, err
		}
	}

	ok := true
	for _, fragment := range requested {
		if assigned(allocated, role, fragment) {
			continue
		}
		resolved, err := s.dir.ResolveUsers(ctx, []string{fragment})
		if err != nil {
			return false, err
		}
		added, err := s.AddAllocation(ctx, Assignment{
			RoleID:         roleID,
			UserIDs:        resolved.IDList(),
			UserNames:      resolved.NameList(),
			VesselID:       vesselID,
			VesselObjectID: objectID,
			ProcessID:      processID,
		})
		if err != nil {
			return false, err
		}
		ok = ok && added
		logger.Info("Added crewing allocation.", zap.String("user", resolved.NameList()), zap.Bool("acknowledged", added))
	}
	return ok, nil
}

func (s *Service) processID(ctx context.Context, name string) (string, error) {
	processes, err := s.Processes(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range processes {
		if strings.EqualFold(p.Name, name) {
			return p.ID.String(), nil
		}
	}
	return "", palerr.NewNotFoundError("process", name)
}

func (s *Service) roleID(ctx context.Context, name string) (string, error) {
	roles, err := s.Roles(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range roles {
		if strings.EqualFold(r.Name, name) {
			return r.ID.String(), nil
		}
	}
	return "", palerr.NewNotFoundError("role", name)
}

func compact(users []string) []string {
	seen := make(map[string]bool, len(users))
	var out []string
	for _, u := range users {
		key := strings.ToUpper(strings.TrimSpace(u))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(u))
	}
	return out
}

func matchesAny(userNames string, fragments []string) bool {
	for _, f := range fragments {
		if containsFold(userNames, f) {
			return true
		}
	}
	return false
}

func assigned(allocated []AllocatedUser, role, fragment string) bool {
	for _, a := range allocated {
		if strings.EqualFold(a.Name, role) && containsFold(a.UserNames, fragment) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToUpper(s), strings.ToUpper(substr))
}
