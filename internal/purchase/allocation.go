// internal/purchase/allocation.go
package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/client"
	"github.com/bogdanrbucur/pal-e3/internal/lookup"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

// AllocationRequest replaces the users assigned to one role for one vessel
// and category.
type AllocationRequest struct {
	DocType  DocType
	Vessel   string
	Category string
	Role     string
	// Users are name fragments; an empty list clears the role.
	Users []string
	// Template is the approval cycle template name, required for JOB.
	Template string
}

// Allocate writes the allocation and reads it back. It returns true only
// when the vendor reports the requested users on the role.
//
// A vessel with no allocation configured for the category (all template ids
// zero) is reported as false without a write.
func (s *Service) Allocate(ctx context.Context, req AllocationRequest) (bool, error) {
	if _, err := ParseDocType(string(req.DocType)); err != nil {
		return false, err
	}
	if req.DocType == Job && strings.TrimSpace(req.Template) == "" {
		return false, errors.New("approval template is mandatory for JOB allocations")
	}
	logger := s.logger.With(zap.String("vessel", req.Vessel), zap.String("doc_type", string(req.DocType)),
		zap.String("category", req.Category), zap.String("role", req.Role))

	vessel, err := s.dir.ResolveVessel(ctx, req.Vessel)
	if err != nil {
		return false, err
	}
	userIDs, err := s.userIDs(ctx, req.Users)
	if err != nil {
		return false, err
	}
	categoryID, err := s.CategoryIDs(ctx, []string{req.Category}, req.DocType)
	if err != nil {
		return false, err
	}

	q := AllocationQuery{
		DocType:        req.DocType,
		VesselID:       vessel.VesselID.String(),
		VesselObjectID: vessel.VesselObjectID.String(),
		CategoryID:     categoryID,
	}
	var (
		current    *Allocation
		cycleID    string
		templateID string
	)
	switch req.DocType {
	case Proc:
		current, err = s.CurrentAllocation(ctx, q)
		if err != nil {
			return false, err
		}
		if zeroID(current.ApprovalTemplateID) && zeroID(current.ApprovalCycleTemplateID) && zeroID(current.VesselAllocationID) {
			logger.Warn("Vessel has no allocation configured for this category.")
			return false, nil
		}
		cycleID = current.ApprovalCycleTemplateID.String()
		templateID = current.ApprovalTemplateID.String()
	case Job:
		templateID = "0"
		cycleID, err = s.cycleTemplateID(ctx, req.Template)
		if err != nil {
			return false, err
		}
		q.CycleTemplateID = cycleID
		current, err = s.CurrentAllocation(ctx, q)
		if err != nil {
			return false, err
		}
	}

	role, ok := current.Role(req.Role)
	if !ok {
		return false, palerr.NewNotFoundError("role", req.Role)
	}

	form := client.NewForm().
		GridDefaults().
		Add("ApprovalCycleTemplateId", cycleID).
		Add("ApprovalTemplateId", templateID).
		Add("VesselId", "").
		Add("VesselObjectId", q.VesselObjectID).
		Add("CategoryId", categoryID).
		Add("DocType", string(req.DocType)).
		Add("models[0].Id", role.ID.String()).
		Add("models[0].Code", role.Code).
		Add("models[0].Name", "").
		Add("models[0].RoleLevel", 1).
		Add("models[0].Active", true).
		Add("models[0].SortOrder", "").
		Add("models[0].ModifiedById", "").
		Add("models[0].ModifiedOn", "").
		Add("models[0].ModifiedBy", "").
		Add("models[0].NewModifiedOn", "").
		Add("models[0].UserIds", userIDs).
		Add("models[0].UserNames", "").
		Add("models[0].VesselAllocationId", current.VesselAllocationID.String()).
		Add("models[0].VesselId", 0).
		Add("models[0].VesselObjectId", 0).
		Add("models[0].ApprovalCycleTemplateId", cycleID).
		Add("models[0].ApprovalTemplateId", templateID).
		Add("models[0].StopProcess", "").
		Add("models[0].SNo", "")

	if _, err := s.poster.Post(ctx, client.Request{Path: updateRolesPath, Encoding: client.Multipart, Form: form}); err != nil {
		return false, fmt.Errorf("update purchase allocation: %w", err)
	}

	q.CycleTemplateID = cycleID
	after, err := s.CurrentAllocation(ctx, q)
	if err != nil {
		return false, fmt.Errorf("verify purchase allocation: %w", err)
	}
	verified := Verify(after, role.Code, cycleID, templateID, current.VesselAllocationID.String(), userIDs)
	logger.Info("Purchase allocation written.", zap.Bool("verified", verified))
	return verified, nil
}

// Verify reports whether the role identified by code carries every user in
// userIDs under the expected template and allocation ids. An empty userIDs
// only verifies when the role has no users left.
func Verify(a *Allocation, code, cycleID, templateID, allocationID, userIDs string) bool {
	for _, r := range a.Roles {
		if r.Code != code {
			continue
		}
		if r.ApprovalCycleTemplateID.String() != cycleID ||
			r.ApprovalTemplateID.String() != templateID ||
			r.VesselAllocationID.String() != allocationID {
			return false
		}
		want := splitIDs(userIDs)
		if len(want) == 0 {
			return len(splitIDs(r.UserIDs)) == 0
		}
		return containsAll(splitIDs(r.UserIDs), want)
	}
	return false
}

func (s *Service) userIDs(ctx context.Context, users []string) (string, error) {
	if len(users) == 0 || (len(users) == 1 && strings.TrimSpace(users[0]) == "") {
		return "", nil
	}
	resolved, err := s.dir.ResolveUsers(ctx, users)
	if err != nil {
		return "", err
	}
	return resolved.IDList(), nil
}

func (s *Service) cycleTemplateID(ctx context.Context, name string) (string, error) {
	templates, err := s.CycleTemplates(ctx)
	if err != nil {
		return "", err
	}
	for _, t := range templates {
		if strings.EqualFold(t.Name, name) {
			return t.ID.String(), nil
		}
	}
	return "", palerr.NewNotFoundError("template", name)
}

func zeroID(id lookup.ID) bool {
	return id == "" || id == "0"
}

func splitIDs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
