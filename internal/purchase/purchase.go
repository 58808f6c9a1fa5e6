// internal/purchase/purchase.go
package purchase

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
	categoriesPath     = "/palpurchase/PurchasePAL/AllocationOfVessel/GetJobOrderCategory"
	allocationPath     = "/palpurchase/PurchasePAL/AllocationOfVessel/GetFunctionalRoleDetails"
	updateRolesPath    = "/palpurchase/PurchasePAL/AllocationOfVessel/UpdateFunctionalRoles"
	cycleTemplatesPath = "/palpurchase/PurchasePAL/ProcurementBusinessFlow/GetTemplateDetails"
	approvalListPath   = "/palpurchase/SharedPlugins/ApprovalList/GetApprovalList"
	generalQueryPath   = "/palpurchase/PurchasePAL/GeneralQuery/GetGeneralQueryData"

	// selectAny is the category pseudo-name meaning every category.
	selectAny = "SELECT ANY"
)

// DocType is the purchase document family an allocation applies to.
type DocType string

const (
	Job  DocType = "JOB"
	Proc DocType = "PROC"
)

// ParseDocType accepts "JOB" or "PROC" in any case.
func ParseDocType(s string) (DocType, error) {
	switch d := DocType(strings.ToUpper(strings.TrimSpace(s))); d {
	case Job, Proc:
		return d, nil
	}
	return "", fmt.Errorf("unknown purchase document type %q: must be JOB or PROC", s)
}

// Directory is the subset of the lookup cache the purchase wrappers need.
type Directory interface {
	ResolveVessel(ctx context.Context, name string) (lookup.Vessel, error)
	VesselObjectIDs(ctx context.Context, names []string) (string, error)
	ResolveUsers(ctx context.Context, fragments []string) (lookup.ResolvedUsers, error)
}

// Service wraps the purchase module endpoints.
type Service struct {
	poster client.Poster
	dir    Directory
	logger *zap.Logger
}

// New creates a purchase service.
func New(poster client.Poster, dir Directory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{poster: poster, dir: dir, logger: logger.Named("purchase")}
}

// Category is a purchase category as listed by the allocation screen.
type Category struct {
	Text  string    `json:"Text"`
	Value lookup.ID `json:"Value"`
}

// Categories lists the categories of docType. The endpoint answers with a
// bare JSON array rather than an envelope.
func (s *Service) Categories(ctx context.Context, docType DocType) ([]Category, error) {
	form := client.NewForm().
		Add("OpertionType", string(docType)).
		Add("filter[logic]", "and").
		Add("filter[filters][0][field]", "Value").
		Add("filter[filters][0][operator]", "eq").
		Add("filter[filters][0][value]", string(docType))

	resp, err := s.poster.Post(ctx, client.Request{Path: categoriesPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return nil, fmt.Errorf("list %s categories: %w", docType, err)
	}
	var categories []Category
	if err := resp.Decode(&categories); err != nil {
		return nil, fmt.Errorf("list %s categories: %w", docType, err)
	}
	return categories, nil
}

// CategoryIDs resolves category names into a comma separated id list. The
// single name "SELECT ANY" resolves to "0" without a request.
func (s *Service) CategoryIDs(ctx context.Context, names []string, docType DocType) (string, error) {
	if len(names) == 1 && strings.EqualFold(strings.TrimSpace(names[0]), selectAny) {
		return "0", nil
	}

	categories, err := s.Categories(ctx, docType)
	if err != nil {
		return "", err
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToUpper(strings.TrimSpace(n))] = true
	}
	var ids []string
	for _, c := range categories {
		if wanted[strings.ToUpper(c.Text)] {
			ids = append(ids, c.Value.String())
		}
	}
	if len(ids) == 0 {
		return "", palerr.NewNotFoundError("category", strings.Join(names, ","))
	}
	return strings.Join(ids, ","), nil
}

// Role is one functional role row of a vessel's purchase allocation.
type Role struct {
	ID                      lookup.ID `json:"Id"`
	Code                    string    `json:"Code"`
	Name                    string    `json:"Name"`
	UserIDs                 string    `json:"UserIds"`
	UserNames               string    `json:"UserNames"`
	ApprovalCycleTemplateID lookup.ID `json:"ApprovalCycleTemplateId"`
	ApprovalTemplateID      lookup.ID `json:"ApprovalTemplateId"`
	VesselAllocationID      lookup.ID `json:"VesselAllocationId"`
}

// Allocation is the current role allocation for one vessel and category.
// The template and allocation ids are taken from the first role.
type Allocation struct {
	ApprovalCycleTemplateID lookup.ID
	ApprovalTemplateID      lookup.ID
	VesselAllocationID      lookup.ID
	Roles                   []Role
}

// Role returns the role whose name matches, ignoring case.
func (a *Allocation) Role(name string) (Role, bool) {
	for _, r := range a.Roles {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Role{}, false
}

// AllocationQuery selects one allocation grid.
type AllocationQuery struct {
	DocType         DocType
	VesselID        string
	VesselObjectID  string
	CategoryID      string
	CycleTemplateID string
}

// CurrentAllocation reads the role allocation for q.
func (s *Service) CurrentAllocation(ctx context.Context, q AllocationQuery) (*Allocation, error) {
	form := client.NewForm().
		GridDefaults().
		Add("VesselId", q.VesselID).
		Add("VesselObjectId", q.VesselObjectID).
		Add("CategoryId", q.CategoryID).
		Add("DocType", string(q.DocType)).
		Add("CycleTemplateId", q.CycleTemplateID)

	resp, err := s.poster.Post(ctx, client.Request{Path: allocationPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return nil, fmt.Errorf("read purchase allocation: %w", err)
	}
	var roles []Role
	if _, err := resp.DecodeData(&roles); err != nil {
		return nil, fmt.Errorf("read purchase allocation: %w", err)
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("read purchase allocation: no roles returned: %w", palerr.ErrNoData)
	}
	return &Allocation{
		ApprovalCycleTemplateID: roles[0].ApprovalCycleTemplateID,
		ApprovalTemplateID:      roles[0].ApprovalTemplateID,
		VesselAllocationID:      roles[0].VesselAllocationID,
		Roles:                   roles,
	}, nil
}

// CycleTemplate is an approval cycle template.
type CycleTemplate struct {
	ID         lookup.ID `json:"Id"`
	Name       string    `json:"Name"`
	CompanySel string    `json:"CompanySel"`
}

// CycleTemplates lists every approval cycle template.
func (s *Service) CycleTemplates(ctx context.Context) ([]CycleTemplate, error) {
	form := client.NewForm().
		Add("sort", "").
		Add("page", 1).
		Add("pageSize", 200).
		Add("group", "").
		Add("filter", "Name~contains~''")

	resp, err := s.poster.Post(ctx, client.Request{Path: cycleTemplatesPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return nil, fmt.Errorf("list cycle templates: %w", err)
	}
	var templates []CycleTemplate
	if _, err := resp.DecodeData(&templates); err != nil {
		return nil, fmt.Errorf("list cycle templates: %w", err)
	}
	return templates, nil
}

// Approval is one step of a document's approval history.
type Approval struct {
	ID         lookup.ID `json:"Id"`
	Document   string    `json:"Document"`
	Code       string    `json:"Code"`
	TakenBy    string    `json:"TakenBy"`
	ActionDate string    `json:"ActionDate"`
	Status     string    `json:"Status"`
	Remarks    string    `json:"Remarks"`
	ForwardBy  string    `json:"ForwardBy"`
}

var approvalPageTypes = map[string]string{
	"PO": "PO_ALL",
	"QC": "AQT_DEF",
}

// PendingApprovals returns the approval list of a purchase order ("PO") or
// quotation comparison ("QC").
func (s *Service) PendingApprovals(ctx context.Context, docID int, kind string) ([]Approval, error) {
	pageType, ok := approvalPageTypes[strings.ToUpper(kind)]
	if !ok {
		return nil, fmt.Errorf("invalid approval document kind %q: must be PO or QC", kind)
	}
	form := client.NewForm().
		GridDefaults().
		Add("docId", docID).
		Add("pageType", pageType).
		Add("docType", 1).
		Add("isShow", true)

	resp, err := s.poster.Post(ctx, client.Request{Path: approvalListPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return nil, fmt.Errorf("read approvals of %s %d: %w", kind, docID, err)
	}
	var approvals []Approval
	if _, err := resp.DecodeData(&approvals); err != nil {
		return nil, fmt.Errorf("read approvals of %s %d: %w", kind, docID, err)
	}
	return approvals, nil
}
