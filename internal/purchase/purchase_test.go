// internal/purchase/purchase_test.go
package purchase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bogdanrbucur/pal-e3/internal/client"
	"github.com/bogdanrbucur/pal-e3/internal/lookup"
	"github.com/bogdanrbucur/pal-e3/internal/mocks"
	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

type staticSource struct{}

func (staticSource) FetchVessels(context.Context) ([]lookup.Vessel, error) {
	return []lookup.Vessel{
		{VesselID: "246049", VesselObjectID: "9001", VesselName: "CHEM MIA"},
		{VesselID: "246026", VesselObjectID: "9002", VesselName: "CHEM HOUSTON"},
	}, nil
}

func (staticSource) FetchUsers(context.Context) ([]lookup.User, error) {
	return []lookup.User{
		{UserID: "145161", Name: "Nir Geva"},
		{UserID: "149755", Name: "Bogdan Bucur"},
	}, nil
}

func newService(t *testing.T) (*Service, *mocks.MockPoster) {
	t.Helper()
	poster := new(mocks.MockPoster)
	t.Cleanup(func() { poster.AssertExpectations(t) })
	logger := zaptest.NewLogger(t)
	return New(poster, lookup.NewCache(staticSource{}, logger, nil), logger), poster
}

const categoriesBody = `[{"Text":"MEDICINE","Value":"201205"},{"Text":"Provisions","Value":201184},{"Text":"SPARES","Value":"1"}]`

func TestParseDocType(t *testing.T) {
	d, err := ParseDocType(" job ")
	require.NoError(t, err)
	assert.Equal(t, Job, d)

	_, err = ParseDocType("PO")
	assert.Error(t, err)
}

func TestCategoryIDs(t *testing.T) {
	s, poster := newService(t)
	poster.On("Post", mock.Anything, mock.MatchedBy(func(req client.Request) bool {
		v, _ := req.Form.Get("OpertionType")
		return req.Path == categoriesPath && v == "PROC"
	})).Return(mocks.JSONResponse(categoriesPath, categoriesBody), nil)

	ids, err := s.CategoryIDs(context.Background(), []string{"medicine", "PROVISIONS"}, Proc)
	require.NoError(t, err)
	assert.Equal(t, "201205,201184", ids)

	_, err = s.CategoryIDs(context.Background(), []string{"PAINT"}, Proc)
	var nf *palerr.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "category", nf.Kind)
}

func TestCategoryIDs_SelectAnySkipsRequest(t *testing.T) {
	s, _ := newService(t)
	ids, err := s.CategoryIDs(context.Background(), []string{"Select Any"}, Job)
	require.NoError(t, err)
	assert.Equal(t, "0", ids)
}

func TestCurrentAllocation(t *testing.T) {
	s, poster := newService(t)
	poster.On("Post", mock.Anything, mocks.ForPath(allocationPath)).Return(mocks.JSONResponse(allocationPath,
		`{"Data":[{"Id":3,"Code":"MASTER","Name":"Master","UserIds":"1,2","ApprovalCycleTemplateId":11,"ApprovalTemplateId":12,"VesselAllocationId":13}],"Total":1,"Errors":null}`), nil).Once()
	poster.On("Post", mock.Anything, mocks.ForPath(allocationPath)).Return(mocks.JSONResponse(allocationPath,
		`{"Data":[],"Total":0,"Errors":null}`), nil).Once()

	a, err := s.CurrentAllocation(context.Background(), AllocationQuery{DocType: Proc, VesselID: "1", VesselObjectID: "2", CategoryID: "3"})
	require.NoError(t, err)
	assert.Equal(t, lookup.ID("11"), a.ApprovalCycleTemplateID)
	assert.Equal(t, lookup.ID("13"), a.VesselAllocationID)
	r, ok := a.Role("master")
	require.True(t, ok)
	assert.Equal(t, "MASTER", r.Code)

	_, err = s.CurrentAllocation(context.Background(), AllocationQuery{DocType: Proc})
	assert.ErrorIs(t, err, palerr.ErrNoData)
}

func allocationBody(userIDs string) string {
	return `{"Data":[` +
		`{"Id":7,"Code":"TSI","Name":"Technical Superintendent","UserIds":"` + userIDs + `","ApprovalCycleTemplateId":55,"ApprovalTemplateId":66,"VesselAllocationId":77},` +
		`{"Id":8,"Code":"PM","Name":"Purchase Manager","UserIds":"","ApprovalCycleTemplateId":55,"ApprovalTemplateId":66,"VesselAllocationId":77}` +
		`],"Total":2,"Errors":null}`
}

func TestAllocate_ProcVerified(t *testing.T) {
	s, poster := newService(t)
	poster.On("Post", mock.Anything, mocks.ForPath(categoriesPath)).Return(mocks.JSONResponse(categoriesPath, categoriesBody), nil)
	poster.On("Post", mock.Anything, mocks.ForPath(allocationPath)).Return(mocks.JSONResponse(allocationPath, allocationBody("1")), nil).Once()
	poster.On("Post", mock.Anything, mock.MatchedBy(func(req client.Request) bool {
		if req.Path != updateRolesPath {
			return false
		}
		users, _ := req.Form.Get("models[0].UserIds")
		code, _ := req.Form.Get("models[0].Code")
		obj, _ := req.Form.Get("VesselObjectId")
		cycle, _ := req.Form.Get("ApprovalCycleTemplateId")
		return users == "145161,149755" && code == "TSI" && obj == "9001" && cycle == "55"
	})).Return(mocks.JSONResponse(updateRolesPath, `{"Data":[],"Errors":null}`), nil).Once()
	poster.On("Post", mock.Anything, mocks.ForPath(allocationPath)).Return(mocks.JSONResponse(allocationPath, allocationBody("149755,145161,3")), nil).Once()

	ok, err := s.Allocate(context.Background(), AllocationRequest{
		DocType:  Proc,
		Vessel:   "chem mia",
		Category: "MEDICINE",
		Role:     "technical superintendent",
		Users:    []string{"geva", "bucur"},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllocate_NotVerifiedWhenUserMissing(t *testing.T) {
	s, poster := newService(t)
	poster.On("Post", mock.Anything, mocks.ForPath(categoriesPath)).Return(mocks.JSONResponse(categoriesPath, categoriesBody), nil)
	poster.On("Post", mock.Anything, mocks.ForPath(allocationPath)).Return(mocks.JSONResponse(allocationPath, allocationBody("")), nil).Once()
	poster.On("Post", mock.Anything, mocks.ForPath(updateRolesPath)).Return(mocks.JSONResponse(updateRolesPath, `{"Errors":null}`), nil).Once()
	poster.On("Post", mock.Anything, mocks.ForPath(allocationPath)).Return(mocks.JSONResponse(allocationPath, allocationBody("145161")), nil).Once()

	ok, err := s.Allocate(context.Background(), AllocationRequest{
		DocType: Proc, Vessel: "CHEM MIA", Category: "MEDICINE", Role: "Technical Superintendent",
		Users: []string{"Geva", "Bucur"},
	})
	require.NoError(t, err)
	assert.False(t, ok, "the second user never appeared on the role")
}

func TestAllocate_JobUsesCycleTemplate(t *testing.T) {
	s, poster := newService(t)
	poster.On("Post", mock.Anything, mocks.ForPath(categoriesPath)).Return(mocks.JSONResponse(categoriesPath, categoriesBody), nil)
	poster.On("Post", mock.Anything, mocks.ForPath(cycleTemplatesPath)).Return(mocks.JSONResponse(cycleTemplatesPath,
		`{"Data":[{"Id":55,"Name":"Spares Approval"},{"Id":56,"Name":"Other"}],"Total":2}`), nil)
	poster.On("Post", mock.Anything, mock.MatchedBy(func(req client.Request) bool {
		cycle, _ := req.Form.Get("CycleTemplateId")
		return req.Path == allocationPath && cycle == "55"
	})).Return(mocks.JSONResponse(allocationPath,
		`{"Data":[{"Id":7,"Code":"TSI","Name":"Technical Superintendent","UserIds":"","ApprovalCycleTemplateId":55,"ApprovalTemplateId":0,"VesselAllocationId":77}],"Total":1}`), nil).Once()
	poster.On("Post", mock.Anything, mock.MatchedBy(func(req client.Request) bool {
		tmpl, _ := req.Form.Get("ApprovalTemplateId")
		return req.Path == updateRolesPath && tmpl == "0"
	})).Return(mocks.JSONResponse(updateRolesPath, ``), nil).Once()
	poster.On("Post", mock.Anything, mocks.ForPath(allocationPath)).Return(mocks.JSONResponse(allocationPath,
		`{"Data":[{"Id":7,"Code":"TSI","Name":"Technical Superintendent","UserIds":"","ApprovalCycleTemplateId":55,"ApprovalTemplateId":0,"VesselAllocationId":77}],"Total":1}`), nil).Once()

	ok, err := s.Allocate(context.Background(), AllocationRequest{
		DocType: Job, Vessel: "CHEM MIA", Category: "SPARES", Role: "Technical Superintendent",
		Template: "spares approval",
	})
	require.NoError(t, err)
	assert.True(t, ok, "an empty request clears the role")
}

func TestAllocate_Failures(t *testing.T) {
	t.Run("job without template", func(t *testing.T) {
		s, _ := newService(t)
		_, err := s.Allocate(context.Background(), AllocationRequest{DocType: Job, Vessel: "CHEM MIA"})
		assert.Error(t, err)
	})

	t.Run("unknown user propagates not found", func(t *testing.T) {
		s, _ := newService(t)
		_, err := s.Allocate(context.Background(), AllocationRequest{
			DocType: Proc, Vessel: "CHEM MIA", Category: "MEDICINE", Role: "x", Users: []string{"nobody"},
		})
		var nf *palerr.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "user", nf.Kind)
	})

	t.Run("unknown vessel", func(t *testing.T) {
		s, _ := newService(t)
		_, err := s.Allocate(context.Background(), AllocationRequest{DocType: Proc, Vessel: "CHEM ZEALOT"})
		var nf *palerr.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "vessel", nf.Kind)
	})

	t.Run("unknown role", func(t *testing.T) {
		s, poster := newService(t)
		poster.On("Post", mock.Anything, mocks.ForPath(categoriesPath)).Return(mocks.JSONResponse(categoriesPath, categoriesBody), nil)
		poster.On("Post", mock.Anything, mocks.ForPath(allocationPath)).Return(mocks.JSONResponse(allocationPath, allocationBody("")), nil)
		_, err := s.Allocate(context.Background(), AllocationRequest{DocType: Proc, Vessel: "CHEM MIA", Category: "MEDICINE", Role: "Chief Cook"})
		var nf *palerr.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "role", nf.Kind)
	})

	t.Run("unconfigured vessel", func(t *testing.T) {
		s, poster := newService(t)
		poster.On("Post", mock.Anything, mocks.ForPath(categoriesPath)).Return(mocks.JSONResponse(categoriesPath, categoriesBody), nil)
		poster.On("Post", mock.Anything, mocks.ForPath(allocationPath)).Return(mocks.JSONResponse(allocationPath,
			`{"Data":[{"Id":7,"Code":"TSI","Name":"TSI","ApprovalCycleTemplateId":0,"ApprovalTemplateId":0,"VesselAllocationId":0}]}`), nil)
		ok, err := s.Allocate(context.Background(), AllocationRequest{DocType: Proc, Vessel: "CHEM MIA", Category: "MEDICINE", Role: "TSI"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("vendor rejects update", func(t *testing.T) {
		s, poster := newService(t)
		poster.On("Post", mock.Anything, mocks.ForPath(categoriesPath)).Return(mocks.JSONResponse(categoriesPath, categoriesBody), nil)
		poster.On("Post", mock.Anything, mocks.ForPath(allocationPath)).Return(mocks.JSONResponse(allocationPath, allocationBody("")), nil)
		poster.On("Post", mock.Anything, mocks.ForPath(updateRolesPath)).Return(nil,
			&palerr.VendorRequestError{Endpoint: updateRolesPath, Message: "User is inactive"})
		_, err := s.Allocate(context.Background(), AllocationRequest{DocType: Proc, Vessel: "CHEM MIA", Category: "MEDICINE", Role: "TSI", Users: []string{"geva"}})
		var ve *palerr.VendorRequestError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "User is inactive", ve.Message)
	})
}

func TestVerify(t *testing.T) {
	a := &Allocation{Roles: []Role{{Code: "TSI", UserIDs: "1, 2,3", ApprovalCycleTemplateID: "5", ApprovalTemplateID: "6", VesselAllocationID: "7"}}}
	assert.True(t, Verify(a, "TSI", "5", "6", "7", "3,1"))
	assert.False(t, Verify(a, "TSI", "5", "6", "7", "4"))
	assert.False(t, Verify(a, "TSI", "9", "6", "7", "1"))
	assert.False(t, Verify(a, "PM", "5", "6", "7", "1"))
}

func TestVerify_ClearedRole(t *testing.T) {
	testCases := []struct {
		name    string
		current string
		want    bool
	}{
		{"users kept", "145161,149755", false},
		{"role emptied", "", true},
		{"only separators", " , ", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := &Allocation{Roles: []Role{{Code: "MGR", UserIDs: tc.current, ApprovalCycleTemplateID: "7", ApprovalTemplateID: "8", VesselAllocationID: "9"}}}
			assert.Equal(t, tc.want, Verify(a, "MGR", "7", "8", "9", ""))
		})
	}
}

func TestPendingApprovals(t *testing.T) {
	s, poster := newService(t)
	poster.On("Post", mock.Anything, mock.MatchedBy(func(req client.Request) bool {
		pt, _ := req.Form.Get("pageType")
		return req.Path == approvalListPath && pt == "AQT_DEF"
	})).Return(mocks.JSONResponse(approvalListPath,
		`{"Data":[{"Id":1,"Document":"QC-1","TakenBy":"Nir Geva","Status":"Approved"}],"Total":1}`), nil)

	approvals, err := s.PendingApprovals(context.Background(), 42, "qc")
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "Approved", approvals[0].Status)

	_, err = s.PendingApprovals(context.Background(), 42, "INV")
	assert.Error(t, err)
}

func TestGeneralQuery(t *testing.T) {
	s, poster := newService(t)
	poster.On("Post", mock.Anything, mocks.ForPath(categoriesPath)).Return(mocks.JSONResponse(categoriesPath, categoriesBody), nil)
	poster.On("Post", mock.Anything, mock.MatchedBy(func(req client.Request) bool {
		if req.Path != generalQueryPath {
			return false
		}
		vessels, _ := req.Form.Get("NewVesselObjectId")
		where, _ := req.Form.Get("WhereConditions")
		return vessels == "9001,9002" &&
			assert.Contains(t, where, `docType: "4"`) &&
			assert.Contains(t, where, `Search1Date: "01-Jan-2023"`) &&
			assert.Contains(t, where, `CategoriesMultiList: "201205"`)
	})).Return(mocks.JSONResponse(generalQueryPath, `{"Data":[{"DocNo":"PO-1"},{"DocNo":"PO-2"}],"Total":2}`), nil)

	docs, err := s.GeneralQuery(context.Background(), []string{"CHEM MIA", "CHEM HOUSTON"}, 2023, QueryPurchaseOrder, []string{"MEDICINE"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "PO-2", docs[1]["DocNo"])
}
