// internal/purchase/query.go
package purchase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bogdanrbucur/pal-e3/internal/client"
)

// Document kinds accepted by the general query.
const (
	QueryRequisition   = 1
	QueryPurchaseOrder = 4
)

const generalQueryPageSize = 50000

// whereConditions is the object literal the general query screen posts.
// The vendor parses it leniently; keys are unquoted.
var whereConditions = strings.Join([]string{
	`whereclause: ""`,
	`queryType: 0`,
	`CycleCompletewhereclause: ""`,
	`FLAG_PCC: false`,
	`condition1: "Select Any"`,
	`docType: "{docType}"`,
	`SearchCondition1: "Select Any"`,
	`Search1Date: "01-Jan-{year}"`,
	`Search1Dates: "01-Jan-{year}"`,
	`documentPaymentMultiList1: ""`,
	`StatusFilter1: ""`,
	`obj: "4"`,
	`ItemIds1: ""`,
	`AccountIds1: ""`,
	`VesselObjectId_Conv: null`,
	`combEntity1: ""`,
	`EntityId1: ""`,
	`txtSearch1: ""`,
	`getFilters_txtSearch1: null`,
	`Condition2: "Select Any"`,
	`SearchCondition2: "Select Any"`,
	`Search2Date: "01-Jan-{year}"`,
	`Search2Dates: "01-Jan-{year}"`,
	`Filter1: "0"`,
	`StatusFilter2: ""`,
	`documentPoMultiList2: ""`,
	`documentInvoiceMultiList2: ""`,
	`documentPaymentMultiList2: ""`,
	`Filter2: "0"`,
	`ItemIds2: ""`,
	`combEntity2: ""`,
	`EntityId2: ""`,
	`AccountIds2: ""`,
	`txtSearch2: ""`,
	`getFilters_txtSearch2: null`,
	`documentPoMultiList1: ""`,
	`documentInvoiceMultiList1: ""`,
	`Condition3: "Select Any"`,
	`SearchCondition3: "Select Any"`,
	`Search3Date: "01-Jan-{year}"`,
	`Search3Dates: "01-Jan-{year}"`,
	`StatusFilter3: ""`,
	`documentPoMultiList3: ""`,
	`documentInvoiceMultiList3: ""`,
	`documentPaymentMultiList3: ""`,
	`ItemIds3: ""`,
	`combEntity3: ""`,
	`EntityId3: ""`,
	`AccountIds3: ""`,
	`txtSearch3: ""`,
	`getFilters_txtSearch3: null`,
	`cashPO1: false`,
	`cashPO2: false`,
	`GeneralVendorId: ""`,
	`PortId: ""`,
	`CategoriesMultiList: "{categories}"`,
	`DocumentIn: "0"`,
}, ", ")

// GeneralQuery returns the purchase documents of the given kind raised in
// year on vessels, restricted to the named PROC categories.
func (s *Service) GeneralQuery(ctx context.Context, vessels []string, year, docKind int, categories []string) ([]map[string]any, error) {
	objectIDs, err := s.dir.VesselObjectIDs(ctx, vessels)
	if err != nil {
		return nil, err
	}
	categoryIDs, err := s.CategoryIDs(ctx, categories, Proc)
	if err != nil {
		return nil, err
	}

	where := strings.NewReplacer(
		"{docType}", fmt.Sprint(docKind),
		"{year}", fmt.Sprint(year),
		"{categories}", categoryIDs,
	).Replace(whereConditions)

	form := client.NewForm().
		GridDefaults().
		Add("ObjectId", "").
		Add("whereClause", "").
		Add("CycleCompletewhereclause", "").
		Add("vesselId", "").
		Add("vesselCompanyId", "").
		Add("vesselOwnerId", "").
		Add("fleetId", "").
		Add("vesselGroupId", "").
		Add("page", 1).
		Add("pageSize", generalQueryPageSize).
		Add("flag", true).
		Add("FLAG_PCC", false).
		Add("QueryType", 0).
		Add("isAllVessels", true).
		Add("CrewManaged", true).
		Add("DateFilter", 6).
		Add("NewVesselObjectId", objectIDs).
		Add("selectedYear", year).
		Add("WhereConditions", "{"+where+"}")

	resp, err := s.poster.Post(ctx, client.Request{Path: generalQueryPath, Encoding: client.Multipart, Form: form})
	if err != nil {
		return nil, fmt.Errorf("general query: %w", err)
	}
	var docs []map[string]any
	total, err := resp.DecodeData(&docs)
	if err != nil {
		return nil, fmt.Errorf("general query: %w", err)
	}
	s.logger.Info("General query completed.", zap.Int("total", total), zap.Int("vessels", len(vessels)))
	return docs, nil
}
