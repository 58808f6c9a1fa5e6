// internal/crewing/planned.go
package crewing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bogdanrbucur/pal-e3/internal/client"
	"github.com/bogdanrbucur/pal-e3/internal/lookup"
	"github.com/bogdanrbucur/pal-e3/internal/paldate"
)

// contactLookups bounds the concurrent contact requests of one plan read.
const contactLookups = 4

// Contacts are a seafarer's contact details.
type Contacts struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
	Skype   string `json:"skype"`
}

// CrewChange is one planned relief, with the reliever's contacts.
type CrewChange struct {
	Vessel        string   `json:"vessel"`
	Rank          string   `json:"rank"`
	OffSigner     string   `json:"off_name"`
	OffDueDate    string   `json:"off_due_date"`
	PlannedRelief string   `json:"planned_relief"`
	Reliever      string   `json:"on_name"`
	OnJoinDate    string   `json:"on_join_date"`
	Port          string   `json:"port"`
	Remarks       string   `json:"remarks"`
	OnCrewAgent   string   `json:"on_crew_agent"`
	OffCrewAgent  string   `json:"off_crew_agent"`
	OnContacts    Contacts `json:"on_contacts"`
}

type planRow struct {
	Vessel          string    `json:"Vessel"`
	Rank            string    `json:"Rank"`
	Offsigner       string    `json:"Offsigner"`
	ReliefDue       string    `json:"ReliefDue"`
	PlannedRelief   string    `json:"PlannedRelief"`
	Reliever        string    `json:"Reliever"`
	RelieverEmpID   lookup.ID `json:"RelieverEmpId"`
	ExpJoiningDate  string    `json:"ExpJoiningDate"`
	PlannedPort     string    `json:"PlannedPort"`
	RelieverRemarks string    `json:"RelieverRemarks"`
	CscExt          string    `json:"CscExt"`
	OffCscExt       string    `json:"oFF_CscExt"`
}

// PlannedCrewChanges returns the reliefs planned on vessels between from and
// daysAhead days later, restricted to the rank group codes in ranks
// (1 is master, 31 chief engineer).
func (s *Service) PlannedCrewChanges(ctx context.Context, vessels []string, from time.Time, daysAhead int, ranks []int) ([]CrewChange, error) {
	objectIDs, err := s.dir.VesselObjectIDs(ctx, vessels)
	if err != nil {
		return nil, err
	}
	to := from.AddDate(0, 0, daysAhead)

	form := client.NewForm().
		Add("sort", "").
		Add("page", 1).
		Add("pageSize", 1000).
		Add("group", "").
		Add("filter", "").
		Add("ownersArray", "").
		Add("sdcsArray[]", 1).
		Add("fromDate", paldate.FormatVendor(from)).
		Add("toDate", paldate.FormatVendor(to)).
		Add("workGroupArray", "").
		Add("rankArray", "").
		Add("vslSubGroupArray", "").
		Add("vslTypeArray", "").
		Add("IsReliefDue", true).
		Add("Days", 12).
		Add("ShowFullName", "Y").
		Add("IsMonths", "P").
		Add("isShowClicked", true).
		Add("isShowClickedPageSize", true).
		Add("ExcludePlanned", false).
		Add("CheckLineUpCandidate", "N").
		Add("CheckIncludeOnboard", "N").
		Add("isMISRank", "N").
		Add("ApprovedPlansOnly", "N").
		Add("PendingPlansOnly", "N")
	for _, id := range strings.Split(objectIDs, ",") {
		form.Add("vesselArray[]", id).Add("commonVesselArray[]", id)
	}
	for _, r := range ranks {
		form.Add("rankGrpArray[]", r)
	}

	resp, err := s.poster.Post(ctx, client.Request{Path: plannedChangesPath, Encoding: client.URLEncoded, Form: form})
	if err != nil {
		return nil, fmt.Errorf("read planned crew changes: %w", err)
	}
	var rows []planRow
	if _, err := resp.DecodeData(&rows); err != nil {
		return nil, fmt.Errorf("read planned crew changes: %w", err)
	}

	changes := make([]CrewChange, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(contactLookups)
	for i, r := range rows {
		changes[i] = CrewChange{
			Vessel:        r.Vessel,
			Rank:          r.Rank,
			OffSigner:     r.Offsigner,
			OffDueDate:    paldate.ShortDate(r.ReliefDue),
			PlannedRelief: r.PlannedRelief,
			Reliever:      r.Reliever,
			OnJoinDate:    r.ExpJoiningDate,
			Port:          r.PlannedPort,
			Remarks:       r.RelieverRemarks,
			OnCrewAgent:   r.CscExt,
			OffCrewAgent:  r.OffCscExt,
		}
		if r.RelieverEmpID == "" || r.RelieverEmpID == "0" {
			continue
		}
		g.Go(func() error {
			c, err := s.SeafarerContacts(gctx, r.RelieverEmpID.String())
			if err != nil {
				return err
			}
			changes[i].OnContacts = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Debug("Read planned crew changes.", zap.Int("count", len(changes)), zap.Int("days_ahead", daysAhead))
	return changes, nil
}

// SeafarerContacts reads the contact details of employee empID.
func (s *Service) SeafarerContacts(ctx context.Context, empID string) (Contacts, error) {
	form := client.NewForm().Add("EmpId", empID).Add("localLang", "N")
	resp, err := s.poster.Post(ctx, client.Request{Path: contactsPath, Encoding: client.URLEncoded, Form: form})
	if err != nil {
		return Contacts{}, fmt.Errorf("read contacts of employee %s: %w", empID, err)
	}
	var raw struct {
		Email       string `json:"Email"`
		PPhone1Code string `json:"PPhone1Code"`
		PPhone1     string `json:"PPhone1"`
		PMobileCode string `json:"PMobileCode"`
		PMobile     string `json:"PMobile"`
		PAddress1   string `json:"PAddress1"`
		PCity       string `json:"PCity"`
		SkypeOrIm   string `json:"SkypeOrIm"`
	}
	if err := resp.Decode(&raw); err != nil {
		return Contacts{}, fmt.Errorf("read contacts of employee %s: %w", empID, err)
	}
	return Contacts{
		Email:   raw.Email,
		Phone:   raw.PPhone1Code + raw.PPhone1,
		Mobile:  raw.PMobileCode + raw.PMobile,
		Address: raw.PAddress1 + raw.PCity,
		Skype:   raw.SkypeOrIm,
	}, nil
}
