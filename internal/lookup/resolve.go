// internal/lookup/resolve.go
package lookup

import (
	"strings"

	"github.com/bogdanrbucur/pal-e3/internal/palerr"
)

// ResolvedUsers is the result of a fuzzy user lookup, in directory order.
type ResolvedUsers struct {
	IDs   []string
	Names []string
}

// IDList joins the ids the way the vendor's allocation forms expect them.
func (r ResolvedUsers) IDList() string { return strings.Join(r.IDs, ",") }

// NameList joins the display names.
func (r ResolvedUsers) NameList() string { return strings.Join(r.Names, ",") }

// Empty reports whether nothing was resolved.
func (r ResolvedUsers) Empty() bool { return len(r.IDs) == 0 }

// ResolveUsers returns every user whose name contains any of the fragments,
// ignoring case. A fragment may deliberately match several people. Zero
// matches is a NotFoundError; blank fragments are ignored.
func ResolveUsers(users []User, fragments []string) (ResolvedUsers, error) {
	needles := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f = strings.TrimSpace(f); f != "" {
			needles = append(needles, strings.ToUpper(f))
		}
	}
	if len(needles) == 0 {
		return ResolvedUsers{}, palerr.NewNotFoundError("user", strings.Join(fragments, ","))
	}

	var out ResolvedUsers
	for _, u := range users {
		name := strings.ToUpper(u.Name)
		for _, n := range needles {
			if strings.Contains(name, n) {
				out.IDs = append(out.IDs, u.UserID.String())
				out.Names = append(out.Names, u.Name)
				break
			}
		}
	}
	if out.Empty() {
		return ResolvedUsers{}, palerr.NewNotFoundError("user", strings.Join(fragments, ","))
	}
	return out, nil
}

// MatchVessels returns the vessels whose names equal one of names, ignoring
// case, in directory order. Zero matches is a NotFoundError.
func MatchVessels(vessels []Vessel, names []string) ([]Vessel, error) {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[strings.ToUpper(strings.TrimSpace(n))] = struct{}{}
	}

	var out []Vessel
	for _, v := range vessels {
		if _, ok := wanted[strings.ToUpper(v.VesselName)]; ok {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, palerr.NewNotFoundError("vessel", strings.Join(names, ","))
	}
	return out, nil
}

func joinIDs(vessels []Vessel, pick func(Vessel) ID) string {
	ids := make([]string, len(vessels))
	for i, v := range vessels {
		ids[i] = pick(v).String()
	}
	return strings.Join(ids, ",")
}
