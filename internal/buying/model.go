// Package buying converts a line item's purchased quantity into a cost and
// into projected impressions, clicks, views and leads. What the quantity
// counts depends on the buying model, so each code maps to a Unit tag and all
// conversions are looked up by that tag.
package buying

import "strings"

type Code string

const (
	CPM      Code = "CPM"
	CPC      Code = "CPC"
	CPV      Code = "CPV"
	CPA      Code = "CPA"
	CPL      Code = "CPL"
	Flat     Code = "FLAT"
	OTC      Code = "OTC"
	FixedCPM Code = "FIXED_CPM"
)

// Unit is what the quantity field of an insertion counts.
type Unit int

const (
	UnitLumpSum Unit = iota
	UnitImpressions
	UnitClicks
	UnitViews
	UnitLeads
)

func (u Unit) String() string {
	switch u {
	case UnitImpressions:
		return "impressions"
	case UnitClicks:
		return "clicks"
	case UnitViews:
		return "views"
	case UnitLeads:
		return "leads"
	default:
		return "lump_sum"
	}
}

var units = map[Code]Unit{
	CPM:      UnitImpressions,
	CPC:      UnitClicks,
	CPV:      UnitViews,
	CPA:      UnitLeads,
	CPL:      UnitLeads,
	Flat:     UnitLumpSum,
	OTC:      UnitLumpSum,
	FixedCPM: UnitLumpSum,
}

// ParseCode normalizes a stored buying-model code. Unrecognized codes come
// back as Flat with ok=false so callers can report them.
func ParseCode(s string) (Code, bool) {
	c := Code(strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToUpper(strings.TrimSpace(s))))
	if _, ok := units[c]; ok {
		return c, true
	}
	return Flat, false
}

// Unit returns the tag for c. Unknown codes are lump sums.
func (c Code) Unit() Unit {
	if u, ok := units[c]; ok {
		return u
	}
	return UnitLumpSum
}

// IsSearchLike reports whether a channel category takes the search CTR.
func IsSearchLike(category string) bool {
	c := strings.ToLower(strings.TrimSpace(category))
	switch c {
	case "sea", "sem", "ppc":
		return true
	}
	return strings.Contains(c, "search")
}

// IsVideo reports whether a format type triggers view estimation.
func IsVideo(formatType string) bool {
	return strings.Contains(strings.ToLower(formatType), "video")
}
