package demographic

import "hmdamart/internal/loan/models"

// Group is the single demographic outcome for one applicant. Exactly one
// group applies to every record.
type Group uint8

const (
	GroupNone Group = iota
	GroupHispanic
	GroupNativeAmerican
	GroupAsian
	GroupBlack
	GroupPacificIslander
	GroupWhite
	GroupMultiRacial
)

func (g Group) String() string {
	switch g {
	case GroupHispanic:
		return "hispanic"
	case GroupNativeAmerican:
		return "native_american"
	case GroupAsian:
		return "asian"
	case GroupBlack:
		return "black"
	case GroupPacificIslander:
		return "pacific_islander"
	case GroupWhite:
		return "white"
	case GroupMultiRacial:
		return "multi_racial"
	default:
		return "none"
	}
}

func groupFor(c Category) Group {
	switch c {
	case CategoryNativeAmerican:
		return GroupNativeAmerican
	case CategoryAsian:
		return GroupAsian
	case CategoryBlack:
		return GroupBlack
	case CategoryPacificIslander:
		return GroupPacificIslander
	case CategoryWhite:
		return GroupWhite
	default:
		return GroupNone
	}
}

// Demographics is the classification result for one applicant. The boolean
// flags are all derived from Group, so at most one of them is ever true.
type Demographics struct {
	Group      Group
	Categories []Category
}

func (d Demographics) IsHispanic() bool         { return d.Group == GroupHispanic }
func (d Demographics) IsNativeAmerican() bool   { return d.Group == GroupNativeAmerican }
func (d Demographics) IsAsian() bool            { return d.Group == GroupAsian }
func (d Demographics) IsBlack() bool            { return d.Group == GroupBlack }
func (d Demographics) IsPacificIslander() bool  { return d.Group == GroupPacificIslander }
func (d Demographics) IsWhite() bool            { return d.Group == GroupWhite }
func (d Demographics) IsMultiRacial() bool      { return d.Group == GroupMultiRacial }
func (d Demographics) HasDemographicData() bool { return d.Group != GroupNone }

// Classify derives the demographic group for one applicant.
//
// Order matters:
//  1. any Hispanic ethnicity code wins outright, whatever the race codes say;
//  2. race codes are mapped and collapsed to distinct categories, so two Asian
//     subcodes count once;
//  3. zero categories is no data, one is that race, two or more is
//     multi-racial.
func Classify(a models.Applicant) Demographics {
	for _, code := range a.Ethnicity {
		if IsHispanicCode(code) {
			return Demographics{Group: GroupHispanic}
		}
	}

	cats := DistinctCategories(a.Race)
	switch len(cats) {
	case 0:
		return Demographics{Group: GroupNone}
	case 1:
		return Demographics{Group: groupFor(cats[0]), Categories: cats}
	default:
		return Demographics{Group: GroupMultiRacial, Categories: cats}
	}
}

// ClassifyRecord classifies a loan record using the primary applicant's
// fields. Co-applicant codes are carried on the raw record but do not take
// part in classification.
func ClassifyRecord(r models.RawLoanRecord) Demographics {
	return Classify(r.Applicant)
}

// DistinctCategories maps every race code and returns the distinct valid
// categories in first-seen order.
func DistinctCategories(codes [models.ApplicantFields]string) []Category {
	var seen [CategoryWhite + 1]bool
	var out []Category
	for _, code := range codes {
		c := MapRace(code)
		if !c.IsValid() || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
