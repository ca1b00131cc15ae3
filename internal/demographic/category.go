package demographic

import "strings"

// Category is one of the five top-level race groupings a race code resolves
// to. The zero value is CategoryInvalid.
type Category uint8

const (
	CategoryInvalid Category = iota
	CategoryNativeAmerican
	CategoryAsian
	CategoryBlack
	CategoryPacificIslander
	CategoryWhite
)

// Categories lists the valid categories in display order.
var Categories = []Category{
	CategoryNativeAmerican,
	CategoryAsian,
	CategoryBlack,
	CategoryPacificIslander,
	CategoryWhite,
}

func (c Category) String() string {
	switch c {
	case CategoryNativeAmerican:
		return "native_american"
	case CategoryAsian:
		return "asian"
	case CategoryBlack:
		return "black"
	case CategoryPacificIslander:
		return "pacific_islander"
	case CategoryWhite:
		return "white"
	default:
		return "invalid"
	}
}

// IsValid reports whether c is one of the five canonical categories.
func (c Category) IsValid() bool {
	return c >= CategoryNativeAmerican && c <= CategoryWhite
}

// MapRace resolves a race code to its canonical category. Codes for "not
// provided", "not applicable", "no co-applicant", blanks and anything unknown
// resolve to CategoryInvalid.
func MapRace(code string) Category {
	return raceCategories[strings.TrimSpace(code)]
}

// IsHispanicCode reports whether an ethnicity code denotes Hispanic or Latino
// origin, including the origin subcodes.
func IsHispanicCode(code string) bool {
	_, ok := hispanicCodes[strings.TrimSpace(code)]
	return ok
}
