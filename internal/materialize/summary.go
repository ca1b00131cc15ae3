package materialize

import (
	"hmdamart/internal/loan/models"
)

// Summary holds the conditional counts reporting runs over a derived batch.
type Summary struct {
	Records          int
	Hispanic         int
	NativeAmerican   int
	Asian            int
	Black            int
	PacificIslander  int
	White            int
	MultiRacial      int
	NoDemographic    int
	LMIBorrowers     int
	LMITracts        int
	MajorityMinority int
}

// Add folds one record into the summary.
func (s *Summary) Add(r models.ClassifiedLoanRecord) {
	s.Records++
	switch {
	case r.IsHispanic:
		s.Hispanic++
	case r.IsNativeAmerican:
		s.NativeAmerican++
	case r.IsAsian:
		s.Asian++
	case r.IsBlack:
		s.Black++
	case r.IsPacificIslander:
		s.PacificIslander++
	case r.IsWhite:
		s.White++
	case r.IsMultiRacial:
		s.MultiRacial++
	default:
		s.NoDemographic++
	}
	if r.IsLMIBorrower {
		s.LMIBorrowers++
	}
	if r.IsLMITract {
		s.LMITracts++
	}
	if r.IsMajorityMinorityTract {
		s.MajorityMinority++
	}
}

// Merge adds other into s.
func (s *Summary) Merge(other Summary) {
	s.Records += other.Records
	s.Hispanic += other.Hispanic
	s.NativeAmerican += other.NativeAmerican
	s.Asian += other.Asian
	s.Black += other.Black
	s.PacificIslander += other.PacificIslander
	s.White += other.White
	s.MultiRacial += other.MultiRacial
	s.NoDemographic += other.NoDemographic
	s.LMIBorrowers += other.LMIBorrowers
	s.LMITracts += other.LMITracts
	s.MajorityMinority += other.MajorityMinority
}

// Groups returns the demographic counts keyed by group name.
func (s Summary) Groups() map[string]int {
	return map[string]int{
		"hispanic":         s.Hispanic,
		"native_american":  s.NativeAmerican,
		"asian":            s.Asian,
		"black":            s.Black,
		"pacific_islander": s.PacificIslander,
		"white":            s.White,
		"multi_racial":     s.MultiRacial,
		"none":             s.NoDemographic,
	}
}

// Summarize counts a batch.
func Summarize(records []models.ClassifiedLoanRecord) Summary {
	var s Summary
	for _, r := range records {
		s.Add(r)
	}
	return s
}
