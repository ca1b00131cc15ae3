// Package demographic turns the ethnicity and race codes reported on a loan
// application into one mutually exclusive demographic group.
//
// Classification runs in two steps. MapRace resolves a single race code
// (main category or any of its subcategory codes) to a Category, treating
// refused, not-applicable, no-co-applicant and unknown codes as
// CategoryInvalid. Classify then applies Hispanic precedence and collapses
// the mapped categories to a distinct set before deciding between a single
// race and multi-racial.
//
// Nothing in this package returns an error: malformed input degrades to
// CategoryInvalid or to GroupNone.
package demographic
