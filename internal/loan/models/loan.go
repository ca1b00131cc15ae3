package models

import (
	"time"

	"github.com/google/uuid"

	"hmdamart/internal/income"
)

// ApplicantFields is the number of ethnicity and race slots a LAR row carries
// per applicant.
const ApplicantFields = 5

// Applicant holds one applicant's self-reported ethnicity and race codes.
// Empty strings mean the slot was not filled.
type Applicant struct {
	Ethnicity [ApplicantFields]string
	Race      [ApplicantFields]string
}

// RawLoanRecord is one loan application row as issued by the source feed.
// It is never mutated by this module.
type RawLoanRecord struct {
	ID            string
	Year          int
	LEI           string
	StateCode     string
	CountyCode    string
	CensusTract   string
	MSAMD         string
	LoanPurpose   string
	LoanType      string
	ActionTaken   string
	LoanAmount    float64
	PropertyValue *float64

	// Income is reported in thousands of dollars.
	Income      *float64
	Applicant   Applicant
	CoApplicant Applicant

	// Geography columns joined upstream.
	AreaMedianIncome     *float64
	TractMinorityPct     *float64
	TractToAreaIncomePct *float64
}

// ClassifiedLoanRecord is the derived row appended to the materialized store.
type ClassifiedLoanRecord struct {
	ID            string
	Year          int
	LEI           string
	StateCode     string
	CountyCode    string
	CensusTract   string
	MSAMD         string
	LoanPurpose   string
	LoanType      string
	ActionTaken   string
	LoanAmount    float64
	PropertyValue *float64

	IsHispanic         bool
	IsBlack            bool
	IsAsian            bool
	IsWhite            bool
	IsNativeAmerican   bool
	IsPacificIslander  bool
	IsMultiRacial      bool
	HasDemographicData bool

	BorrowerIncomeTier income.Tier
	IsLMIBorrower      bool
	TractIncomeTier    income.Tier
	IsLMITract         bool

	IsMajorityMinorityTract bool
	TractMinorityPct        *float64

	RunID          uuid.UUID
	MaterializedAt time.Time
}
