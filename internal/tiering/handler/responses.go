package handler

import (
	"hmdamart/internal/tiering"
)

type TractResponse struct {
	Tract            string  `json:"tract,omitempty"`
	MinorityPct      float64 `json:"minority_pct"`
	Tier             string  `json:"tier"`
	MajorityMinority bool    `json:"majority_minority"`
}

type CutsResponse struct {
	Q1 float64 `json:"q1"`
	Q2 float64 `json:"q2"`
	Q3 float64 `json:"q3"`
}

type RegionResponse struct {
	MSA    string          `json:"msa"`
	Year   int             `json:"year"`
	Mode   string          `json:"mode"`
	Cuts   *CutsResponse   `json:"cuts,omitempty"`
	Counts map[string]int  `json:"counts"`
	Tracts []TractResponse `json:"tracts"`
}

func FromTract(t tiering.TractTier) TractResponse {
	return TractResponse{
		Tract:            t.Tract,
		MinorityPct:      t.MinorityPct,
		Tier:             t.Tier.String(),
		MajorityMinority: t.MajorityMinority,
	}
}

func FromRegion(r *tiering.RegionTiers) RegionResponse {
	out := RegionResponse{
		MSA:    r.MSA,
		Year:   r.Year,
		Mode:   string(r.Mode),
		Counts: r.Counts(),
		Tracts: make([]TractResponse, len(r.Tracts)),
	}
	if r.Cuts != nil {
		out.Cuts = &CutsResponse{Q1: r.Cuts.Q1, Q2: r.Cuts.Q2, Q3: r.Cuts.Q3}
	}
	for i, t := range r.Tracts {
		out.Tracts[i] = FromTract(t)
	}
	return out
}
