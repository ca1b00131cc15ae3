package handler

import (
	"time"

	"hmdamart/internal/incremental"
	"hmdamart/internal/incremental/ports"
)

type PartitionResponse struct {
	Year     int            `json:"year"`
	Records  int            `json:"records"`
	Attempts int            `json:"attempts,omitempty"`
	Groups   map[string]int `json:"groups,omitempty"`
}

type RunResponse struct {
	RunID       string              `json:"run_id"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	Watermark   int                 `json:"watermark,omitempty"`
	Records     int                 `json:"records"`
	Partitions  []PartitionResponse `json:"partitions"`
	FailedYears []int               `json:"failed_years,omitempty"`
	Error       string              `json:"error,omitempty"`
}

type StatusResponse struct {
	State      string              `json:"state"`
	LastRun    *RunResponse        `json:"last_run,omitempty"`
	Partitions []PartitionResponse `json:"partitions,omitempty"`
}

// FromResult converts a run result; err, when set, is reported as the run's
// error message.
func FromResult(res *incremental.RunResult, err error) RunResponse {
	out := RunResponse{
		RunID:       res.RunID.String(),
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Watermark:   res.Watermark,
		Records:     res.Records(),
		Partitions:  make([]PartitionResponse, 0, len(res.Partitions)),
		FailedYears: res.FailedYears,
	}
	for _, p := range res.Partitions {
		out.Partitions = append(out.Partitions, PartitionResponse{
			Year:     p.Year,
			Records:  p.Records,
			Attempts: p.Attempts,
			Groups:   p.Summary.Groups(),
		})
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func FromPartitions(parts []ports.PartitionInfo) []PartitionResponse {
	out := make([]PartitionResponse, len(parts))
	for i, p := range parts {
		out[i] = PartitionResponse{Year: p.Year, Records: p.Records}
	}
	return out
}
