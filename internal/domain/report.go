package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	Path string `json:"path"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Rows    []Row         `json:"rows"`
}

type ReportSummary struct {
	Complete       int `json:"complete"`
	Errored        int `json:"errored"`
	Disambiguation int `json:"disambiguation"`
	Pending        int `json:"pending"`
	Invalid        int `json:"invalid_mapcode"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) rows 稳定排序：按 Candidate.Position 升序（展示顺序与完成顺序无关）
// 3) summary 由 rows 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Rows, func(i, j int) bool {
		return r.Rows[i].Candidate.Position < r.Rows[j].Candidate.Position
	})

	var s ReportSummary
	for _, row := range r.Rows {
		switch row.State.Status {
		case StatusComplete:
			s.Complete++
		case StatusError:
			s.Errored++
		case StatusDisambiguation:
			s.Disambiguation++
		case StatusPending, StatusEnriching:
			s.Pending++
		}
		if row.MapcodeInvalid {
			s.Invalid++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
