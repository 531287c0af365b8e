package main

import (
	"strings"
	"testing"

	"github.com/John-Robertt/JPEX/internal/domain"
)

func TestRenderRows(t *testing.T) {
	bad := "12 34"
	rows := []domain.Row{
		{
			ID:          "0",
			Candidate:   domain.Candidate{MainName: "Hotel New Tsuruta"},
			State:       domain.StateComplete(),
			DisplayName: "Hotel New Tsuruta (ホテルニューツルタ)",
			Mapcode:     "46 374 016*85",
		},
		{
			ID:             "1",
			Candidate:      domain.Candidate{MainName: "Nagasaki House Burabura"},
			State:          domain.StateError(domain.ErrCodeNoMatch, "no potential places found."),
			Overrides:      domain.Overrides{Mapcode: &bad},
			MapcodeInvalid: true,
		},
		{
			ID:        "2",
			Candidate: domain.Candidate{MainName: "Tap Stay Hotel Saga"},
			State: domain.StateDisambiguation([]domain.Match{
				{ExternalID: "p1", Name: "A"},
				{ExternalID: "p2", Name: "B"},
			}),
		},
	}

	out := renderRows(rows)

	for _, want := range []string{
		"PLACE",
		"Hotel New Tsuruta (ホテルニューツルタ)",
		"46 374 016*85",
		"12 34 (!)", // 非法 mapcode 的标记
		"no potential places found.",
		"jpex select 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("表格缺少 %q：\n%s", want, out)
		}
	}
}
