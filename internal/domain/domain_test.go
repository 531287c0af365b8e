package domain

import (
	"strings"
	"testing"
	"time"
)

func TestDeriveDisplayName(t *testing.T) {
	cases := []struct {
		en, ja, fallback, want string
	}{
		{"Hotel New Tsuruta", "ホテルニューツルタ", "x", "Hotel New Tsuruta (ホテルニューツルタ)"},
		{"Hotel New Tsuruta", "", "x", "Hotel New Tsuruta"},
		{"", "ホテルニューツルタ", "x", "ホテルニューツルタ"},
		{"", "", "Hotel New Tsuruta, Beppu", "Hotel New Tsuruta, Beppu"},
		{"  ", "  ", "  fallback  ", "fallback"},
	}
	for _, c := range cases {
		if got := DeriveDisplayName(c.en, c.ja, c.fallback); got != c.want {
			t.Fatalf("DeriveDisplayName(%q, %q, %q) = %q，期望 %q", c.en, c.ja, c.fallback, got, c.want)
		}
	}
}

func TestState_Terminal(t *testing.T) {
	if !StateComplete().Terminal() || !StateError(ErrCodeNoMatch, "x").Terminal() {
		t.Fatal("complete/error 应为 terminal")
	}
	if StatePending().Terminal() || StateEnriching().Terminal() || StateDisambiguation(nil).Terminal() {
		t.Fatal("pending/enriching/disambiguation 不应为 terminal")
	}
}

func TestStateDisambiguation_CopiesMatches(t *testing.T) {
	src := []Match{{ExternalID: "p1"}}
	st := StateDisambiguation(src)
	src[0].ExternalID = "mutated"
	if st.Matches[0].ExternalID != "p1" {
		t.Fatal("State 不应与调用方共享底层切片")
	}
}

func TestRow_EffectiveValuesPreferOverrides(t *testing.T) {
	empty := ""
	mc := "46 374 016*85"
	r := Row{
		Mapcode:   "1 111 111*11",
		Telephone: "+81 977-22-1110",
		Overrides: Overrides{Mapcode: &mc, Telephone: &empty},
	}
	if r.EffectiveMapcode() != mc {
		t.Fatalf("覆盖值应优先：%q", r.EffectiveMapcode())
	}
	if r.EffectiveTelephone() != "" {
		t.Fatal("覆盖为空串也算覆盖（清掉抓取值）")
	}
	if r.EffectiveAddress() != "" {
		t.Fatal("无覆盖且无抓取值时应为空")
	}
}

func TestRunReport_Finalize(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	rr := RunReport{
		StartedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, loc),
		FinishedAt: time.Date(2025, 3, 1, 12, 0, 5, 0, loc),
		Rows: []Row{
			{ID: "2", Candidate: Candidate{Position: 2}, State: StateError(ErrCodeLookupFailed, "x"), MapcodeInvalid: true},
			{ID: "0", Candidate: Candidate{Position: 0}, State: StateComplete()},
			{ID: "1", Candidate: Candidate{Position: 1}, State: StateDisambiguation([]Match{{}, {}})},
		},
	}
	rr.Finalize()

	if rr.StartedAt.Location() != time.UTC {
		t.Fatal("时间应统一为 UTC")
	}
	order := make([]string, 0, len(rr.Rows))
	for _, r := range rr.Rows {
		order = append(order, r.ID)
	}
	if strings.Join(order, ",") != "0,1,2" {
		t.Fatalf("rows 应按 Position 升序：%v", order)
	}
	s := rr.Summary
	if s.Complete != 1 || s.Errored != 1 || s.Disambiguation != 1 || s.Pending != 0 || s.Invalid != 1 {
		t.Fatalf("summary 不符：%+v", s)
	}
}
