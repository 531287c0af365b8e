package gplaces

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/John-Robertt/JPEX/internal/domain"
)

type stubMapcode struct {
	value string
	err   error
	got   string
}

func (s *stubMapcode) Search(_ context.Context, _ *http.Client, name string) (string, error) {
	s.got = name
	return s.value, s.err
}

func TestLookup_TopThreeMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("region"); got != "jp" {
			t.Errorf("region 应为 jp，实际 %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "Hotel New Tsuruta Beppu" {
			t.Errorf("query 不符：%q", got)
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"place_id":"p1","name":"Hotel New Tsuruta","formatted_address":"Beppu"},
			{"place_id":"p2","name":"Tsuruta Annex","formatted_address":"Beppu"},
			{"place_id":"p3","name":"Tsuruta Onsen","formatted_address":"Beppu"},
			{"place_id":"p4","name":"Noise","formatted_address":"Oita"}]}`))
	}))
	defer srv.Close()

	p := Provider{APIKey: "k", BaseURL: srv.URL}
	matches, err := p.Lookup(context.Background(), domain.Candidate{MainName: "Hotel New Tsuruta", HintCity: "Beppu"}, srv.Client())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("至多返回 3 条匹配，实际 %d", len(matches))
	}
	if matches[0].ExternalID != "p1" || matches[0].Address != "Beppu" {
		t.Fatalf("首条匹配不符：%+v", matches[0])
	}
}

func TestLookup_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	p := Provider{APIKey: "k", BaseURL: srv.URL}
	matches, err := p.Lookup(context.Background(), domain.Candidate{MainName: "Nowhere"}, srv.Client())
	if err != nil {
		t.Fatalf("查无结果不是错误：%v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("期望空匹配，实际 %+v", matches)
	}
}

func TestLookup_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`))
	}))
	defer srv.Close()

	p := Provider{APIKey: "k", BaseURL: srv.URL}
	_, err := p.Lookup(context.Background(), domain.Candidate{MainName: "Beppu Tower"}, srv.Client())
	if err == nil {
		t.Fatal("期望错误")
	}
}

func TestDetail_ComposesENJAAndMapcode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("language") {
		case "en":
			_, _ = w.Write([]byte(`{"status":"OK","result":{"name":"Hotel New Tsuruta","formatted_address":"4-14-2 Kitahama, Beppu","international_phone_number":"+81 977-22-1110"}}`))
		case "ja":
			_, _ = w.Write([]byte(`{"status":"OK","result":{"name":"ホテルニューツルタ"}}`))
		default:
			t.Errorf("未知 language：%v", r.URL)
		}
	}))
	defer srv.Close()

	mc := &stubMapcode{value: "46 374 016*85"}
	p := Provider{APIKey: "k", BaseURL: srv.URL, Mapcode: mc}

	d, err := p.Detail(context.Background(), "p1", "Hotel New Tsuruta", srv.Client())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := domain.EnrichedDetails{
		NameEN:    "Hotel New Tsuruta",
		NameJA:    "ホテルニューツルタ",
		Mapcode:   "46 374 016*85",
		Telephone: "+81 977-22-1110",
		Address:   "4-14-2 Kitahama, Beppu",
	}
	if d != want {
		t.Fatalf("详情不符：\n got=%+v\nwant=%+v", d, want)
	}
	if mc.got != "Hotel New Tsuruta" {
		t.Fatalf("mapcode 检索词应为英文名，实际 %q", mc.got)
	}
}

func TestDetail_MapcodeFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","result":{"name":"Beppu Tower"}}`))
	}))
	defer srv.Close()

	p := Provider{APIKey: "k", BaseURL: srv.URL, Mapcode: &stubMapcode{err: errors.New("blocked")}}
	d, err := p.Detail(context.Background(), "p1", "Beppu Tower", srv.Client())
	if err != nil {
		t.Fatalf("mapcode 失败不应导致详情失败：%v", err)
	}
	if d.Mapcode != "" {
		t.Fatalf("mapcode 失败时应为空串，实际 %q", d.Mapcode)
	}
}

func TestDetail_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"NOT_FOUND"}`))
	}))
	defer srv.Close()

	p := Provider{APIKey: "k", BaseURL: srv.URL}
	if _, err := p.Detail(context.Background(), "p-gone", "x", srv.Client()); err == nil {
		t.Fatal("期望错误")
	}
}
