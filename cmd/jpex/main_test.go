package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseRunArgs(t *testing.T) {
	ra, err := parseRunArgs([]string{"work", "--provider=gplaces", "--concurrency", "5", "--input", "places.txt"})
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if ra.Path != "work" || ra.Provider != "gplaces" || !ra.ProviderSet {
		t.Fatalf("解析结果不符：%+v", ra)
	}
	if ra.Concurrency != 5 || !ra.ConcurrencySet || ra.Input != "places.txt" {
		t.Fatalf("解析结果不符：%+v", ra)
	}
}

func TestParseRunArgs_Rejects(t *testing.T) {
	cases := [][]string{
		{"--provider"},                 // 缺值
		{"--concurrency", "many"},      // 非整数
		{"--unknown"},                  // 未知参数
		{"a", "b"},                     // 重复 path
		{"--demo", "--input", "x.txt"}, // 互斥
		{"--provider="},                // 空值
	}
	for _, args := range cases {
		if _, err := parseRunArgs(args); err == nil {
			t.Fatalf("应拒绝参数 %v", args)
		}
	}
}

func TestParseRunArgs_StdinDash(t *testing.T) {
	ra, err := parseRunArgs([]string{"--input", "-"})
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if ra.Input != "-" {
		t.Fatalf("应接受 \"-\" 作为 stdin：%+v", ra)
	}
}

func TestParseExportArgs(t *testing.T) {
	ea, err := parseExportArgs([]string{"work", "--format=csv", "--out", "places.csv"})
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if ea.Path != "work" || ea.Format != "csv" || ea.Out != "places.csv" {
		t.Fatalf("解析结果不符：%+v", ea)
	}

	ea, err = parseExportArgs(nil)
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if ea.Format != "tsv" {
		t.Fatalf("默认格式应为 tsv：%+v", ea)
	}

	if _, err := parseExportArgs([]string{"--format", "xlsx"}); err == nil {
		t.Fatal("应拒绝未知格式")
	}
}

func TestOnlyPathArg(t *testing.T) {
	if p, err := onlyPathArg(nil); err != nil || p != "" {
		t.Fatalf("空参应通过：p=%q err=%v", p, err)
	}
	if p, err := onlyPathArg([]string{"work"}); err != nil || p != "work" {
		t.Fatalf("单 path 应通过：p=%q err=%v", p, err)
	}
	if _, err := onlyPathArg([]string{"a", "b"}); err == nil {
		t.Fatal("多参数应拒绝")
	}
	if _, err := onlyPathArg([]string{"--flag"}); err == nil {
		t.Fatal("未知参数应拒绝")
	}
}

func TestFirstSentence(t *testing.T) {
	cases := []struct{ in, want string }{
		{"fake 查找失败：超时. 请检查网络后重试", "fake 查找失败：超时."},
		{"查找失败。请稍后重试", "查找失败。"},
		{"no potential places found.", "no potential places found."},
		{"  单句无标点  ", "单句无标点"},
	}
	for _, c := range cases {
		if got := firstSentence(c.in); got != c.want {
			t.Fatalf("firstSentence(%q) = %q，期望 %q", c.in, got, c.want)
		}
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"短句不截断", 10, "短句不截断"},
		{"查找失败：上游服务超时，请稍后重试", 8, "查找失败：..."},
		{"查找失败", 2, "查找"},
		{"abcdef", 5, "ab..."},
		{"  两侧空白  ", 10, "两侧空白"},
	}
	for _, c := range cases {
		got := truncate(c.in, c.max)
		if got != c.want {
			t.Fatalf("truncate(%q, %d) = %q，期望 %q", c.in, c.max, got, c.want)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("截断结果不是合法 UTF-8：%q", got)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	if got := maskSecret(""); got != "<未设置>" {
		t.Fatalf("空密钥展示不符：%q", got)
	}
	if got := maskSecret("abc"); got != "***" {
		t.Fatalf("短密钥应全遮蔽：%q", got)
	}
	got := maskSecret("AIzaSyExample123")
	if !strings.HasPrefix(got, "AIz") || !strings.HasSuffix(got, "123") || strings.Contains(got, "Example") {
		t.Fatalf("长密钥应只露首尾：%q", got)
	}
}
