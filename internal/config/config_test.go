package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "jpex.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("写配置失败：%v", err)
	}
}

func TestLoadEffective_CLIPathConfigOptional(t *testing.T) {
	dir := t.TempDir()

	ec, err := LoadEffective(dir, CLIArgs{Path: dir})
	if err != nil {
		t.Fatalf("CLI 给了 path 时配置文件应可选：%v", err)
	}
	if ec.Path != dir {
		t.Fatalf("path 不符：%q", ec.Path)
	}
	if ec.Provider != DefaultProvider || ec.Concurrency != DefaultConcurrency {
		t.Fatalf("默认值不符：%+v", ec)
	}
}

func TestLoadEffective_NoPathRequiresConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadEffective(dir, CLIArgs{})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("缺配置文件应报 %s，实际 %v", ErrCodeNotFound, err)
	}

	writeConfig(t, dir, `{"provider":"gplaces"}`)
	_, err = LoadEffective(dir, CLIArgs{})
	if Code(err) != ErrCodeMissingPath {
		t.Fatalf("缺 path 字段应报 %s，实际 %v", ErrCodeMissingPath, err)
	}

	writeConfig(t, dir, `{"path":"work"}`)
	ec, err := LoadEffective(dir, CLIArgs{})
	if err != nil {
		t.Fatalf("加载失败：%v", err)
	}
	if ec.Path != filepath.Join(dir, "work") {
		t.Fatalf("相对 path 应基于 cwd 解析：%q", ec.Path)
	}
}

func TestLoadEffective_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"path":".","concurrency":8,"api_key":"file-key"}`)
	t.Setenv(EnvAPIKey, "")

	ec, err := LoadEffective(dir, CLIArgs{Concurrency: 1, ConcurrencySet: true})
	if err != nil {
		t.Fatalf("加载失败：%v", err)
	}
	if ec.Concurrency != 1 {
		t.Fatalf("CLI 必须覆盖 config：%d", ec.Concurrency)
	}
	if ec.APIKey != "file-key" {
		t.Fatalf("api_key 未从配置读取：%q", ec.APIKey)
	}

	t.Setenv(EnvAPIKey, "env-key")
	ec, err = LoadEffective(dir, CLIArgs{})
	if err != nil {
		t.Fatalf("加载失败：%v", err)
	}
	if ec.APIKey != "env-key" {
		t.Fatalf("环境变量应覆盖配置文件：%q", ec.APIKey)
	}
	if ec.Concurrency != 8 {
		t.Fatalf("未给 CLI 时应取 config：%d", ec.Concurrency)
	}
}

func TestLoadEffective_ConcurrencyClamped(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"path":".","concurrency":99}`)
	ec, err := LoadEffective(dir, CLIArgs{})
	if err != nil {
		t.Fatalf("加载失败：%v", err)
	}
	if ec.Concurrency != 16 {
		t.Fatalf("并发应被截断到 16：%d", ec.Concurrency)
	}

	ec, err = LoadEffective(dir, CLIArgs{Concurrency: -3, ConcurrencySet: true})
	if err != nil {
		t.Fatalf("加载失败：%v", err)
	}
	if ec.Concurrency != 1 {
		t.Fatalf("并发下限应为 1：%d", ec.Concurrency)
	}
}

func TestLoadEffective_InvalidValues(t *testing.T) {
	dir := t.TempDir()

	writeConfig(t, dir, `{"path":".","provider":"osm"}`)
	if _, err := LoadEffective(dir, CLIArgs{}); Code(err) != ErrCodeInvalid {
		t.Fatalf("未知 provider 应报 %s，实际 %v", ErrCodeInvalid, err)
	}

	writeConfig(t, dir, `{"path":".","places_base_url":"ftp://x"}`)
	if _, err := LoadEffective(dir, CLIArgs{}); Code(err) != ErrCodeInvalid {
		t.Fatalf("非 http(s) 根地址应报 %s", ErrCodeInvalid)
	}

	writeConfig(t, dir, `{not json`)
	if _, err := LoadEffective(dir, CLIArgs{}); Code(err) != ErrCodeInvalid {
		t.Fatalf("坏 JSON 应报 %s", ErrCodeInvalid)
	}
}

func TestLoadEffective_BaseURLsPassThrough(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"path":".","places_base_url":"http://127.0.0.1:8080","mapcode_base_url":"https://mirror.example"}`)
	ec, err := LoadEffective(dir, CLIArgs{})
	if err != nil {
		t.Fatalf("加载失败：%v", err)
	}
	if ec.PlacesBaseURL != "http://127.0.0.1:8080" || ec.MapcodeBaseURL != "https://mirror.example" {
		t.Fatalf("根地址未透传：%+v", ec)
	}
}
