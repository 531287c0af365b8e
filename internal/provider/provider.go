package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/JPEX/internal/domain"
)

// Provider 把「外部服务的差异」限制在 provider 包内部；
// 核心流程只依赖统一接口与稳定的 Match / EnrichedDetails。
//
// 约束：
// - Lookup/Detail 不做缓存、不做重试、不做限速（缓存由核心 cache 层统一实现）
// - 响应里显式的 error 字段一律视为失败，无论其余字段是否齐全
// - Lookup 返回空切片 + nil error 表示「查无结果」，由编排器决定如何落状态
// - Detail 中 mapcode 缺失不是失败：返回空串即可（本地校验会标记）
type Provider interface {
	Name() string
	Lookup(ctx context.Context, cand domain.Candidate, c *http.Client) ([]domain.Match, error)
	Detail(ctx context.Context, externalID, contextName string, c *http.Client) (domain.EnrichedDetails, error)
}

// Error 是 provider 阶段的可追溯错误。
// 上层可以据此把失败归类为 lookup_failed / detail_failed，并写入 report。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // "lookup" 或 "detail"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry 按名称索引已配置的地点数据源。
// 配置里的 provider 字段经它解析成具体实现；名称比较不分大小写。
type Registry struct {
	sources map[string]Provider
}

// NewRegistry 登记一组数据源。名称为空或重复视为配置错误，立即失败。
func NewRegistry(sources ...Provider) (Registry, error) {
	m := make(map[string]Provider, len(sources))
	for _, s := range sources {
		if s == nil {
			return Registry{}, fmt.Errorf("地点数据源不能为 nil")
		}
		name := strings.ToLower(strings.TrimSpace(s.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("地点数据源名称不能为空")
		}
		if _, ok := m[name]; ok {
			return Registry{}, fmt.Errorf("地点数据源名称重复：%q", name)
		}
		m[name] = s
	}
	return Registry{sources: m}, nil
}

// Get 按名称取数据源；找不到时由调用方决定如何提示（通常是配置错误）。
func (r Registry) Get(name string) (Provider, bool) {
	if r.sources == nil {
		return nil, false
	}
	s, ok := r.sources[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}
