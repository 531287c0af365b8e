package cache

import (
	"sync"

	"github.com/John-Robertt/JPEX/internal/domain"
)

// Store 按 ExternalID 缓存外部详情结果（会话级、无上限、不过期）。
//
// 约束：
// - 键是外部匹配的 id，不是 Candidate——不同输入行命中同一地点时复用一次抓取
// - 只缓存成功结果；失败不落缓存，后续重复引用可以重试
// - 并发安全；同一 id 的并发重复抓取允许（浪费但不破坏正确性），写入幂等
type Store struct {
	mu sync.Mutex
	m  map[string]domain.EnrichedDetails
}

func New() *Store {
	return &Store{m: make(map[string]domain.EnrichedDetails)}
}

// GetOrFetch 命中则直接返回缓存值；未命中则调用 fetch，成功才写入缓存。
// 返回的 cached 表示本次是否命中（供进度展示/测试断言）。
//
// fetch 在锁外执行：它是挂起点（外部 HTTP 调用），绝不能占着锁等网络。
func (s *Store) GetOrFetch(externalID string, fetch func() (domain.EnrichedDetails, error)) (d domain.EnrichedDetails, cached bool, err error) {
	s.mu.Lock()
	d, ok := s.m[externalID]
	s.mu.Unlock()
	if ok {
		return d, true, nil
	}

	d, err = fetch()
	if err != nil {
		return domain.EnrichedDetails{}, false, err
	}

	s.mu.Lock()
	s.m[externalID] = d
	s.mu.Unlock()
	return d, false, nil
}

// Len 返回当前缓存条目数。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
