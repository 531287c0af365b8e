package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/John-Robertt/JPEX/internal/domain"
)

func TestGetOrFetch_MemoizesByExternalID(t *testing.T) {
	s := New()
	calls := 0
	fetch := func() (domain.EnrichedDetails, error) {
		calls++
		return domain.EnrichedDetails{NameEN: "Beppu Station"}, nil
	}

	d, cached, err := s.GetOrFetch("place-1", fetch)
	if err != nil || cached {
		t.Fatalf("首次应走 fetch：cached=%v err=%v", cached, err)
	}
	if d.NameEN != "Beppu Station" {
		t.Fatalf("返回值不符：%+v", d)
	}

	d, cached, err = s.GetOrFetch("place-1", fetch)
	if err != nil || !cached {
		t.Fatalf("二次应命中缓存：cached=%v err=%v", cached, err)
	}
	if calls != 1 {
		t.Fatalf("同一 id 应只抓取一次，实际 %d 次", calls)
	}
	if d.NameEN != "Beppu Station" {
		t.Fatalf("缓存返回值不符：%+v", d)
	}
}

func TestGetOrFetch_FailureNotCached(t *testing.T) {
	s := New()
	calls := 0

	_, _, err := s.GetOrFetch("place-1", func() (domain.EnrichedDetails, error) {
		calls++
		return domain.EnrichedDetails{}, errors.New("boom")
	})
	if err == nil {
		t.Fatal("期望失败")
	}
	if s.Len() != 0 {
		t.Fatalf("失败不应写缓存，实际 Len=%d", s.Len())
	}

	// 失败后同一 id 允许重试，成功才落缓存。
	_, cached, err := s.GetOrFetch("place-1", func() (domain.EnrichedDetails, error) {
		calls++
		return domain.EnrichedDetails{NameEN: "ok"}, nil
	})
	if err != nil || cached {
		t.Fatalf("重试应成功且不算命中：cached=%v err=%v", cached, err)
	}
	if calls != 2 || s.Len() != 1 {
		t.Fatalf("期望 2 次抓取、1 条缓存，实际 calls=%d Len=%d", calls, s.Len())
	}
}

func TestGetOrFetch_ConcurrentSameID(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.GetOrFetch("place-1", func() (domain.EnrichedDetails, error) {
				return domain.EnrichedDetails{NameEN: "x"}, nil
			})
			if err != nil {
				t.Errorf("不期望错误：%v", err)
			}
		}()
	}
	wg.Wait()

	// 并发重复抓取允许，但最终恰好一条缓存（写入幂等）。
	if s.Len() != 1 {
		t.Fatalf("期望 1 条缓存，实际 %d", s.Len())
	}
}
