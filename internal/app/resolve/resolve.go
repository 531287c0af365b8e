// Package resolve 实现候选地名的并发解析/补全编排。
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/JPEX/internal/domain"
	"github.com/John-Robertt/JPEX/internal/extract"
	"github.com/John-Robertt/JPEX/internal/infra/cache"
	"github.com/John-Robertt/JPEX/internal/mapcode"
	"github.com/John-Robertt/JPEX/internal/provider"
	"github.com/John-Robertt/JPEX/internal/store"
)

// DefaultWorkers 是并发 worker 数的默认值。
const DefaultWorkers = 3

// msgNoPlaces 是「查找成功但零匹配」的行错误信息（对外稳定文案）。
const msgNoPlaces = "no potential places found."

// Options 汇集 Runner 的全部依赖（显式注入，不依赖包级状态）。
type Options struct {
	Path     string // 工作目录（仅用于 report 回显）
	Provider provider.Provider
	Client   *http.Client
	Cache    *cache.Store
	Store    *store.Store
	Workers  int
	Observer Observer
}

// Runner 驱动每个候选走完状态机：
//
//	pending → enriching → complete | error | disambiguation(暂停)
//
// 约束：
// - 固定并发预算：N 个 worker 从同一 FIFO 队列取活，取到即独占该行直到终态/暂停
// - 每个候选至多两个挂起点：外部查找、外部详情；两者之间不持有任何锁
// - 单行失败只落到该行；不中断批次、不影响其他 worker
// - 新一轮 Run 使旧运行作废：迟到的外部响应因代号不符被 store 丢弃
type Runner struct {
	path    string
	p       provider.Provider
	c       *http.Client
	cache   *cache.Store
	store   *store.Store
	workers int
	obs     Observer
}

func New(opts Options) (*Runner, error) {
	if opts.Provider == nil {
		return nil, errors.New("provider 不能为空")
	}
	if opts.Client == nil {
		return nil, errors.New("http client 不能为空")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache 不能为空")
	}
	if opts.Store == nil {
		return nil, errors.New("store 不能为空")
	}
	workers := opts.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Runner{
		path:    opts.Path,
		p:       opts.Provider,
		c:       opts.Client,
		cache:   opts.Cache,
		store:   opts.Store,
		workers: workers,
		obs:     opts.Observer,
	}, nil
}

// Run 执行一轮完整的提取 + 解析，返回对外稳定的 RunReport。
// 行集合被整体替换；上一轮的在途处理全部作废。
func (rn *Runner) Run(ctx context.Context, rawText string) domain.RunReport {
	started := time.Now().UTC()

	if rn.obs != nil {
		rn.obs.OnStart(rn.workers)
	}

	extractStarted := time.Now()
	cands := extract.Extract(rawText)
	rows := make([]domain.Row, 0, len(cands))
	for _, c := range cands {
		rows = append(rows, domain.Row{
			ID:        strconv.Itoa(c.Position),
			Candidate: c,
			State:     domain.StatePending(),
		})
	}
	gen := rn.store.Reset(rows)

	if rn.obs != nil {
		rn.obs.OnPhaseDone("extract", map[string]any{
			"candidates": len(cands),
		}, time.Since(extractStarted))
		rn.obs.OnPhaseDone("resolve", map[string]any{
			"workers":     rn.workers,
			"total_items": len(cands),
		}, 0)
	}

	type workResult struct {
		row    domain.Row
		cached bool
		dur    time.Duration
	}

	jobs := make(chan domain.Candidate)
	results := make(chan workResult, len(cands))

	var wg sync.WaitGroup
	for i := 0; i < rn.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				oneStarted := time.Now()
				cached := rn.processOne(ctx, gen, c)
				row, _ := rn.store.Get(strconv.Itoa(c.Position))
				results <- workResult{row: row, cached: cached, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		for _, c := range cands {
			jobs <- c
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for res := range results {
		done++
		if rn.obs != nil {
			rn.obs.OnRowDone(done, len(cands), res.row, res.cached, res.dur)
		}
	}

	rr := domain.RunReport{
		Path:      rn.path,
		StartedAt: started,
		Rows:      rn.store.Rows(),
	}
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// Select 消费一次消歧选择（带外事件），把被暂停的行推进到 enriching 并补全。
// 同一行的选择恰好生效一次；重复/非法选择返回错误，不触碰行状态。
func (rn *Runner) Select(ctx context.Context, id, externalID string) error {
	cand, gen, ok := rn.store.TakeSelection(id, externalID)
	if !ok {
		return fmt.Errorf("行 %q 不在待消歧状态，或所选匹配不存在", id)
	}
	rn.enrich(ctx, gen, id, externalID, cand.MainName)
	return nil
}

// processOne 把一个候选推进到终态或消歧暂停；返回详情是否命中缓存。
func (rn *Runner) processOne(ctx context.Context, gen int, cand domain.Candidate) bool {
	id := strconv.Itoa(cand.Position)

	rn.store.Update(gen, id, func(r *domain.Row) {
		r.State = domain.StateEnriching()
	})

	matches, err := rn.p.Lookup(ctx, cand, rn.c)
	if err != nil {
		err = &provider.Error{Provider: rn.p.Name(), Stage: "lookup", Err: err}
		rn.setError(gen, id, domain.ErrCodeLookupFailed, humanizeError(err))
		return false
	}

	switch len(matches) {
	case 0:
		rn.setError(gen, id, domain.ErrCodeNoMatch, msgNoPlaces)
		return false
	case 1:
		return rn.enrich(ctx, gen, id, matches[0].ExternalID, cand.MainName)
	default:
		rn.store.Update(gen, id, func(r *domain.Row) {
			r.State = domain.StateDisambiguation(matches)
		})
		return false
	}
}

// enrich 取详情（经缓存）并把结果落到行上；返回是否命中缓存。
func (rn *Runner) enrich(ctx context.Context, gen int, id, externalID, contextName string) bool {
	d, cached, err := rn.cache.GetOrFetch(externalID, func() (domain.EnrichedDetails, error) {
		return rn.p.Detail(ctx, externalID, contextName, rn.c)
	})
	if err != nil {
		err = &provider.Error{Provider: rn.p.Name(), Stage: "detail", Err: err}
		rn.setError(gen, id, domain.ErrCodeDetailFailed, humanizeError(err))
		return false
	}

	normalized := mapcode.Normalize(d.Mapcode)
	rn.store.Update(gen, id, func(r *domain.Row) {
		r.ExternalID = externalID
		r.NameEN = d.NameEN
		r.NameJA = d.NameJA
		r.DisplayName = domain.DeriveDisplayName(d.NameEN, d.NameJA, contextName)
		r.Mapcode = normalized
		r.Telephone = d.Telephone
		r.Address = d.Address
		r.State = domain.StateComplete()
	})
	return cached
}

func (rn *Runner) setError(gen int, id, code, msg string) {
	rn.store.Update(gen, id, func(r *domain.Row) {
		r.State = domain.StateError(code, msg)
	})
}

// humanizeError 把 provider 阶段错误翻译成可操作的行信息。
// 限流/超时/TLS 是最常见问题，给出下一步动作；其余原样透出。
func humanizeError(err error) string {
	name := "外部服务"
	stage := "调用"
	var pe *provider.Error
	if errors.As(err, &pe) {
		name = pe.Provider
		switch pe.Stage {
		case "lookup":
			stage = "查找"
		case "detail":
			stage = "详情获取"
		}
		err = pe.Err
	}
	if err == nil {
		return fmt.Sprintf("%s %s失败", name, stage)
	}

	var hs *provider.HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case 403, 429:
			return fmt.Sprintf("%s 返回 HTTP %d（可能触发限流/配额耗尽）。建议降低并发或稍后重跑。", name, hs.StatusCode)
		default:
			return fmt.Sprintf("%s 返回 HTTP %d。", name, hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s %s超时。建议检查网络/代理后重跑。", name, stage)
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
		return fmt.Sprintf("%s 连接失败（TLS/SSL）。建议配置 proxy.url 或稍后重试。", name)
	}
	return fmt.Sprintf("%s %s失败：%v", name, stage, err)
}
