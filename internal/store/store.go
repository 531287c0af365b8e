// Package store 持有工作集（行集合）：读取、更新、手改、删除/恢复都走这里。
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/John-Robertt/JPEX/internal/domain"
	"github.com/John-Robertt/JPEX/internal/infra/fsx"
	"github.com/John-Robertt/JPEX/internal/mapcode"
)

const (
	rowsFile = "rows.json"
	undoFile = "rows.undo.json"
)

// Store 是工作集的唯一归属者。
//
// 约束：
// - 行变更以 ID 为键；编排器与用户编辑互不越权
// - 每次变更后立即持久化（原子替换写）；持久化失败只上报回调，不中断操作
// - 加载失败退化为空集，不向上传播
// - 一格撤销：只记录最近一次删除（行 + 原位置）
// - MapcodeInvalid 在任何可能改变有效 mapcode 的变更后统一重算
type Store struct {
	mu   sync.Mutex
	dir  string // 持久化目录；为空则仅内存（测试用）
	rows []domain.Row
	gen  int
	undo *Removed

	onPersistError func(error)
}

// Removed 是撤销槽的内容：被删的行与它原来的下标。
type Removed struct {
	Row   domain.Row `json:"row"`
	Index int        `json:"index"`
}

// Open 打开（或新建）dir 下的工作集。
// rows.json / 撤销槽均为 best-effort 加载：损坏或缺失都等价于「空」。
func Open(dir string, onPersistError func(error)) *Store {
	s := &Store{dir: dir, onPersistError: onPersistError}
	if dir == "" {
		return s
	}

	if b, err := os.ReadFile(filepath.Join(dir, rowsFile)); err == nil {
		var rows []domain.Row
		if json.Unmarshal(b, &rows) == nil {
			s.rows = rows
		}
	}
	if b, err := os.ReadFile(filepath.Join(dir, undoFile)); err == nil {
		var r Removed
		if json.Unmarshal(b, &r) == nil && r.Row.ID != "" {
			s.undo = &r
		}
	}
	return s
}

// Generation 返回当前运行代号。
func (s *Store) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Rows 返回行集合的副本（Position 顺序即存放顺序）。
func (s *Store) Rows() []domain.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Row(nil), s.rows...)
}

// Get 按 ID 取行。
func (s *Store) Get(id string) (domain.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.rows[i], true
	}
	return domain.Row{}, false
}

// Reset 用新一轮提取的行整体替换工作集，并使上一轮运行作废。
// 返回新的运行代号；旧代号的 Update 从此全部被丢弃（迟到的外部响应被忽略）。
func (s *Store) Reset(rows []domain.Row) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = append([]domain.Row(nil), rows...)
	for i := range s.rows {
		s.recompute(&s.rows[i])
	}
	s.undo = nil
	s.gen++
	s.persist()
	s.dropUndoFile()
	return s.gen
}

// Clear 清空工作集与撤销槽（代号同样递增，在途结果作废）。
func (s *Store) Clear() {
	s.Reset(nil)
}

// Update 应用编排器的一次行变更。
// gen 与当前代号不符（行所属的运行已被新运行取代）时直接丢弃并返回 false。
func (s *Store) Update(gen int, id string, fn func(*domain.Row)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	fn(&s.rows[i])
	s.recompute(&s.rows[i])
	s.persist()
	return true
}

// SetOverride 写入一条手改值（mapcode/telephone/address）。
// 允许覆盖为空串；MapcodeInvalid 立即重算，与抓取值无关。
func (s *Store) SetOverride(id, field, value string) (domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.Row{}, fmt.Errorf("行不存在：%q", id)
	}

	v := value
	switch field {
	case "mapcode":
		s.rows[i].Overrides.Mapcode = &v
	case "telephone":
		s.rows[i].Overrides.Telephone = &v
	case "address":
		s.rows[i].Overrides.Address = &v
	default:
		return domain.Row{}, fmt.Errorf("不支持手改的字段：%q（只允许 mapcode/telephone/address）", field)
	}

	s.recompute(&s.rows[i])
	s.persist()
	return s.rows[i], nil
}

// TakeSelection 原子地消费一次消歧选择：
// 行必须处于 disambiguation 且 externalID 在其匹配列表内，
// 随后迁移到 enriching（恰好一次——并发的第二次选择会因状态已变而失败）。
func (s *Store) TakeSelection(id, externalID string) (domain.Candidate, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 || s.rows[i].State.Status != domain.StatusDisambiguation {
		return domain.Candidate{}, 0, false
	}
	found := false
	for _, m := range s.rows[i].State.Matches {
		if m.ExternalID == externalID {
			found = true
			break
		}
	}
	if !found {
		return domain.Candidate{}, 0, false
	}

	s.rows[i].State = domain.StateEnriching()
	s.persist()
	return s.rows[i].Candidate, s.gen, true
}

// Remove 软删除一行（写入一格撤销槽；上一条撤销记录被顶掉）。
func (s *Store) Remove(id string) (domain.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.Row{}, false
	}
	removed := s.rows[i]
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	s.undo = &Removed{Row: removed, Index: i}
	s.persist()
	s.persistUndo()
	return removed, true
}

// Restore 把最近删除的行放回原位置，并清空撤销槽。
func (s *Store) Restore() (domain.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.undo == nil {
		return domain.Row{}, false
	}
	r := s.undo.Row
	i := s.undo.Index
	if i > len(s.rows) {
		i = len(s.rows)
	}
	s.rows = append(s.rows[:i], append([]domain.Row{r}, s.rows[i:]...)...)
	s.undo = nil
	s.persist()
	s.dropUndoFile()
	return r, true
}

// CanRestore 报告撤销槽是否非空。
func (s *Store) CanRestore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.undo != nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return i
		}
	}
	return -1
}

// recompute 重算 MapcodeInvalid：对「覆盖优先的有效 mapcode」先规范化再校验。
func (s *Store) recompute(r *domain.Row) {
	r.MapcodeInvalid = !mapcode.Validate(mapcode.Normalize(r.EffectiveMapcode()))
}

func (s *Store) persist() {
	if s.dir == "" {
		return
	}
	b, err := json.MarshalIndent(s.rows, "", "  ")
	if err == nil {
		err = fsx.WriteFileAtomicReplace(s.dir, rowsFile, b)
	}
	if err != nil && s.onPersistError != nil {
		s.onPersistError(err)
	}
}

func (s *Store) persistUndo() {
	if s.dir == "" || s.undo == nil {
		return
	}
	b, err := json.MarshalIndent(s.undo, "", "  ")
	if err == nil {
		err = fsx.WriteFileAtomicReplace(s.dir, undoFile, b)
	}
	if err != nil && s.onPersistError != nil {
		s.onPersistError(err)
	}
}

func (s *Store) dropUndoFile() {
	if s.dir == "" {
		return
	}
	_ = os.Remove(filepath.Join(s.dir, undoFile))
}
