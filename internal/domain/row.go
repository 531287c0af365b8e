package domain

const (
	StatusPending        = "pending"
	StatusEnriching      = "enriching"
	StatusDisambiguation = "disambiguation"
	StatusComplete       = "complete"
	StatusError          = "error"
)

// 行级错误的稳定分类（对外 JSON 的 error_code 取值）。
const (
	ErrCodeLookupFailed = "lookup_failed"
	ErrCodeNoMatch      = "no_match"
	ErrCodeDetailFailed = "detail_failed"
)

// State 把「状态 + 该状态独有的载荷」绑在一起。
//
// 约束：
// - 状态迁移 = 整体替换 State 值；旧载荷（如 Matches）不会残留到下一个状态
// - ErrorCode/Message 仅在 error 下有意义；Matches 仅在 disambiguation 下有意义
// - 构造函数是唯一入口，保证配对关系不被破坏
type State struct {
	Status    string  `json:"status"`
	ErrorCode string  `json:"error_code,omitempty"`
	Message   string  `json:"message,omitempty"`
	Matches   []Match `json:"matches,omitempty"`
}

func StatePending() State   { return State{Status: StatusPending} }
func StateEnriching() State { return State{Status: StatusEnriching} }
func StateComplete() State  { return State{Status: StatusComplete} }

func StateError(code, msg string) State {
	return State{Status: StatusError, ErrorCode: code, Message: msg}
}

func StateDisambiguation(matches []Match) State {
	return State{Status: StatusDisambiguation, Matches: append([]Match(nil), matches...)}
}

// Terminal 表示该状态不会再被 worker 推进（消歧是「暂停」，不算 terminal）。
func (s State) Terminal() bool {
	return s.Status == StatusComplete || s.Status == StatusError
}

// Overrides 是用户手改的三个字段。
// 非 nil 指针表示「已覆盖」——允许覆盖为空串（即清掉抓取值）。
type Overrides struct {
	Mapcode   *string `json:"mapcode,omitempty"`
	Telephone *string `json:"telephone,omitempty"`
	Address   *string `json:"address,omitempty"`
}

// Row 是一条可编辑的工作行：提取器创建（pending），编排器推进状态，
// 用户手改/删除。
//
// 约束：
// - ID 来自 Candidate.Position 的十进制文本，在一次提取运行内唯一稳定
//  （不来自外部标识，外部 id 变化不影响行身份）
// - 覆盖值永远优先于抓取值
// - MapcodeInvalid 反映「规范化后的有效 mapcode」的校验结果，由 store 统一重算
type Row struct {
	ID        string    `json:"id"`
	Candidate Candidate `json:"candidate"`
	State     State     `json:"state"`

	ExternalID  string `json:"external_id,omitempty"`
	NameEN      string `json:"name_en,omitempty"`
	NameJA      string `json:"name_ja,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Mapcode     string `json:"mapcode,omitempty"`
	Telephone   string `json:"telephone,omitempty"`
	Address     string `json:"address,omitempty"`

	Overrides      Overrides `json:"manual_overrides"`
	MapcodeInvalid bool      `json:"is_mapcode_invalid,omitempty"`
}

// EffectiveMapcode 返回覆盖优先的 mapcode。
func (r Row) EffectiveMapcode() string {
	if r.Overrides.Mapcode != nil {
		return *r.Overrides.Mapcode
	}
	return r.Mapcode
}

// EffectiveTelephone 返回覆盖优先的电话。
func (r Row) EffectiveTelephone() string {
	if r.Overrides.Telephone != nil {
		return *r.Overrides.Telephone
	}
	return r.Telephone
}

// EffectiveAddress 返回覆盖优先的地址。
func (r Row) EffectiveAddress() string {
	if r.Overrides.Address != nil {
		return *r.Overrides.Address
	}
	return r.Address
}
