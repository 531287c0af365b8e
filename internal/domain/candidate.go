package domain

// Candidate 是从原始文本中切出的一条候选地名（尚未经过任何外部解析）。
//
// 约束：
// - Position 是去重前按出现顺序分配的稳定序号，同时充当行 ID 的来源
// - 创建后视为不可变；去重合并只允许为缺失的 HintCity 补值
type Candidate struct {
	Raw      string `json:"raw"`
	MainName string `json:"main_name"`
	HintCity string `json:"hint_city,omitempty"`
	Position int    `json:"position"`
}
