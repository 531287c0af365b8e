package domain

import "strings"

// Match 是外部查找服务对某个 Candidate 返回的一个候选匹配。
// 只在消歧期间短暂存在；被选中后行上只保留 ExternalID。
type Match struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
}

// EnrichedDetails 是外部详情服务对单个 ExternalID 的返回。
//
// 约束：核心流程把字段内容当作不透明数据，只做传递、缓存与本地 mapcode 校验；
// 缺失字段一律为空串，不做猜测补全。
type EnrichedDetails struct {
	NameEN    string `json:"name_en"`
	NameJA    string `json:"name_ja"`
	Mapcode   string `json:"mapcode"`
	Telephone string `json:"telephone"`
	Address   string `json:"address"`
}

// DeriveDisplayName 按「EN (JA)」规则合成展示名。
// 两者只有其一时用其一；全缺时回退到候选主名（保证展示名非空）。
func DeriveDisplayName(nameEN, nameJA, fallback string) string {
	nameEN = strings.TrimSpace(nameEN)
	nameJA = strings.TrimSpace(nameJA)
	switch {
	case nameEN != "" && nameJA != "":
		return nameEN + " (" + nameJA + ")"
	case nameEN != "":
		return nameEN
	case nameJA != "":
		return nameJA
	default:
		return strings.TrimSpace(fallback)
	}
}
