// Package export 把工作集序列化为 TSV/CSV 文本（剪贴板/落盘两用）。
//
// 两种格式共用同一套有效值取值规则（手改优先），并且在任何一行的
// 有效 mapcode 非法时整体拒绝输出。
package export

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/JPEX/internal/domain"
	"github.com/John-Robertt/JPEX/internal/mapcode"
)

var header = [4]string{"place_name", "mapcode", "telephone", "address"}

// InvalidMapcodeError 表示工作集中存在非法 mapcode，导出被整体拒绝。
type InvalidMapcodeError struct {
	Count   int    // 非法行数
	FirstID string // 第一个非法行的 ID（按当前顺序）
}

func (e *InvalidMapcodeError) Error() string {
	return fmt.Sprintf("存在 %d 行非法 mapcode（首行 ID %s），请先修正再导出", e.Count, e.FirstID)
}

// TSV 生成制表符分隔文本：首行为表头，之后每行一条记录。
func TSV(rows []domain.Row) (string, error) {
	if err := checkMapcodes(rows); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(strings.Join(header[:], "\t"))
	for _, r := range rows {
		f := fieldsOf(r)
		b.WriteByte('\n')
		b.WriteString(strings.Join(f[:], "\t"))
	}
	return b.String(), nil
}

// CSV 生成逗号分隔文本。含逗号、双引号或换行的字段用双引号包裹，
// 内部双引号成对转义。
func CSV(rows []domain.Row) (string, error) {
	if err := checkMapcodes(rows); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(strings.Join(header[:], ","))
	for _, r := range rows {
		f := fieldsOf(r)
		quoted := make([]string, len(f))
		for i, v := range f {
			quoted[i] = csvField(v)
		}
		b.WriteByte('\n')
		b.WriteString(strings.Join(quoted, ","))
	}
	return b.String(), nil
}

// fieldsOf 按手改优先的规则取出四列的有效值。
// 未补全的行用候选主名兜底，保证导出文本每行都可辨认。
// mapcode 列导出规范化后的形态，和门禁校验看到的是同一个值。
func fieldsOf(r domain.Row) [4]string {
	name := r.DisplayName
	if name == "" {
		name = r.Candidate.MainName
	}
	return [4]string{name, mapcode.Normalize(r.EffectiveMapcode()), r.EffectiveTelephone(), r.EffectiveAddress()}
}

// checkMapcodes 用与工作集一致的口径复核每行的有效 mapcode。
func checkMapcodes(rows []domain.Row) error {
	var e InvalidMapcodeError
	for _, r := range rows {
		if !mapcode.Validate(mapcode.Normalize(r.EffectiveMapcode())) {
			if e.Count == 0 {
				e.FirstID = r.ID
			}
			e.Count++
		}
	}
	if e.Count > 0 {
		return &e
	}
	return nil
}

func csvField(v string) string {
	if strings.ContainsAny(v, ",\"\n") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}
