// Package extract 把用户粘贴的自由文本切分为候选地名序列。
//
// 过滤哲学：precision over recall——宁可漏掉真地名（用户可补行重跑），
// 也不把噪音行送去外部解析。
package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/JPEX/internal/domain"
)

// poiSuffixes 是「末词命中即视为地点」的后缀词表（大小写不敏感）。
var poiSuffixes = []string{
	"Hotel", "Guesthouse", "Inn", "Ryokan", "Onsen", "Station", "Mall",
	"Shrine", "Temple", "Park", "Museum", "Castle", "Garden", "House",
	"Cottage", "Residence", "Rakuen", "Tenmangu",
}

var (
	// 行切分：换行 + 常见列表分隔符（分号、项目符号、en/em dash）。
	splitRE = regexp.MustCompile("[\n;•–—]")

	// Title Case 短语：每个词首字母大写（允许 ' 连写，如 Ohori's）。
	titleCaseRE = regexp.MustCompile(`^[A-Z][a-z']*\s*([A-Z][a-z']*\s*)*$`)

	bracketsRE      = regexp.MustCompile(`[\[\]"']`)
	trailingPunctRE = regexp.MustCompile(`[.,!?;:]+$`)
	spacesRE        = regexp.MustCompile(`\s+`)

	// 去重键：只保留小写字母与数字（跨脚本字符直接丢弃，键可能退化为空串，仍稳定）。
	keyStripRE = regexp.MustCompile(`[^a-z0-9]`)
)

// hintCityMaxLen 之内的逗号后缀才当作城市提示；更长的多半是地址或从句。
const hintCityMaxLen = 20

// Extract 把原始文本切分为去重后的候选序列（纯函数、确定性、无副作用）。
//
// 顺序约束：Position 按去重前的接受顺序单调递增；去重保留首次出现，
// 输出按 Position 升序。
func Extract(rawText string) []domain.Candidate {
	var accepted []domain.Candidate
	position := 0

	for _, seg := range splitRE.Split(rawText, -1) {
		line := stripDecorations(seg)
		if line == "" {
			continue
		}

		mainName := line
		hintCity := ""

		// 逗号只在「像是地点限定」时才拆：恰好两段且第二段非空、足够短。
		if strings.Contains(line, ",") {
			parts := strings.Split(line, ",")
			if len(parts) == 2 {
				second := strings.TrimSpace(parts[1])
				if second != "" && utf8.RuneCountInString(second) < hintCityMaxLen {
					mainName = strings.TrimSpace(parts[0])
					hintCity = second
				}
			}
		}

		mainName = normalizeName(mainName)

		// 接受条件：≥3 字符，且（POI 后缀命中 或 整体为 Title Case 短语）。
		if utf8.RuneCountInString(mainName) < 3 || (!hasPOISuffix(mainName) && !titleCaseRE.MatchString(mainName)) {
			continue
		}

		accepted = append(accepted, domain.Candidate{
			Raw:      line,
			MainName: mainName,
			HintCity: hintCity,
			Position: position,
		})
		position++
	}

	return dedupe(accepted)
}

// dedupe 按「小写字母数字化主名 + 城市提示」去重；首次出现保留。
//
// 合并律：后出现的重复若带城市提示、而已保留的同主名候选缺提示，
// 则把提示合并进已保留的候选（merge，不替换，Position 不变）。
func dedupe(candidates []domain.Candidate) []domain.Candidate {
	index := make(map[string]int, len(candidates))
	out := make([]domain.Candidate, 0, len(candidates))

	for _, c := range candidates {
		key := dedupeKey(c.MainName, c.HintCity)
		if _, ok := index[key]; ok {
			continue
		}
		if c.HintCity != "" {
			// 同主名但无提示的保留行：吸收本条的提示后丢弃本条。
			bare := dedupeKey(c.MainName, "")
			if i, ok := index[bare]; ok && out[i].HintCity == "" {
				out[i].HintCity = c.HintCity
				index[key] = i
				continue
			}
		}
		index[key] = len(out)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func dedupeKey(mainName, hintCity string) string {
	name := keyStripRE.ReplaceAllString(strings.ToLower(mainName), "")
	return name + "|" + strings.ToLower(hintCity)
}

func normalizeName(s string) string {
	s = bracketsRE.ReplaceAllString(s, "")
	s = trailingPunctRE.ReplaceAllString(s, "")
	s = spacesRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func hasPOISuffix(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 {
		return false
	}
	last := words[len(words)-1]
	for _, suffix := range poiSuffixes {
		if strings.EqualFold(last, suffix) {
			return true
		}
	}
	return false
}

// stripDecorations 剔除装饰性符号段（emoji、杂项符号、私用区）并去首尾空白。
// 区间法宁可少删不误删：只覆盖确定无正文价值的符号段。
func stripDecorations(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 0x2011 && r <= 0x27BF: // 杂项符号 + dingbats（✈☀❤…）
		case r >= 0xE000 && r <= 0xF8FF: // 私用区
		case r >= 0x1F000 && r <= 0x1FAFF: // emoji 主区
		case r == 0xFE0F: // variation selector（emoji 表示形式）
		default:
			b.WriteRune(r)
		}
	}
	out := strings.ReplaceAll(b.String(), "<<", "")
	out = strings.ReplaceAll(out, ">>", "")
	return strings.TrimSpace(out)
}
