// Package mapcode 实现日本 mapcode 文本的规范化与校验。
//
// 规范形态：三组数字 + 单空格分隔 + '*' + 两位数字，
// 第一组 1–3 位、第二/三组各恰好 3 位，例如 "12 345 678*90"。
package mapcode

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

var (
	canonicalRE = regexp.MustCompile(`^\d{1,3} \d{3} \d{3}\*\d{2}$`)
	groupsRE    = regexp.MustCompile(`^(\d{1,3}) (\d{3}) (\d{3})\*(\d{2})$`)

	nonTokenRE = regexp.MustCompile(`[^0-9*\s]`)
	spacesRE   = regexp.MustCompile(`\s+`)
)

// starReplacer 把各种「星号变体」折叠为 ASCII '*'。
// 从日文网站复制 mapcode 时常带这些字形；全角 '＊' 由 width.Fold 处理。
var starReplacer = strings.NewReplacer(
	"✱", "*",
	"✳", "*",
	"✴", "*",
	"★", "*",
	"⭐", "*",
	"×", "*",
	"•", "*",
	"・", "*",
	"·", "*",
)

// Normalize 尽力把输入清洗为规范形态。
//
// 规则：
// - 全角数字/空格/星号先折叠为半角（width.Fold）
// - 星号变体 → '*'；非 数字/'*'/空白 的字符全部剔除；空白折叠为单空格
// - 清洗后若仍不匹配规范形态，原样返回半清洗结果——绝不凭空造数字
// - 匹配时对第一组去前导零后重组
//
// Normalize 是幂等的：Normalize(Normalize(x)) == Normalize(x)。
func Normalize(input string) string {
	if input == "" {
		return ""
	}

	s := width.Fold.String(input)
	s = starReplacer.Replace(s)
	s = nonTokenRE.ReplaceAllString(s, "")
	s = spacesRE.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	m := groupsRE.FindStringSubmatch(s)
	if m == nil {
		return s
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return s
	}
	return strconv.Itoa(n) + " " + m[2] + " " + m[3] + "*" + m[4]
}

// Validate 判断 s 是否为合法 mapcode。
// 空串视为合法——「没有 mapcode」不是错误；非空则必须严格匹配规范形态。
func Validate(s string) bool {
	if s == "" {
		return true
	}
	return canonicalRE.MatchString(s)
}
