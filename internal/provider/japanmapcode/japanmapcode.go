package japanmapcode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/JPEX/internal/provider"
)

// DefaultBaseURL 是 japanmapcode.com 的正式域名；测试/镜像可覆盖。
const DefaultBaseURL = "https://japanmapcode.com"

// Client 抓取并解析 japanmapcode.com 的搜索结果页，取最可能匹配的 mapcode。
//
// 约束：
// - 不做缓存/重试/限速（由上层统一控制）
// - parseSearch 必须是纯函数：相同 HTML => 相同输出
// - 站点结构漂移时宁可报错，也不返回“看起来像 mapcode”的猜测值
type Client struct {
	BaseURL string
}

// Search 按英文地名检索 mapcode。
func (cl Client) Search(ctx context.Context, c *http.Client, name string) (string, error) {
	if c == nil {
		return "", errors.New("http client 不能为空")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("检索词不能为空")
	}

	base := DefaultBaseURL
	if strings.TrimSpace(cl.BaseURL) != "" {
		base = strings.TrimRight(cl.BaseURL, "/")
	}
	pageURL := base + "/en/search?q=" + url.QueryEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &provider.HTTPStatusError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Location:   resp.Header.Get("Location"),
		}
	}

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return parseSearch(html, name)
}

// parseSearch 从搜索结果页选出最可能匹配的 mapcode。
//
// 选取规则：结果名包含检索词（大小写不敏感）的第一条优先；没有则取第一条。
func parseSearch(html []byte, query string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}

	results := doc.Find(".search-results .result")
	if results.Length() == 0 {
		return "", errors.New("未找到搜索结果（疑似站点结构变化或查无此地）")
	}

	wanted := strings.ToLower(strings.TrimSpace(query))
	best := ""
	first := ""
	results.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		mc := strings.TrimSpace(s.Find(".mapcode").First().Text())
		if mc == "" {
			return true
		}
		if first == "" {
			first = mc
		}
		name := strings.ToLower(strings.TrimSpace(s.Find(".name").First().Text()))
		if name != "" && strings.Contains(name, wanted) {
			best = mc
			return false
		}
		return true
	})

	if best != "" {
		return best, nil
	}
	if first != "" {
		return first, nil
	}
	return "", errors.New("搜索结果中未找到 mapcode 字段")
}
