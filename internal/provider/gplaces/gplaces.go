package gplaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/JPEX/internal/domain"
	"github.com/John-Robertt/JPEX/internal/provider"
)

const (
	// DefaultBaseURL 为 Google Places Web Service 的正式域名；
	// 测试与镜像场景可通过 BaseURL 覆盖。
	DefaultBaseURL = "https://maps.googleapis.com"

	// maxMatches 限制消歧列表长度：超过 3 条的长尾匹配对人工选择没有帮助。
	maxMatches = 3
)

// MapcodeSearcher 抽象 mapcode 的来源。
// 生产实现是 japanmapcode.Client（站点抓取）；测试用桩替换。
type MapcodeSearcher interface {
	Search(ctx context.Context, c *http.Client, name string) (string, error)
}

// Provider 用 Google Places Text Search 做查找、Place Details（en/ja 两次）
// 做详情，mapcode 经由 MapcodeSearcher 单独补全。
//
// 约束：
// - 不做缓存/重试/限速（由上层统一控制）
// - parse 系列必须是纯函数：相同输入 => 相同输出
// - mapcode 补全失败不算详情失败：mapcode 置空，本地校验自然会标记
type Provider struct {
	APIKey  string
	BaseURL string
	Mapcode MapcodeSearcher
}

func (Provider) Name() string { return "gplaces" }

// Lookup 执行 Text Search（region=jp），返回至多 maxMatches 条匹配。
// 查无结果返回空切片 + nil error——「零匹配如何落状态」是编排器的决定。
func (p Provider) Lookup(ctx context.Context, cand domain.Candidate, c *http.Client) ([]domain.Match, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	if strings.TrimSpace(cand.MainName) == "" {
		return nil, errors.New("main_name 不能为空")
	}

	query := cand.MainName
	if cand.HintCity != "" {
		query += " " + cand.HintCity
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("region", "jp")
	q.Set("key", p.APIKey)
	reqURL := p.baseURL() + "/maps/api/place/textsearch/json?" + q.Encode()

	body, err := fetchURL(ctx, c, reqURL)
	if err != nil {
		return nil, err
	}
	return parseTextSearch(body)
}

// Detail 取 en/ja 两份 Place Details，再经 MapcodeSearcher 补全 mapcode。
func (p Provider) Detail(ctx context.Context, externalID, contextName string, c *http.Client) (domain.EnrichedDetails, error) {
	if c == nil {
		return domain.EnrichedDetails{}, errors.New("http client 不能为空")
	}
	if strings.TrimSpace(externalID) == "" {
		return domain.EnrichedDetails{}, errors.New("external_id 不能为空")
	}

	en, err := p.details(ctx, c, externalID, "en", "name,formatted_address,international_phone_number")
	if err != nil {
		return domain.EnrichedDetails{}, err
	}
	ja, err := p.details(ctx, c, externalID, "ja", "name")
	if err != nil {
		return domain.EnrichedDetails{}, err
	}

	d := domain.EnrichedDetails{
		NameEN:    en.Name,
		NameJA:    ja.Name,
		Telephone: en.InternationalPhoneNumber,
		Address:   en.FormattedAddress,
	}

	if p.Mapcode != nil {
		// mapcode 检索词优先用英文名；details 偶尔缺 name 时退回候选主名。
		name := d.NameEN
		if strings.TrimSpace(name) == "" {
			name = contextName
		}
		if mc, err := p.Mapcode.Search(ctx, c, name); err == nil {
			d.Mapcode = mc
		}
	}
	return d, nil
}

func (p Provider) baseURL() string {
	if strings.TrimSpace(p.BaseURL) != "" {
		return strings.TrimRight(p.BaseURL, "/")
	}
	return DefaultBaseURL
}

type detailsResult struct {
	Name                     string `json:"name"`
	FormattedAddress         string `json:"formatted_address"`
	InternationalPhoneNumber string `json:"international_phone_number"`
}

func (p Provider) details(ctx context.Context, c *http.Client, externalID, language, fields string) (detailsResult, error) {
	q := url.Values{}
	q.Set("place_id", externalID)
	q.Set("language", language)
	q.Set("fields", fields)
	q.Set("key", p.APIKey)
	reqURL := p.baseURL() + "/maps/api/place/details/json?" + q.Encode()

	body, err := fetchURL(ctx, c, reqURL)
	if err != nil {
		return detailsResult{}, err
	}
	return parseDetails(body)
}

// parseTextSearch 把 Text Search 响应解析为匹配列表（纯函数）。
func parseTextSearch(body []byte) ([]domain.Match, error) {
	var resp struct {
		Results []struct {
			PlaceID          string `json:"place_id"`
			Name             string `json:"name"`
			FormattedAddress string `json:"formatted_address"`
		} `json:"results"`
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("响应不是合法 JSON：%w", err)
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		if resp.ErrorMessage != "" {
			return nil, fmt.Errorf("%s: %s", resp.Status, resp.ErrorMessage)
		}
		return nil, fmt.Errorf("status=%s", resp.Status)
	}

	matches := make([]domain.Match, 0, maxMatches)
	for _, r := range resp.Results {
		if strings.TrimSpace(r.PlaceID) == "" {
			continue
		}
		matches = append(matches, domain.Match{
			ExternalID: r.PlaceID,
			Name:       r.Name,
			Address:    r.FormattedAddress,
		})
		if len(matches) == maxMatches {
			break
		}
	}
	return matches, nil
}

// parseDetails 把 Place Details 响应解析为最小字段集（纯函数）。
func parseDetails(body []byte) (detailsResult, error) {
	var resp struct {
		Result       detailsResult `json:"result"`
		Status       string        `json:"status"`
		ErrorMessage string        `json:"error_message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return detailsResult{}, fmt.Errorf("响应不是合法 JSON：%w", err)
	}
	if resp.Status != "OK" {
		if resp.ErrorMessage != "" {
			return detailsResult{}, fmt.Errorf("%s: %s", resp.Status, resp.ErrorMessage)
		}
		return detailsResult{}, fmt.Errorf("status=%s", resp.Status)
	}
	return resp.Result, nil
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.HTTPStatusError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Location:   resp.Header.Get("Location"),
		}
	}
	return io.ReadAll(resp.Body)
}
