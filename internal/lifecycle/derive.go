package lifecycle

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/zoek1/web-1/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var experienceLevels = map[string]int{
	"Unknown":      1,
	"Beginner":     2,
	"Intermediate": 3,
	"Advanced":     4,
}

var projectLengths = map[string]int{
	"Unknown": 1,
	"Hours":   2,
	"Days":    3,
	"Weeks":   4,
	"Months":  5,
}

// ExperienceLevelIndex 经验等级序号，未知取 0
func ExperienceLevelIndex(level string) int {
	return experienceLevels[level]
}

// ProjectLengthIndex 项目周期序号，未知取 0
func ProjectLengthIndex(length string) int {
	return projectLengths[length]
}

// SyntheticStandardBountiesID 非 bounties_network 悬赏在入库后使用合成编号
func SyntheticStandardBountiesID(b *model.Bounty) int64 {
	if b.Persisted() && !b.IsBountiesNetwork() && b.StandardBountiesId == 0 {
		return model.CrossChainStandardBountiesOffset + b.Id
	}
	return b.StandardBountiesId
}

// RelativeURL 悬赏详情相对地址，不含前导斜杠
func RelativeURL(b *model.Bounty) string {
	org, repo, issue := b.OrgName(), b.RepoName(), b.IssueNumber()
	if org == "" || repo == "" || issue == "" {
		return "funding/details?url=" + b.GithubURL
	}
	return fmt.Sprintf("issue/%s/%s/%s/%d", org, repo, issue, b.StandardBountiesId)
}

// AbsoluteURL 悬赏详情完整地址
func AbsoluteURL(baseURL string, b *model.Bounty) string {
	return baseURL + RelativeURL(b)
}

// AvatarURL 组织头像地址
func AvatarURL(baseURL string, b *model.Bounty, withLogo bool) string {
	org := b.OrgName()
	if org == "" {
		return fmt.Sprintf("%sfunding/avatar?repo=%s&v=3", baseURL, b.GithubURL)
	}
	suffix := ""
	if withLogo {
		suffix = "/1"
	}
	return fmt.Sprintf("%sdynamic/avatar/%s%s", baseURL, org, suffix)
}

var actionItems = []string{"fulfill", "increase", "accept", "cancel", "payout", "advanced_payout", "invoice"}

// ActionURLs 悬赏操作入口
func ActionURLs(b *model.Bounty) map[string]string {
	params := fmt.Sprintf("pk=%d&network=%s", b.Id, b.Network)
	urls := make(map[string]string, len(actionItems))
	for _, item := range actionItems {
		urls[item] = fmt.Sprintf("/issue/%s?%s", item, params)
	}
	return urls
}

// NormalizeGithubURL 去掉查询串与锚点
func NormalizeGithubURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// HumanizeEventName 将 worker_applied 之类的名称转为 "Worker Applied"
func HumanizeEventName(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// DecimalValue 将字符串金额转为数值，失败返回 0
func DecimalValue(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
