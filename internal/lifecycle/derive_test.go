package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoek1/web-1/internal/model"
)

func TestOrdinalIndexes(t *testing.T) {
	assert.Equal(t, 3, ExperienceLevelIndex("Intermediate"))
	assert.Equal(t, 0, ExperienceLevelIndex("Guru"))
	assert.Equal(t, 5, ProjectLengthIndex("Months"))
	assert.Equal(t, 0, ProjectLengthIndex(""))
}

func TestURLs(t *testing.T) {
	b := &model.Bounty{
		Id:                 9,
		Network:            "rinkeby",
		GithubURL:          "https://github.com/gitcoinco/web/issues/1234",
		StandardBountiesId: 77,
	}
	assert.Equal(t, "issue/gitcoinco/web/1234/77", RelativeURL(b))
	assert.Equal(t, "https://gitcoin.co/issue/gitcoinco/web/1234/77", AbsoluteURL("https://gitcoin.co/", b))
	assert.Equal(t, "https://gitcoin.co/dynamic/avatar/gitcoinco/1", AvatarURL("https://gitcoin.co/", b, true))

	urls := ActionURLs(b)
	assert.Len(t, urls, 7)
	assert.Equal(t, "/issue/advanced_payout?pk=9&network=rinkeby", urls["advanced_payout"])

	b.GithubURL = "https://example.com/not-an-issue"
	assert.Equal(t, "funding/details?url=https://example.com/not-an-issue", RelativeURL(b))
}

func TestSyntheticStandardBountiesID(t *testing.T) {
	b := &model.Bounty{Id: 5, Web3Type: model.Web3TypeQR}
	assert.Equal(t, int64(100000005), SyntheticStandardBountiesID(b))

	b.StandardBountiesId = 12
	assert.Equal(t, int64(12), SyntheticStandardBountiesID(b))

	unsaved := &model.Bounty{Web3Type: model.Web3TypeQR}
	assert.Equal(t, int64(0), SyntheticStandardBountiesID(unsaved))
}

func TestNormalizeGithubURL(t *testing.T) {
	assert.Equal(t, "https://github.com/a/b/issues/1", NormalizeGithubURL(" https://github.com/a/b/issues/1?x=1#frag "))
}

func TestHumanizeEventName(t *testing.T) {
	assert.Equal(t, "Worker Applied", HumanizeEventName("worker_applied"))
}

func TestTokenRegistry(t *testing.T) {
	r := Tokens()
	tok, ok := r.Lookup("0xDAC17F958D2EE523A2206206994597C13D831EC7", "")
	require.True(t, ok)
	assert.Equal(t, "USDT", tok.Symbol)
	assert.Equal(t, 6, tok.Decimals)

	assert.InDelta(t, 1.5, r.NaturalValue("", "ETH", 1.5e18), 1e-9)
	assert.Equal(t, 0.0, r.NaturalValue("0xdead", "NOPE", 1e18))
	assert.True(t, r.IsStable("dai"))
	assert.False(t, r.IsStable("ETH"))

	_, err := ParseTokenRegistry([]byte("tokens:\n  - address: '0x1'\n"))
	assert.Error(t, err)
}
