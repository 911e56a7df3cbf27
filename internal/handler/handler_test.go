package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoek1/web-1/internal/chain"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/handler"
	"github.com/zoek1/web-1/internal/ipfs"
	"github.com/zoek1/web-1/internal/logic"
	"github.com/zoek1/web-1/internal/model"
	"github.com/zoek1/web-1/internal/repository"
	"github.com/zoek1/web-1/internal/router"
)

const issueURL = "https://github.com/gitcoinco/web/issues/42"

// stubReader 链上读取桩，ids 按 issue 地址返回编号，readErr 非空时读取失败
type stubReader struct {
	ids     map[string]int64
	readErr error
}

func (r stubReader) GetBounty(context.Context, int64, string) (*chain.Snapshot, error) {
	if r.readErr != nil {
		return nil, r.readErr
	}
	return nil, chain.ErrBountyNotFound
}

func (r stubReader) FindBountyID(_ context.Context, _, githubURL string, _ int64) (int64, bool, error) {
	id, ok := r.ids[githubURL]
	return id, ok, nil
}

type stubTxs struct{}

func (stubTxs) HasTxMined(_ context.Context, _, txid string) bool { return txid == "0xmined" }

func (stubTxs) TxStatus(context.Context, string, string, time.Time, time.Time) (string, error) {
	return model.TxStatusPending, nil
}

type server struct {
	t      *testing.T
	svc    *logic.Services
	engine *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	return newServerWithReader(t, stubReader{})
}

func newServerWithReader(t *testing.T, reader stubReader) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := repository.Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "handler.db")})
	require.NoError(t, err)

	cfg := &config.Config{
		Server:   config.ServerConfig{BaseURL: "https://gitcoin.co/"},
		Env:      config.EnvConfig{Name: "test"},
		Sync:     config.SyncConfig{BatchSize: 10, PoolSize: 1, MaxAttempt: 3, LockTTL: time.Minute},
		Remarket: config.RemarketConfig{Limit: 2, MinutesBetween: 60},
	}
	svc := logic.NewServices(db, event.NewBus(), cfg, reader, stubTxs{})
	return &server{t: t, svc: svc, engine: router.Setup(svc)}
}

func (s *server) profile(handle string) *model.Profile {
	s.t.Helper()
	p, err := repository.NewProfileRepository(s.svc.DB).Ensure(context.Background(), handle)
	require.NoError(s.t, err)
	return p
}

func (s *server) bounty() *model.Bounty {
	s.t.Helper()
	b := &model.Bounty{
		Web3Type:                  model.Web3TypeWeb3Modal,
		Network:                   "rinkeby",
		CurrentBounty:             true,
		Title:                     "Fix the build",
		GithubURL:                 issueURL,
		TokenName:                 "ETH",
		ValueInToken:              1e18,
		BountyOwnerGithubUsername: "funder",
		ProjectType:               model.ProjectTypeTraditional,
		PermissionType:            model.PermissionTypePermissionless,
		BountyState:               model.StateOpen,
		IsOpen:                    true,
		Web3Created:               time.Now().Add(-time.Hour),
		ExpiresDate:               time.Now().Add(30 * 24 * time.Hour),
	}
	require.NoError(s.t, s.svc.Bounties.Save(context.Background(), b))
	return b
}

func (s *server) do(method, path, handle string, form url.Values) *httptest.ResponseRecorder {
	s.t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if handle != "" {
		req.Header.Set(handler.HeaderProfileHandle, handle)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *server) doJSON(path, handle string, payload interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(s.t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	if handle != "" {
		req.Header.Set(handler.HeaderProfileHandle, handle)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndRequestID(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(handler.HeaderRequestID))
}

func TestGetBounty(t *testing.T) {
	s := newServer(t)
	b := s.bounty()

	w := s.do(http.MethodGet, fmt.Sprintf("/api/v0.1/bounties/%d", b.Id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, model.StatusOpen, data["status"])
	assert.Equal(t, "Fix the build", data["title"])
	assert.Contains(t, data, "action_urls")

	w = s.do(http.MethodGet, "/api/v0.1/bounties/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, "/api/v0.1/bounties/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v0.1/bounties?network=rinkeby&is_open=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["data"].(map[string]interface{})
	assert.Len(t, list["bounties"], 1)
	assert.Equal(t, float64(1), list["pagination"].(map[string]interface{})["total"])
}

func TestV1CancelCodes(t *testing.T) {
	s := newServer(t)
	b := s.bounty()
	s.profile("funder")
	s.profile("mallory")
	pk := fmt.Sprint(b.Id)

	cases := []struct {
		name   string
		handle string
		form   url.Values
		status float64
	}{
		{"unauthenticated", "", url.Values{"pk": {pk}, "canceled_bounty_reason": {"x"}}, 401},
		{"no profile", "ghost", url.Values{"pk": {pk}, "canceled_bounty_reason": {"x"}}, 401},
		{"missing bounty", "funder", url.Values{"pk": {"9999"}, "canceled_bounty_reason": {"x"}}, 404},
		{"not funder", "mallory", url.Values{"pk": {pk}, "canceled_bounty_reason": {"x"}}, 401},
		{"missing reason", "funder", url.Values{"pk": {pk}}, 400},
		{"cancelled", "funder", url.Values{"pk": {pk}, "canceled_bounty_reason": {"done with it"}}, 204},
		{"already cancelled", "funder", url.Values{"pk": {pk}, "canceled_bounty_reason": {"again"}}, 405},
	}
	for _, tc := range cases {
		w := s.do(http.MethodPost, "/api/v1/bounty/cancel", tc.handle, tc.form)
		require.Equal(t, http.StatusOK, w.Code, tc.name)
		assert.Equal(t, tc.status, decode(t, w)["status"], tc.name)
	}
}

func TestV1CreateDuplicate(t *testing.T) {
	s := newServer(t)
	s.profile("funder")
	form := url.Values{
		"github_url":     {issueURL},
		"title":          {"Fix the build"},
		"token_name":     {"ETH"},
		"value_in_token": {"1000000000000000000"},
		"network":        {"rinkeby"},
		"metadata":       {`{"issueKeywords":"go"}`},
	}

	w := s.do(http.MethodPost, "/api/v1/bounty/create", "funder", form)
	body := decode(t, w)
	assert.Equal(t, float64(204), body["status"])
	assert.Contains(t, body["bounty_url"], "https://gitcoin.co/issue/gitcoinco/web/42/")

	w = s.do(http.MethodPost, "/api/v1/bounty/create", "funder", form)
	assert.Equal(t, float64(303), decode(t, w)["status"])
}

func TestInterestEndpoints(t *testing.T) {
	s := newServer(t)
	b := s.bounty()
	alice := s.profile("alice")
	s.profile("bob")
	base := fmt.Sprintf("/actions/bounty/%d", b.Id)

	w := s.do(http.MethodPost, base+"/interest/new", "", url.Values{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, base+"/interest/new", "alice", url.Values{"issue_message": {"on it"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, logic.MsgStartedWork, body["msg"])

	w = s.do(http.MethodPost, base+"/interest/new", "bob", url.Values{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, decode(t, w)["error"])

	w = s.do(http.MethodPost, fmt.Sprintf("%s/interest/%d/uninterested", base, alice.Id), "bob", url.Values{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, base+"/interest/remove", "alice", url.Values{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, logic.MsgStoppedWork, decode(t, w)["msg"])

	w = s.do(http.MethodPost, base+"/worker/approve", "funder", url.Values{})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "funder has no profile yet")

	s.profile("funder")
	w = s.do(http.MethodPost, base+"/worker/approve", "funder", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/actions/bounty/9999/interest/new", "alice", url.Values{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestModerationEndpoints(t *testing.T) {
	s := newServer(t)
	b := s.bounty()
	s.profile("funder")
	base := fmt.Sprintf("/actions/bounty/%d", b.Id)

	w := s.do(http.MethodPost, base+"/remarket", "funder", url.Values{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = s.do(http.MethodPost, base+"/extend_expiration", "funder", url.Values{"deadline": {"abc"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, base+"/hide", "funder", url.Values{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestSyncEndpoints(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodPost, "/sync/web3", "", url.Values{"url": {issueURL}, "network": {"rinkeby"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad request", decode(t, w)["msg"])

	w = s.do(http.MethodPost, "/sync/web3", "", url.Values{"url": {issueURL}, "txid": {"0xmined"}, "network": {"rinkeby"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "could not find bounty id", decode(t, w)["msg"])

	w = s.doJSON("/api/v1/sync/requests", "", map[string]interface{}{"network": "rinkeby", "standard_bounties_id": 5})
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = s.doJSON("/api/v1/sync/requests", "", map[string]interface{}{"network": "rinkeby", "standard_bounties_id": 5})
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.doJSON("/api/v1/sync/requests", "", map[string]interface{}{"network": "rinkeby"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncWeb3ReadFailures(t *testing.T) {
	form := url.Values{"url": {issueURL}, "txid": {"0xmined"}, "network": {"rinkeby"}}

	s := newServerWithReader(t, stubReader{ids: map[string]int64{issueURL: 42}})
	w := s.do(http.MethodPost, "/sync/web3", "", form)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "bounty not found", decode(t, w)["msg"])

	s = newServerWithReader(t, stubReader{
		ids:     map[string]int64{issueURL: 42},
		readErr: fmt.Errorf("%w: QmHash: timeout", ipfs.ErrCantConnect),
	})
	w = s.do(http.MethodPost, "/sync/web3", "", form)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, decode(t, w)["did_change"])
}

func TestRecordTipEndpoint(t *testing.T) {
	s := newServer(t)
	s.profile("alice")
	s.profile("bob")

	w := s.doJSON("/api/v1/tips", "bob", map[string]interface{}{
		"username":   "alice",
		"token_name": "ETH",
		"amount":     1.5,
		"txid":       "0xtip",
		"network":    "rinkeby",
		"github_url": issueURL,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "bob", data["tip"].(map[string]interface{})["from_username"])
	assert.NotNil(t, data["earning"])

	w = s.doJSON("/api/v1/tips", "bob", map[string]interface{}{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
