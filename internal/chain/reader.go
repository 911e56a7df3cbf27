package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/ipfs"
	"github.com/zoek1/web-1/internal/logger"
)

// 合约中的悬赏阶段
const (
	StageDraft  = 0
	StageActive = 1
	StageDead   = 2
)

// SnapshotFulfillment 链上提交
type SnapshotFulfillment struct {
	ID        int64                  `json:"id"`
	Accepted  bool                   `json:"accepted"`
	Fulfiller string                 `json:"fulfiller"`
	Data      map[string]interface{} `json:"data"`
}

// Snapshot 链上悬赏及其 IPFS 内容的一次完整读取
type Snapshot struct {
	ID                int64                  `json:"id"`
	Issuer            string                 `json:"issuer"`
	Deadline          int64                  `json:"deadline"`
	ContractDeadline  int64                  `json:"contract_deadline"`
	IPFSDeadline      int64                  `json:"ipfs_deadline"`
	FulfillmentAmount *big.Int               `json:"fulfillmentAmount"`
	PaysTokens        bool                   `json:"paysTokens"`
	BountyStage       int64                  `json:"bountyStage"`
	Balance           *big.Int               `json:"balance"`
	Data              map[string]interface{} `json:"data"`
	Arbiter           string                 `json:"arbiter"`
	Token             string                 `json:"token"`
	Fulfillments      []SnapshotFulfillment  `json:"fulfillments"`
	Network           string                 `json:"network"`
	Review            map[string]interface{} `json:"review"`
}

// Payload data.payload
func (s *Snapshot) Payload() map[string]interface{} {
	return SubMap(s.Data, "payload")
}

// SubMap 读取嵌套对象，缺失返回空 map
func SubMap(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return map[string]interface{}{}
}

// String 读取字符串字段，数值会被格式化
func String(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int 读取整数字段，无法解析返回 0
func Int(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return int64(n)
	default:
		return 0
	}
}

// ToMap 转为 raw_data 存储的 map
func (s *Snapshot) ToMap() map[string]interface{} {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// RegistrySource 按网络获取合约调用器
type RegistrySource interface {
	Registry(network string) (RegistryCaller, error)
}

// Fetcher IPFS 读取
type Fetcher interface {
	Cat(ctx context.Context, key string) ([]byte, error)
}

// Reader 链上悬赏读取器
type Reader struct {
	registries RegistrySource
	ipfs       Fetcher
	env        config.Environment
}

// NewReader 创建读取器
func NewReader(registries RegistrySource, fetcher Fetcher, env config.Environment) *Reader {
	return &Reader{registries: registries, ipfs: fetcher, env: env}
}

// GetBounty 读取完整快照；被环境屏蔽的网络返回 nil, nil
func (r *Reader) GetBounty(ctx context.Context, id int64, network string) (*Snapshot, error) {
	if r.env.Suppresses(network) {
		logger.Debug("skipping %s read of bounty %d in this environment", network, id)
		return nil, nil
	}
	reg, err := r.registries.Registry(network)
	if err != nil {
		return nil, err
	}

	head, err := reg.GetBounty(ctx, id)
	if err != nil {
		return nil, err
	}
	dataHash, err := reg.GetBountyData(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getBountyData %d: %w", id, err)
	}
	arbiter, err := reg.GetBountyArbiter(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getBountyArbiter %d: %w", id, err)
	}
	token, err := reg.GetBountyToken(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getBountyToken %d: %w", id, err)
	}

	raw, err := r.ipfs.Cat(ctx, dataHash)
	if err != nil {
		return nil, unreachable(err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("bounty %d payload %s is not json: %w", id, dataHash, err)
	}

	num, err := reg.GetNumFulfillments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getNumFulfillments %d: %w", id, err)
	}
	fulfillments := make([]SnapshotFulfillment, 0, num)
	for i := int64(0); i < num; i++ {
		f, err := reg.GetFulfillment(ctx, id, i)
		if err != nil {
			return nil, fmt.Errorf("getFulfillment %d/%d: %w", id, i, err)
		}
		body, err := r.ipfs.Cat(ctx, f.Data)
		if err != nil {
			return nil, unreachable(err)
		}
		var fdata map[string]interface{}
		if err := json.Unmarshal(body, &fdata); err != nil {
			logger.Error("Could not decode fulfillment %d of bounty %d from ipfs %s", i, id, f.Data)
			continue
		}
		fulfillments = append(fulfillments, SnapshotFulfillment{
			ID:        i,
			Accepted:  f.Accepted,
			Fulfiller: f.Fulfiller.Hex(),
			Data:      fdata,
		})
	}

	snap := &Snapshot{
		ID:                id,
		Issuer:            head.Issuer.Hex(),
		ContractDeadline:  head.ContractDeadline.Int64(),
		FulfillmentAmount: head.FulfillmentAmount,
		PaysTokens:        head.PaysTokens,
		BountyStage:       head.BountyStage.Int64(),
		Balance:           head.Balance,
		Data:              data,
		Arbiter:           arbiter.Hex(),
		Token:             token.Hex(),
		Fulfillments:      fulfillments,
		Network:           network,
		Review:            SubMap(data, "review"),
	}
	snap.IPFSDeadline = Int(snap.Payload(), "expire_date")
	snap.Deadline = snap.ContractDeadline
	if snap.IPFSDeadline != 0 {
		snap.Deadline = snap.IPFSDeadline
	}
	return snap, nil
}

func unreachable(err error) error {
	if errors.Is(err, ipfs.ErrCantConnect) {
		return err
	}
	return fmt.Errorf("%w: %v", ipfs.ErrCantConnect, err)
}

// FindBountyID 在链上查找 webReferenceURL 匹配的编号
//
// 有悬赏时从最新编号向下扫描，否则从 from 向上扫描，遇到不存在的编号停止。
func (r *Reader) FindBountyID(ctx context.Context, network, githubURL string, from int64) (int64, bool, error) {
	reg, err := r.registries.Registry(network)
	if err != nil {
		return 0, false, err
	}
	total, err := reg.GetNumBounties(ctx)
	if err != nil {
		return 0, false, err
	}

	step, start := int64(-1), total-1
	if total <= 0 {
		step, start = 1, from
	}
	for id := start; id >= 0; id += step {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		snap, err := r.GetBounty(ctx, id, network)
		if errors.Is(err, ErrBountyNotFound) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		if snap == nil {
			return 0, false, nil
		}
		if strings.EqualFold(String(snap.Payload(), "webReferenceURL"), githubURL) {
			return id, true, nil
		}
	}
	return 0, false, nil
}
