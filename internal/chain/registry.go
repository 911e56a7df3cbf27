package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrBountyNotFound 合约中不存在该编号
var ErrBountyNotFound = errors.New("bounty not found on chain")

// OnChainBounty getBounty 返回值
type OnChainBounty struct {
	Issuer            common.Address
	ContractDeadline  *big.Int
	FulfillmentAmount *big.Int
	PaysTokens        bool
	BountyStage       *big.Int
	Balance           *big.Int
}

// OnChainFulfillment getFulfillment 返回值
type OnChainFulfillment struct {
	Accepted  bool
	Fulfiller common.Address
	Data      string
}

// RegistryCaller StandardBounties 只读调用
type RegistryCaller interface {
	GetBounty(ctx context.Context, id int64) (*OnChainBounty, error)
	GetBountyData(ctx context.Context, id int64) (string, error)
	GetBountyArbiter(ctx context.Context, id int64) (common.Address, error)
	GetBountyToken(ctx context.Context, id int64) (common.Address, error)
	GetNumFulfillments(ctx context.Context, id int64) (int64, error)
	GetFulfillment(ctx context.Context, id, fulfillmentID int64) (*OnChainFulfillment, error)
	GetNumBounties(ctx context.Context) (int64, error)
}

// Registry 基于 abi.Pack + CallContract 的合约调用
type Registry struct {
	caller  ethereum.ContractCaller
	address common.Address
	abi     abi.ABI
}

// NewRegistry 创建合约调用器
func NewRegistry(caller ethereum.ContractCaller, address common.Address) *Registry {
	return &Registry{caller: caller, address: address, abi: StandardBountiesABI()}
}

func (r *Registry) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty output", method)
	}
	values, err := r.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// GetBounty 读取悬赏主体，调用失败视为不存在
func (r *Registry) GetBounty(ctx context.Context, id int64) (*OnChainBounty, error) {
	v, err := r.call(ctx, "getBounty", big.NewInt(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %d: %v", ErrBountyNotFound, id, err)
	}
	return &OnChainBounty{
		Issuer:            v[0].(common.Address),
		ContractDeadline:  v[1].(*big.Int),
		FulfillmentAmount: v[2].(*big.Int),
		PaysTokens:        v[3].(bool),
		BountyStage:       v[4].(*big.Int),
		Balance:           v[5].(*big.Int),
	}, nil
}

// GetBountyData IPFS 哈希
func (r *Registry) GetBountyData(ctx context.Context, id int64) (string, error) {
	v, err := r.call(ctx, "getBountyData", big.NewInt(id))
	if err != nil {
		return "", err
	}
	return v[0].(string), nil
}

func (r *Registry) GetBountyArbiter(ctx context.Context, id int64) (common.Address, error) {
	v, err := r.call(ctx, "getBountyArbiter", big.NewInt(id))
	if err != nil {
		return common.Address{}, err
	}
	return v[0].(common.Address), nil
}

func (r *Registry) GetBountyToken(ctx context.Context, id int64) (common.Address, error) {
	v, err := r.call(ctx, "getBountyToken", big.NewInt(id))
	if err != nil {
		return common.Address{}, err
	}
	return v[0].(common.Address), nil
}

func (r *Registry) GetNumFulfillments(ctx context.Context, id int64) (int64, error) {
	v, err := r.call(ctx, "getNumFulfillments", big.NewInt(id))
	if err != nil {
		return 0, err
	}
	return v[0].(*big.Int).Int64(), nil
}

func (r *Registry) GetFulfillment(ctx context.Context, id, fulfillmentID int64) (*OnChainFulfillment, error) {
	v, err := r.call(ctx, "getFulfillment", big.NewInt(id), big.NewInt(fulfillmentID))
	if err != nil {
		return nil, err
	}
	return &OnChainFulfillment{
		Accepted:  v[0].(bool),
		Fulfiller: v[1].(common.Address),
		Data:      v[2].(string),
	}, nil
}

func (r *Registry) GetNumBounties(ctx context.Context) (int64, error) {
	v, err := r.call(ctx, "getNumBounties")
	if err != nil {
		return 0, err
	}
	return v[0].(*big.Int).Int64(), nil
}
