// Package chaintest provides an in-memory StandardBounties node and IPFS store for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/zoek1/web-1/internal/chain"
	"github.com/zoek1/web-1/internal/ipfs"
)

// Fulfillment 链上提交
type Fulfillment struct {
	Accepted  bool
	Fulfiller common.Address
	Data      string
}

// Bounty 链上悬赏
type Bounty struct {
	Issuer       common.Address
	Deadline     int64
	Amount       *big.Int
	PaysTokens   bool
	Stage        int64
	Balance      *big.Int
	Data         string
	Arbiter      common.Address
	Token        common.Address
	Fulfillments []Fulfillment
}

// Backend 内存链节点
type Backend struct {
	mu       sync.Mutex
	Bounties []*Bounty
	Pending  map[common.Hash]bool
	Receipts map[common.Hash]*types.Receipt
	Logs     []types.Log
	Head     uint64
	Calls    int
}

// NewBackend 创建内存节点
func NewBackend() *Backend {
	return &Backend{
		Pending:  make(map[common.Hash]bool),
		Receipts: make(map[common.Hash]*types.Receipt),
	}
}

// AddBounty 追加悬赏，返回编号
func (b *Backend) AddBounty(bounty *Bounty) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bounty.Amount == nil {
		bounty.Amount = big.NewInt(0)
	}
	if bounty.Balance == nil {
		bounty.Balance = new(big.Int).Set(bounty.Amount)
	}
	b.Bounties = append(b.Bounties, bounty)
	return int64(len(b.Bounties) - 1)
}

// Update 修改已有悬赏
func (b *Backend) Update(id int64, fn func(*Bounty)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.Bounties[id])
}

func (b *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls++

	contractABI := chain.StandardBountiesABI()
	if len(msg.Data) < 4 {
		return nil, errors.New("short call data")
	}
	method, err := contractABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	if method.Name == "getNumBounties" {
		return method.Outputs.Pack(big.NewInt(int64(len(b.Bounties))))
	}

	id := args[0].(*big.Int).Int64()
	if id < 0 || id >= int64(len(b.Bounties)) {
		// 不存在的编号返回空输出
		return nil, nil
	}
	bounty := b.Bounties[id]
	return b.pack(method, bounty, args)
}

func (b *Backend) pack(method *abi.Method, bounty *Bounty, args []interface{}) ([]byte, error) {
	switch method.Name {
	case "getBounty":
		return method.Outputs.Pack(bounty.Issuer, big.NewInt(bounty.Deadline), bounty.Amount,
			bounty.PaysTokens, big.NewInt(bounty.Stage), bounty.Balance)
	case "getBountyData":
		return method.Outputs.Pack(bounty.Data)
	case "getBountyArbiter":
		return method.Outputs.Pack(bounty.Arbiter)
	case "getBountyToken":
		return method.Outputs.Pack(bounty.Token)
	case "getNumFulfillments":
		return method.Outputs.Pack(big.NewInt(int64(len(bounty.Fulfillments))))
	case "getFulfillment":
		fid := args[1].(*big.Int).Int64()
		if fid < 0 || fid >= int64(len(bounty.Fulfillments)) {
			return nil, nil
		}
		f := bounty.Fulfillments[fid]
		return method.Outputs.Pack(f.Accepted, f.Fulfiller, f.Data)
	default:
		return nil, fmt.Errorf("unsupported method %s", method.Name)
	}
}

func (b *Backend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []types.Log
	for _, l := range b.Logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (b *Backend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions are not supported")
}

func (b *Backend) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending, ok := b.Pending[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return types.NewTx(&types.LegacyTx{}), pending, nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.Receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(b.Head)}, nil
}

// IPFS 内存 IPFS
type IPFS struct {
	mu    sync.Mutex
	Files map[string][]byte
	Down  bool
}

// NewIPFS 创建内存 IPFS
func NewIPFS() *IPFS {
	return &IPFS{Files: make(map[string][]byte)}
}

// Put 写入内容
func (s *IPFS) Put(key string, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Files[key] = []byte(body)
}

func (s *IPFS) Cat(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Down {
		return nil, fmt.Errorf("%w: %s", ipfs.ErrCantConnect, key)
	}
	body, ok := s.Files[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ipfs.ErrNotFound, key)
	}
	return body, nil
}
