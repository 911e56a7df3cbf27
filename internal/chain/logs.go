package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RegistryEvent 合约事件中与同步相关的部分
type RegistryEvent struct {
	Name        string
	BountyID    int64
	TxHash      string
	BlockNumber uint64
	LogIndex    uint
}

// FilterRegistryLogs 获取区块区间内合约的日志
func FilterRegistryLogs(ctx context.Context, backend Backend, registry common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{registry},
	}
	return backend.FilterLogs(ctx, query)
}

// CurrentBlockNumber 最新区块号
func CurrentBlockNumber(ctx context.Context, backend Backend) (uint64, error) {
	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// ParseRegistryEvent 解析日志，所有事件的第一个非索引参数都是悬赏编号
func ParseRegistryEvent(log types.Log) (*RegistryEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log without topics in tx %s", log.TxHash.Hex())
	}
	contractABI := StandardBountiesABI()
	event, err := contractABI.EventByID(log.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("unknown event signature %s: %w", log.Topics[0].Hex(), err)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("event %s has no bounty id", event.Name)
	}
	id, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("event %s bounty id has type %T", event.Name, values[0])
	}

	return &RegistryEvent{
		Name:        event.Name,
		BountyID:    id.Int64(),
		TxHash:      log.TxHash.Hex(),
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
	}, nil
}
