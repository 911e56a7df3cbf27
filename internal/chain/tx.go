package chain

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/zoek1/web-1/internal/model"
)

// DroppedAfter 没有回执超过该时长视为丢弃
const DroppedAfter = 4 * 24 * time.Hour

// OverrideTxID 管理员手动确认的交易
const OverrideTxID = "override"

// BackendSource 按网络获取后端
type BackendSource interface {
	Backend(network string) (Backend, error)
}

// TxChecker 交易状态查询
type TxChecker struct {
	backends BackendSource
}

// NewTxChecker 创建交易查询器
func NewTxChecker(backends BackendSource) *TxChecker {
	return &TxChecker{backends: backends}
}

// HasTxMined 交易已打包（区块哈希非零）
func (c *TxChecker) HasTxMined(ctx context.Context, network, txid string) bool {
	backend, err := c.backends.Backend(network)
	if err != nil {
		return false
	}
	tx, pending, err := backend.TransactionByHash(ctx, common.HexToHash(txid))
	if err != nil || tx == nil {
		return false
	}
	return !pending
}

// TxStatus 交易状态：success, error, pending, dropped, unknown
func (c *TxChecker) TxStatus(ctx context.Context, network, txid string, createdOn, now time.Time) (string, error) {
	if txid == OverrideTxID {
		return model.TxStatusSuccess, nil
	}
	backend, err := c.backends.Backend(network)
	if err != nil {
		return model.TxStatusUnknown, err
	}

	receipt, err := backend.TransactionReceipt(ctx, common.HexToHash(txid))
	if errors.Is(err, ethereum.NotFound) || (err == nil && receipt == nil) {
		if now.After(createdOn.Add(DroppedAfter)) {
			return model.TxStatusDropped, nil
		}
		return model.TxStatusPending, nil
	}
	if err != nil {
		return model.TxStatusUnknown, err
	}

	switch receipt.Status {
	case types.ReceiptStatusSuccessful:
		return model.TxStatusSuccess, nil
	case types.ReceiptStatusFailed:
		return model.TxStatusError, nil
	default:
		return model.TxStatusUnknown, nil
	}
}
