package logic

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/zoek1/web-1/internal/lifecycle"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"gorm.io/gorm"
)

const (
	currencyUSDT = "USDT"
	currencyETH  = "ETH"
)

// txConverter 可在事务中使用的换算器
type txConverter interface {
	WithTx(tx *gorm.DB) Converter
}

// Valuer 悬赏与打赏估值
type Valuer struct {
	conv   Converter
	tokens *lifecycle.TokenRegistry
}

// NewValuer 创建估值器
func NewValuer(conv Converter) *Valuer {
	return &Valuer{conv: conv, tokens: lifecycle.Tokens()}
}

// WithTx 换算器支持事务时在事务中查询汇率
func (v *Valuer) WithTx(tx *gorm.DB) *Valuer {
	if c, ok := v.conv.(txConverter); ok {
		return &Valuer{conv: c.WithTx(tx), tokens: v.tokens}
	}
	return v
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func ptr(f float64) *float64 {
	return &f
}

// NaturalValue 按代币精度换算后的数额
func (v *Valuer) NaturalValue(b *model.Bounty) float64 {
	return v.tokens.NaturalValue(b.TokenAddress, b.TokenName, b.ValueInToken)
}

// AmountUSDTAt 将已换算精度的数额折算为 USDT，先直接换算，失败再经 ETH 中转
func (v *Valuer) AmountUSDTAt(ctx context.Context, symbol string, amount float64, at *time.Time) (*float64, error) {
	if strings.EqualFold(symbol, currencyUSDT) || v.tokens.IsStable(symbol) {
		return ptr(amount), nil
	}
	usdt, err := v.conv.Convert(ctx, amount, symbol, currencyUSDT, at)
	if err == nil {
		return ptr(round2(usdt)), nil
	}
	inETH, err := v.conv.Convert(ctx, amount, symbol, currencyETH, at)
	if err != nil {
		return nil, err
	}
	usdt, err = v.conv.Convert(ctx, inETH, currencyETH, currencyUSDT, at)
	if err != nil {
		return nil, err
	}
	return ptr(round2(usdt)), nil
}

// BountyUSDTAt 悬赏在某一时刻的 USDT 价值，无法估值返回 nil
func (v *Valuer) BountyUSDTAt(ctx context.Context, b *model.Bounty, at *time.Time) *float64 {
	switch {
	case strings.EqualFold(b.TokenName, currencyUSDT):
		return ptr(b.ValueInToken / 1e6)
	case v.tokens.IsStable(b.TokenName):
		return ptr(b.ValueInToken / 1e18)
	}
	value, err := v.AmountUSDTAt(ctx, b.TokenName, v.NaturalValue(b), at)
	if err != nil {
		logger.Debug("no usdt valuation for bounty %d (%s): %v", b.Id, b.TokenName, err)
		return nil
	}
	return value
}

// ValueInETH 悬赏的 ETH 价值
func (v *Valuer) ValueInETH(ctx context.Context, b *model.Bounty) *float64 {
	if strings.EqualFold(b.TokenName, currencyETH) {
		return ptr(b.ValueInToken / 1e18)
	}
	eth, err := v.conv.Convert(ctx, v.NaturalValue(b), b.TokenName, currencyETH, nil)
	if err != nil {
		return nil
	}
	return ptr(eth)
}

// TokenUSDTAt 单个代币的 USDT 价格
func (v *Valuer) TokenUSDTAt(ctx context.Context, symbol string, at *time.Time) *float64 {
	if v.tokens.IsStable(symbol) || strings.EqualFold(symbol, currencyUSDT) {
		return ptr(1)
	}
	price, err := v.conv.Convert(ctx, 1, symbol, currencyUSDT, at)
	if err != nil {
		return nil
	}
	return ptr(round2(price))
}

// Apply 写入估值缓存，进行中的悬赏按当前价格，其余按创建时价格
func (v *Valuer) Apply(ctx context.Context, b *model.Bounty, status string, now time.Time) {
	created := b.Web3Created
	open := lifecycle.IsOpenStatus(status)

	b.ValueTrue = v.NaturalValue(b)
	b.ValueInUsdtNow = v.BountyUSDTAt(ctx, b, nil)
	b.ValueInEth = v.ValueInETH(ctx, b)
	if open {
		b.ValueInUsdt = b.ValueInUsdtNow
		b.TokenValueTimePeg = &now
		b.TokenValueInUsdt = v.TokenUSDTAt(ctx, b.TokenName, nil)
		return
	}
	b.ValueInUsdt = v.BountyUSDTAt(ctx, b, &created)
	b.TokenValueTimePeg = &created
	b.TokenValueInUsdt = v.TokenUSDTAt(ctx, b.TokenName, &created)
}
