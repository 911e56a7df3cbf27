package logic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zoek1/web-1/internal/model"
	"gorm.io/gorm"
)

// Converter 汇率换算
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string, at *time.Time) (float64, error)
}

// ConversionLogic 基于 conversion_rate 表的换算
type ConversionLogic struct {
	db *gorm.DB
}

// NewConversionLogic 创建换算逻辑
func NewConversionLogic(db *gorm.DB) *ConversionLogic {
	return &ConversionLogic{db: db}
}

// WithTx 在事务中使用
func (c *ConversionLogic) WithTx(tx *gorm.DB) Converter {
	return &ConversionLogic{db: tx}
}

// Convert 使用 at 之前最近的汇率，at 为空取最新
func (c *ConversionLogic) Convert(ctx context.Context, amount float64, from, to string, at *time.Time) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount, nil
	}

	q := c.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ?", from, to)
	if at != nil {
		q = q.Where("timestamp <= ?", *at)
	}

	var rate model.ConversionRate
	if err := q.Order("timestamp DESC, id DESC").First(&rate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: %s->%s", ErrConversionRateNotFound, from, to)
		}
		return 0, fmt.Errorf("获取汇率失败: %w", err)
	}
	if rate.FromAmount == 0 {
		return 0, fmt.Errorf("%w: %s->%s has zero base", ErrConversionRateNotFound, from, to)
	}
	return amount * rate.ToAmount / rate.FromAmount, nil
}

// AddRate 写入一条汇率
func (c *ConversionLogic) AddRate(ctx context.Context, from, to string, fromAmount, toAmount float64, at time.Time, source string) error {
	rate := model.ConversionRate{
		FromCurrency: strings.ToUpper(from),
		ToCurrency:   strings.ToUpper(to),
		FromAmount:   fromAmount,
		ToAmount:     toAmount,
		Timestamp:    at,
		Source:       source,
	}
	return c.db.WithContext(ctx).Create(&rate).Error
}
