package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ChargeRequest 扣款请求
type ChargeRequest struct {
	SubscriptionID uint
	RestaurantID   uint
	Amount         float64
	Description    string
}

// ChargeResult 扣款结果
type ChargeResult struct {
	Reference string
}

// PaymentGateway 支付网关，返回错误即视为扣款失败
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// OfflineGateway 不对接外部支付，生成待线下结算的账单号
type OfflineGateway struct{}

func (OfflineGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Amount < 0 {
		return nil, fmt.Errorf("扣款金额不能为负数: %.2f", req.Amount)
	}
	return &ChargeResult{Reference: "offline-" + uuid.New().String()}, nil
}
