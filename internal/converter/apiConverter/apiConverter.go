package apiConverter

import (
	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/model/apiModel"
	"github.com/shopspring/decimal"
)

func ConvertHolding(h apiModel.Holding) model.Holding {
	return model.Holding{
		ID:            h.ID,
		Code:          h.Code,
		Name:          h.Name,
		HoldingAmount: orZero(h.HoldingAmount),
		ShareCount:    orZero(h.HoldingCount),
		CurrentProfit: orZero(h.CurrentProfit),
		Notes:         h.Notes,
	}
}

func ConvertHoldingRequest(req model.HoldingRequest) apiModel.HoldingRequest {
	return apiModel.HoldingRequest{
		Code:          req.Code,
		Name:          req.Name,
		HoldingCount:  req.ShareCount.InexactFloat64(),
		HoldingAmount: req.HoldingAmount.InexactFloat64(),
		CurrentProfit: req.CurrentProfit.InexactFloat64(),
		Notes:         req.Notes,
	}
}

func ConvertFundSummary(f apiModel.FundSummary) model.FundSummary {
	return model.FundSummary{
		Code:     f.Code,
		Name:     f.Name,
		FullName: f.FullName,
		Type:     f.Type,
	}
}

func ConvertFundDetail(f apiModel.FundDetail) model.FundDetail {
	return model.FundDetail{
		Code:      f.Code,
		Name:      f.Name,
		FullName:  f.FullName,
		Type:      f.Type,
		Rating:    f.Rating,
		RiskLevel: f.RiskLevel,
	}
}

func ConvertFundEstimate(f apiModel.FundEstimate) model.FundEstimate {
	return model.FundEstimate{
		Code:          f.Code,
		EstimateValue: orZero(f.EstimateValue),
		YesterdayNav:  orZero(f.YesterdayNav),
		EstimateTime:  f.EstimateTime,
	}
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
