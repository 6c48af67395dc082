package dbConverter

import (
	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/model/dbModel"
)

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	return model.Holding{
		ID:            dbHolding.HoldingID,
		Code:          dbHolding.Code,
		Name:          dbHolding.Name,
		HoldingAmount: dbHolding.HoldingAmount,
		ShareCount:    dbHolding.ShareCount,
		CurrentProfit: dbHolding.CurrentProfit,
		Notes:         dbHolding.Notes.String,
	}
}
