package xslsxGenerator

import (
	"bytes"
	"context"
	"testing"

	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/aggregator"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/valuation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGenerate_EmptyPortfolio(t *testing.T) {
	_, _, err := New().Generate(context.Background(), model.PortfolioView{})
	assert.ErrorIs(t, err, ErrEmptyPortfolio)
}

func TestGenerate_WritesHoldingsAndSummary(t *testing.T) {
	holdings := []model.EnrichedHolding{
		valuation.Enrich(
			model.Holding{ID: 1, Code: "161725", Name: "白酒", HoldingAmount: d("1000"), ShareCount: d("833.33"), CurrentProfit: d("150")},
			model.FundReference{Code: "161725", Name: "招商中证白酒", Type: "指数型", CurrentValuation: d("1.2"), PriorValuation: d("1.1")},
		),
		// failed reference
		valuation.Enrich(
			model.Holding{ID: 2, Code: "110011", Name: "易方达中小盘", HoldingAmount: d("500"), CurrentProfit: d("-20")},
			model.FundReference{Code: "110011"},
		),
	}
	view := model.PortfolioView{Holdings: holdings, Summary: aggregator.Summarize(holdings)}

	content, ext, err := New().Generate(context.Background(), view)
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", ext)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	cell := func(axis string) string {
		t.Helper()
		v, err := f.GetCellValue(SheetName, axis)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "基金", cell("A1"))
	assert.Equal(t, "收益", cell("L1"))
	assert.Equal(t, "今日预估", cell("N2"))

	assert.Equal(t, "招商中证白酒", cell("A3"))
	assert.Equal(t, "161725", cell("B3"))
	assert.Equal(t, "150", cell("L3"))
	assert.Equal(t, "17.65", cell("M3"))
	assert.Equal(t, "83.33", cell("N3"))

	assert.Equal(t, "易方达中小盘", cell("A4"))
	assert.Equal(t, "0", cell("K4"))
	assert.Equal(t, "—", cell("N4"))

	// summary follows a blank row after the last holding
	assert.Equal(t, "合计", cell("A6"))
	assert.Equal(t, "2", cell("B7"))
	assert.Equal(t, "130", cell("B10"))
	assert.Equal(t, "83.33", cell("B12"))
}
