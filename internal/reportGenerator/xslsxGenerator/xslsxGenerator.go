package xslsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "持仓"
	notComputed = "—"
	firstRow    = 3
)

var ErrEmptyPortfolio = errors.New("error empty portfolio")

type group struct {
	from, to string
	title    string
	color    string
	columns  []string
}

var groups = []group{
	{from: "A", to: "D", title: "基金", color: "#cfe2f3", columns: []string{"名称", "代码", "类型", "风险"}},
	{from: "E", to: "H", title: "持仓", color: "#d9ead3", columns: []string{"持有金额", "持有份额", "成本价", "备注"}},
	{from: "I", to: "K", title: "估值", color: "#f9cb9c", columns: []string{"估算净值", "昨日净值", "市值"}},
	{from: "L", to: "N", title: "收益", color: "#f4cccc", columns: []string{"持有收益", "收益率 %", "今日预估"}},
}

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

func (g *XSLSXGenerator) Generate(ctx context.Context, view model.PortfolioView) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	if len(view.Holdings) == 0 {
		return nil, "", ErrEmptyPortfolio
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("holdings", len(view.Holdings)))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err = f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, "", err
	}

	if err = g.fillHeader(f); err != nil {
		slog.Error("got error while filling header", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	for i, h := range view.Holdings {
		g.fillRow(f, firstRow+i, h)
	}

	if err = g.fillSummary(f, firstRow+len(view.Holdings)+1, view.Summary); err != nil {
		slog.Error("got error while filling summary", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XSLSXGenerator) fillHeader(f *excelize.File) error {
	for _, gr := range groups {
		if err := f.MergeCell(SheetName, gr.from+"1", gr.to+"1"); err != nil {
			return err
		}
		_ = f.SetCellStr(SheetName, gr.from+"1", gr.title)

		styleID, err := headerStyle(f, gr.color)
		if err != nil {
			return err
		}
		if err = f.SetCellStyle(SheetName, gr.from+"1", gr.to+"1", styleID); err != nil {
			return fmt.Errorf("apply header style: %w", err)
		}

		start, err := excelize.ColumnNameToNumber(gr.from)
		if err != nil {
			return err
		}
		for i, title := range gr.columns {
			cell, _ := excelize.CoordinatesToCellName(start+i, 2)
			_ = f.SetCellStr(SheetName, cell, title)
		}
	}
	return nil
}

func (g *XSLSXGenerator) fillRow(f *excelize.File, row int, h model.EnrichedHolding) {
	_ = f.SetCellStr(SheetName, fmt.Sprintf("A%d", row), h.DisplayName())
	_ = f.SetCellStr(SheetName, fmt.Sprintf("B%d", row), h.Code)
	_ = f.SetCellStr(SheetName, fmt.Sprintf("C%d", row), h.Reference.Type)
	_ = f.SetCellStr(SheetName, fmt.Sprintf("D%d", row), h.Reference.RiskLevel)

	_ = f.SetCellValue(SheetName, fmt.Sprintf("E%d", row), h.HoldingAmount.InexactFloat64())
	_ = f.SetCellValue(SheetName, fmt.Sprintf("F%d", row), h.ShareCount.InexactFloat64())
	_ = f.SetCellValue(SheetName, fmt.Sprintf("G%d", row), h.BuyPrice.Round(4).InexactFloat64())
	_ = f.SetCellStr(SheetName, fmt.Sprintf("H%d", row), h.Notes)

	_ = f.SetCellValue(SheetName, fmt.Sprintf("I%d", row), h.Reference.CurrentValuation.InexactFloat64())
	_ = f.SetCellValue(SheetName, fmt.Sprintf("J%d", row), h.Reference.PriorValuation.InexactFloat64())
	_ = f.SetCellValue(SheetName, fmt.Sprintf("K%d", row), money(h.Value))

	_ = f.SetCellValue(SheetName, fmt.Sprintf("L%d", row), money(h.Profit))
	_ = f.SetCellValue(SheetName, fmt.Sprintf("M%d", row), money(h.ProfitRate))
	if h.TodayEstimateProfit.Valid {
		_ = f.SetCellValue(SheetName, fmt.Sprintf("N%d", row), money(h.TodayEstimateProfit.Decimal))
	} else {
		_ = f.SetCellStr(SheetName, fmt.Sprintf("N%d", row), notComputed)
	}
}

func (g *XSLSXGenerator) fillSummary(f *excelize.File, row int, s model.PortfolioSummary) error {
	if err := f.MergeCell(SheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row)); err != nil {
		return err
	}
	_ = f.SetCellStr(SheetName, fmt.Sprintf("A%d", row), "合计")

	styleID, err := headerStyle(f, "#cccccc")
	if err != nil {
		return err
	}
	if err = f.SetCellStyle(SheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), styleID); err != nil {
		return fmt.Errorf("apply summary style: %w", err)
	}

	rows := []struct {
		title string
		value any
	}{
		{"基金数量", s.HoldingsCount},
		{"总市值", money(s.TotalValue)},
		{"总成本", money(s.TotalCost)},
		{"持有收益", money(s.TotalProfit)},
		{"收益率 %", money(s.TotalProfitRate)},
		{"今日预估", notComputed},
	}
	if s.HasTodayEstimate {
		rows[len(rows)-1].value = money(s.TotalTodayEstimateProfit)
	}

	for i, r := range rows {
		_ = f.SetCellStr(SheetName, fmt.Sprintf("A%d", row+1+i), r.title)
		_ = f.SetCellValue(SheetName, fmt.Sprintf("B%d", row+1+i), r.value)
	}

	return nil
}

func headerStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
