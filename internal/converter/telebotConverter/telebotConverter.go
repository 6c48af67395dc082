package telebotConverter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/model/tg/tgCallback"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const (
	notAvailable = "—"
	staleNotice  = "⚠️ 持仓暂时无法加载，请稍后 /refresh\n\n"
)

var ErrBadFormat = errors.New("error bad input format")

func Money(d decimal.Decimal) string {
	return "¥" + d.StringFixed(2)
}

func SignedMoney(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+¥" + d.StringFixed(2)
	}
	if d.IsNegative() {
		return "-¥" + d.Abs().StringFixed(2)
	}
	return "¥0.00"
}

// Estimate renders a not computable estimate as a dash, never as zero.
func Estimate(d decimal.NullDecimal) string {
	if !d.Valid {
		return notAvailable
	}
	return SignedMoney(d.Decimal)
}

func Percent(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

func PortfolioResponse(view model.PortfolioView) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	if view.Stale {
		sb.WriteString(staleNotice)
	}

	s := view.Summary
	sb.WriteString(fmt.Sprintf("📊 我的基金 (%d 只)\n", s.HoldingsCount))
	sb.WriteString(fmt.Sprintf("💰 总市值: %s\n", Money(s.TotalValue)))
	sb.WriteString(fmt.Sprintf("📈 持有收益: %s (%s)\n", SignedMoney(s.TotalProfit), Percent(s.TotalProfitRate)))
	if s.HasTodayEstimate {
		sb.WriteString(fmt.Sprintf("🕒 今日预估: %s\n\n", SignedMoney(s.TotalTodayEstimateProfit)))
	} else {
		sb.WriteString(fmt.Sprintf("🕒 今日预估: %s\n\n", notAvailable))
	}

	if len(view.Holdings) == 0 {
		sb.WriteString("还没有持仓，使用 /add 或 /batch 添加基金")
	}

	rows := make([]tele.Row, 0, len(view.Holdings)+1)
	for i, h := range view.Holdings {
		sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, h.DisplayName(), h.Code))
		sb.WriteString(fmt.Sprintf("   ▸ 金额: %s  市值: %s\n", Money(h.HoldingAmount), Money(h.Value)))
		sb.WriteString(fmt.Sprintf("   ▸ 收益: %s (%s)\n", SignedMoney(h.Profit), Percent(h.ProfitRate)))
		sb.WriteString(fmt.Sprintf("   ▸ 今日预估: %s\n\n", Estimate(h.TodayEstimateProfit)))

		rows = append(rows, markup.Row(markup.Data(fmt.Sprintf("%d. %s", i+1, h.DisplayName()), tgCallback.EditHolding, strconv.FormatInt(h.ID, 10))))
	}

	rows = append(rows, markup.Row(markup.Data("🔄 刷新", tgCallback.RefreshFunds)))
	markup.Inline(rows...)

	return sb.String(), markup
}

func HoldingResponse(h model.EnrichedHolding) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s (%s)\n", h.DisplayName(), h.Code))
	if h.Reference.FullName != "" {
		sb.WriteString(h.Reference.FullName + "\n")
	}
	if h.Reference.Type != "" || h.Reference.RiskLevel != "" {
		sb.WriteString(fmt.Sprintf("%s %s\n", h.Reference.Type, h.Reference.RiskLevel))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("持有金额: %s\n", Money(h.HoldingAmount)))
	sb.WriteString(fmt.Sprintf("持有份额: %s\n", h.ShareCount.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("成本价: %s\n", h.BuyPrice.StringFixed(4)))
	sb.WriteString(fmt.Sprintf("估算净值: %s  昨日净值: %s\n", h.Reference.CurrentValuation.StringFixed(4), h.Reference.PriorValuation.StringFixed(4)))
	sb.WriteString(fmt.Sprintf("市值: %s\n", Money(h.Value)))
	sb.WriteString(fmt.Sprintf("持有收益: %s (%s)\n", SignedMoney(h.Profit), Percent(h.ProfitRate)))
	sb.WriteString(fmt.Sprintf("今日预估: %s\n", Estimate(h.TodayEstimateProfit)))
	if h.Notes != "" {
		sb.WriteString(fmt.Sprintf("备注: %s\n", h.Notes))
	}

	id := strconv.FormatInt(h.ID, 10)
	markup.Inline(
		markup.Row(
			markup.Data("金额", tgCallback.EditAmount, id),
			markup.Data("收益", tgCallback.EditProfit, id),
			markup.Data("备注", tgCallback.EditNotes, id),
		),
		markup.Row(markup.Data("🗑 删除", tgCallback.DeleteHolding, id)),
		markup.Row(markup.Data("⬅️ 返回", tgCallback.ShowFunds)),
	)

	return sb.String(), markup
}

func ConfirmDeleteResponse(h model.EnrichedHolding) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data("确认删除", tgCallback.ConfirmDelete, strconv.FormatInt(h.ID, 10)),
		markup.Data("取消", tgCallback.EditHolding, strconv.FormatInt(h.ID, 10)),
	))
	return fmt.Sprintf("删除 %s (%s)？", h.DisplayName(), h.Code), markup
}

func ProgressText(title string, p model.Progress) string {
	const width = 10
	filled := p.Percent * width / 100
	return fmt.Sprintf("%s %d%%\n[%s%s] %d/%d", title, p.Percent, strings.Repeat("■", filled), strings.Repeat("□", width-filled), p.Processed, p.Total)
}

func BatchPreviewResponse(preview model.BatchPreview) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("预览基金列表 (%d 只)\n", len(preview.Candidates)))
	sb.WriteString(fmt.Sprintf(
		"待添加 %d · 已添加 %d · 未找到 %d · 错误 %d\n\n",
		preview.Counts[model.CandidateReady],
		preview.Counts[model.CandidateDuplicate],
		preview.Counts[model.CandidateNotFound],
		preview.Counts[model.CandidateLookupFailed],
	))

	for _, c := range preview.Candidates {
		sb.WriteString(fmt.Sprintf("%s %s %s", statusIcon(c.Status), c.Code, c.Name))
		if c.Reason != "" {
			sb.WriteString(" (" + c.Reason + ")")
		}
		sb.WriteString("\n")
	}

	if preview.Counts[model.CandidateReady] == 0 {
		sb.WriteString("\n没有新基金可以添加")
		markup.Inline(markup.Row(markup.Data("关闭", tgCallback.BatchCancel)))
		return sb.String(), markup
	}

	sb.WriteString("\n选择添加方式:")
	markup.Inline(
		markup.Row(markup.Data("跳过金额", tgCallback.BatchMode, model.BatchModeSkip.String())),
		markup.Row(markup.Data("统一金额", tgCallback.BatchMode, model.BatchModeDefault.String())),
		markup.Row(markup.Data("逐个填写", tgCallback.BatchMode, model.BatchModeIndividual.String())),
		markup.Row(markup.Data("取消", tgCallback.BatchCancel)),
	)

	return sb.String(), markup
}

func statusIcon(s model.CandidateStatus) string {
	switch s {
	case model.CandidateReady:
		return "🟢"
	case model.CandidateDuplicate:
		return "⚪️"
	case model.CandidateNotFound:
		return "🟡"
	case model.CandidateLookupFailed:
		return "🔴"
	}
	return "?"
}

func IndividualInputPrompt(ready []model.BatchCandidate) string {
	var sb strings.Builder
	sb.WriteString("每行输入: 代码 金额 [收益]，留空或非数字按 0 处理\n\n")
	for _, c := range ready {
		sb.WriteString(fmt.Sprintf("%s 0 0  # %s\n", c.Code, c.Name))
	}
	return sb.String()
}

func BatchResultText(res model.BatchResult) string {
	var parts []string
	if res.Added > 0 {
		msg := fmt.Sprintf("成功添加 %d 只基金！", res.Added)
		if res.Mode == model.BatchModeSkip {
			msg += "请在 /funds 中逐个编辑补全持仓信息。"
		}
		parts = append(parts, msg)
	}
	if res.Failed > 0 {
		parts = append(parts, fmt.Sprintf("有 %d 只基金添加失败。", res.Failed))
	}
	if len(parts) == 0 {
		return "没有添加任何基金"
	}
	return strings.Join(parts, " ")
}

// ParseAddArgs reads "code amount [profit] [notes...]".
func ParseAddArgs(args []string) (model.AddIntent, error) {
	if len(args) < 2 {
		return model.AddIntent{}, ErrBadFormat
	}

	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return model.AddIntent{}, ErrBadFormat
	}

	intent := model.AddIntent{Code: args[0], HoldingAmount: amount}

	if len(args) > 2 {
		if intent.CurrentProfit, err = decimal.NewFromString(args[2]); err != nil {
			return model.AddIntent{}, ErrBadFormat
		}
	}
	if len(args) > 3 {
		intent.Notes = strings.Join(args[3:], " ")
	}

	return intent, nil
}

// ParseAmounts reads "amount [profit]".
func ParseAmounts(text string) (amount, profit decimal.Decimal, err error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields) > 2 {
		return decimal.Zero, decimal.Zero, ErrBadFormat
	}

	if amount, err = decimal.NewFromString(fields[0]); err != nil {
		return decimal.Zero, decimal.Zero, ErrBadFormat
	}
	if len(fields) == 2 {
		if profit, err = decimal.NewFromString(fields[1]); err != nil {
			return decimal.Zero, decimal.Zero, ErrBadFormat
		}
	}

	return amount, profit, nil
}

func ParseDecimal(text string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, ErrBadFormat
	}
	return v, nil
}

// IndividualLine is one "code amount [profit]" line, values stay raw.
type IndividualLine struct {
	Code   string
	Amount string
	Profit string
}

func ParseIndividualLines(text string) []IndividualLine {
	lines := make([]IndividualLine, 0)
	for _, raw := range strings.Split(text, "\n") {
		if i := strings.Index(raw, "#"); i >= 0 {
			raw = raw[:i]
		}
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		line := IndividualLine{Code: fields[0]}
		if len(fields) > 1 {
			line.Amount = fields[1]
		}
		if len(fields) > 2 {
			line.Profit = fields[2]
		}
		lines = append(lines, line)
	}
	return lines
}
