package telegram

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KotFed0t/fund_tracker_bot/data/session"
	"github.com/KotFed0t/fund_tracker_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/service"
	"github.com/KotFed0t/fund_tracker_bot/utils"
	tele "gopkg.in/telebot.v4"
)

const progressStep = 10

type FundTrackerService interface {
	RegUser(ctx context.Context, chatID int64) error
	LoginSupported() bool
	Login(ctx context.Context, chatID int64, username, password string) (token string, err error)
	Forget(chatID int64)

	Portfolio(ctx context.Context, chatID int64, token string) (model.PortfolioView, error)
	Refresh(ctx context.Context, chatID int64, token string) (model.PortfolioView, error)
	Holding(ctx context.Context, chatID int64, token string, id int64) (model.EnrichedHolding, error)
	AddHolding(ctx context.Context, chatID int64, token string, intent model.AddIntent) error
	UpdateHolding(ctx context.Context, chatID int64, token string, id int64, changes model.HoldingChanges) error
	RemoveHolding(ctx context.Context, chatID int64, token string, id int64) error

	ResolveBatch(ctx context.Context, chatID int64, token string, text string, progress model.ProgressFunc) (model.BatchPreview, error)
	BatchPreview(ctx context.Context, chatID int64, token string) (model.BatchPreview, error)
	SetBatchInput(ctx context.Context, chatID int64, token string, code, amount, profit string) error
	CommitBatch(ctx context.Context, chatID int64, token string, mode model.BatchMode, defaults model.BatchDefaults, progress model.ProgressFunc) (model.BatchResult, error)
	CancelBatch(chatID int64)

	Report(ctx context.Context, chatID int64, token string) (model.Report, error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type Controller struct {
	fundTrackerService FundTrackerService
	session            Session
}

func NewController(fundTrackerService FundTrackerService, session Session) *Controller {
	return &Controller{
		fundTrackerService: fundTrackerService,
		session:            session,
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	if err := ctrl.fundTrackerService.RegUser(ctx, c.Chat().ID); err != nil {
		return c.Send(internalErrMsg)
	}
	return c.Send(helpMsg)
}

func (ctrl *Controller) Help(c tele.Context) error {
	return c.Send(helpMsg)
}

func (ctrl *Controller) Login(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	if !ctrl.fundTrackerService.LoginSupported() {
		return c.Send("当前不需要登录，直接使用 /funds")
	}

	args := c.Args()
	// the message carries a password
	_ = c.Delete()
	if len(args) != 2 {
		return c.Send("格式: /login 用户名 密码")
	}

	token, err := ctrl.fundTrackerService.Login(ctx, c.Chat().ID, args[0], args[1])
	if err != nil {
		return ctrl.failure(ctx, c, err)
	}

	// a new login also drops any dialog in progress
	if err = ctrl.saveSession(ctx, c, model.Session{Token: token}); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("登录成功 ✅ 使用 /funds 查看持仓")
}

func (ctrl *Controller) Logout(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	ctrl.fundTrackerService.Forget(c.Chat().ID)
	if err := ctrl.saveSession(ctx, c, model.Session{}); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("已退出登录")
}

func (ctrl *Controller) Funds(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	view, err := ctrl.fundTrackerService.Portfolio(ctx, c.Chat().ID, chatSession.Token)
	if err != nil {
		return ctrl.failure(ctx, c, err)
	}

	return c.Send(telebotConverter.PortfolioResponse(view))
}

// ShowFunds renders the portfolio in place of the callback message.
func (ctrl *Controller) ShowFunds(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	view, err := ctrl.fundTrackerService.Portfolio(ctx, c.Chat().ID, chatSession.Token)
	if err != nil {
		return ctrl.failure(ctx, c, err)
	}

	return c.Edit(telebotConverter.PortfolioResponse(view))
}

func (ctrl *Controller) Refresh(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	view, err := ctrl.fundTrackerService.Refresh(ctx, c.Chat().ID, chatSession.Token)
	if err != nil {
		return ctrl.failure(ctx, c, err)
	}

	text, markup := telebotConverter.PortfolioResponse(view)
	if c.Callback() != nil {
		return c.Edit(text, markup)
	}
	return c.Send(text, markup)
}

func (ctrl *Controller) Add(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	intent, err := telebotConverter.ParseAddArgs(c.Args())
	if err != nil {
		return c.Send("格式: /add 代码 金额 [收益] [备注]\n例如: /add 161725 1000 -20.5")
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	if err = ctrl.fundTrackerService.AddHolding(ctx, c.Chat().ID, chatSession.Token, intent); err != nil {
		return ctrl.failure(ctx, c, err)
	}

	view, err := ctrl.fundTrackerService.Portfolio(ctx, c.Chat().ID, chatSession.Token)
	if err != nil {
		return c.Send("已添加 ✅")
	}

	text, markup := telebotConverter.PortfolioResponse(view)
	return c.Send("已添加 ✅\n\n"+text, markup)
}

func (ctrl *Controller) EditHolding(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	h, err := ctrl.holdingFromCallback(ctx, c)
	if err != nil {
		return ctrl.failure(ctx, c, err)
	}

	return c.Edit(telebotConverter.HoldingResponse(h))
}

func (ctrl *Controller) InitEditAmount(c tele.Context) error {
	return ctrl.initEdit(c, model.ExpectingEditAmount, "输入新的持有金额:")
}

func (ctrl *Controller) InitEditProfit(c tele.Context) error {
	return ctrl.initEdit(c, model.ExpectingEditProfit, "输入新的持有收益 (亏损用负数):")
}

func (ctrl *Controller) InitEditNotes(c tele.Context) error {
	return ctrl.initEdit(c, model.ExpectingEditNotes, "输入备注, 发送 - 清空:")
}

func (ctrl *Controller) initEdit(c tele.Context, action model.Action, prompt string) error {
	ctx := utils.CreateCtxWithRqID(c)

	id, err := strconv.ParseInt(c.Data(), 10, 64)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.Action = action
	chatSession.HoldingID = id
	if err = ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(prompt)
}

// ProcessEdit applies the text answer to the field chosen on the holding card.
func (ctrl *Controller) ProcessEdit(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	var changes model.HoldingChanges
	text := strings.TrimSpace(c.Text())

	switch chatSession.Action {
	case model.ExpectingEditAmount:
		amount, err := telebotConverter.ParseDecimal(text)
		if err != nil {
			return c.Send("请输入数字")
		}
		changes.HoldingAmount = &amount
	case model.ExpectingEditProfit:
		profit, err := telebotConverter.ParseDecimal(text)
		if err != nil {
			return c.Send("请输入数字")
		}
		changes.CurrentProfit = &profit
	case model.ExpectingEditNotes:
		if text == "-" {
			text = ""
		}
		changes.Notes = &text
	}

	id := chatSession.HoldingID
	if err = ctrl.fundTrackerService.UpdateHolding(ctx, c.Chat().ID, chatSession.Token, id, changes); err != nil {
		return ctrl.failure(ctx, c, err)
	}

	chatSession.Action = model.DefaultAction
	chatSession.HoldingID = 0
	_ = ctrl.saveSession(ctx, c, chatSession)

	h, err := ctrl.fundTrackerService.Holding(ctx, c.Chat().ID, chatSession.Token, id)
	if err != nil {
		return c.Send("已保存 ✅")
	}

	return c.Send(telebotConverter.HoldingResponse(h))
}

func (ctrl *Controller) InitDeleteHolding(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	h, err := ctrl.holdingFromCallback(ctx, c)
	if err != nil {
		return ctrl.failure(ctx, c, err)
	}

	return c.Edit(telebotConverter.ConfirmDeleteResponse(h))
}

func (ctrl *Controller) ConfirmDeleteHolding(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	id, err := strconv.ParseInt(c.Data(), 10, 64)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	if err = ctrl.fundTrackerService.RemoveHolding(ctx, c.Chat().ID, chatSession.Token, id); err != nil {
		return ctrl.failure(ctx, c, err)
	}

	view, err := ctrl.fundTrackerService.Portfolio(ctx, c.Chat().ID, chatSession.Token)
	if err != nil {
		return c.Edit("已删除")
	}

	return c.Edit(telebotConverter.PortfolioResponse(view))
}

func (ctrl *Controller) Batch(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	ctrl.fundTrackerService.CancelBatch(c.Chat().ID)

	chatSession.Action = model.ExpectingBatchInput
	if err = ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("粘贴基金代码列表，支持换行、逗号、分号、空格分隔:")
}

func (ctrl *Controller) ProcessBatchInput(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	msg, progress := ctrl.progressMessage(c, "正在解析基金列表...")

	preview, err := ctrl.fundTrackerService.ResolveBatch(ctx, c.Chat().ID, chatSession.Token, c.Text(), progress)
	if err != nil {
		return ctrl.failure(ctx, c, err)
	}

	chatSession.Action = model.ExpectingBatchMode
	if err = ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.BatchPreviewResponse(preview)
	return ctrl.replace(c, msg, text, markup)
}

func (ctrl *Controller) ChooseBatchMode(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	mode, ok := model.ParseBatchMode(c.Data())
	if !ok {
		return c.Send(internalErrMsg)
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	switch mode {
	case model.BatchModeSkip:
		return ctrl.commitBatch(ctx, c, chatSession, mode, model.BatchDefaults{})
	case model.BatchModeDefault:
		chatSession.Action = model.ExpectingBatchDefaults
		if err = ctrl.saveSession(ctx, c, chatSession); err != nil {
			return c.Send(internalErrMsg)
		}
		return c.Send("输入统一的 金额 [收益]，例如: 1000 0")
	case model.BatchModeIndividual:
		preview, err := ctrl.fundTrackerService.BatchPreview(ctx, c.Chat().ID, chatSession.Token)
		if err != nil {
			return ctrl.failure(ctx, c, err)
		}
		chatSession.Action = model.ExpectingBatchIndividual
		if err = ctrl.saveSession(ctx, c, chatSession); err != nil {
			return c.Send(internalErrMsg)
		}
		return c.Send(telebotConverter.IndividualInputPrompt(preview.Ready()))
	}

	return c.Send(internalErrMsg)
}

func (ctrl *Controller) ProcessBatchDefaults(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	amount, profit, err := telebotConverter.ParseAmounts(c.Text())
	if err != nil {
		return c.Send("格式: 金额 [收益]")
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	return ctrl.commitBatch(ctx, c, chatSession, model.BatchModeDefault, model.BatchDefaults{HoldingAmount: amount, CurrentProfit: profit})
}

func (ctrl *Controller) ProcessBatchIndividual(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	for _, line := range telebotConverter.ParseIndividualLines(c.Text()) {
		err = ctrl.fundTrackerService.SetBatchInput(ctx, c.Chat().ID, chatSession.Token, line.Code, line.Amount, line.Profit)
		if errors.Is(err, service.ErrNotFound) {
			slog.Info("individual input for unknown code ignored", slog.String("rqID", rqID), slog.String("code", line.Code))
			continue
		}
		if err != nil {
			return ctrl.failure(ctx, c, err)
		}
	}

	return ctrl.commitBatch(ctx, c, chatSession, model.BatchModeIndividual, model.BatchDefaults{})
}

func (ctrl *Controller) CancelBatch(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	ctrl.fundTrackerService.CancelBatch(c.Chat().ID)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err == nil {
		chatSession.Action = model.DefaultAction
		_ = ctrl.saveSession(ctx, c, chatSession)
	}

	return c.Edit("已取消批量添加")
}

func (ctrl *Controller) commitBatch(ctx context.Context, c tele.Context, chatSession model.Session, mode model.BatchMode, defaults model.BatchDefaults) error {
	msg, progress := ctrl.progressMessage(c, "正在添加基金...")

	res, err := ctrl.fundTrackerService.CommitBatch(ctx, c.Chat().ID, chatSession.Token, mode, defaults, progress)

	chatSession.Action = model.DefaultAction
	_ = ctrl.saveSession(ctx, c, chatSession)

	if err != nil {
		return ctrl.failure(ctx, c, err)
	}

	return ctrl.replace(c, msg, telebotConverter.BatchResultText(res))
}

func (ctrl *Controller) Report(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	report, err := ctrl.fundTrackerService.Report(ctx, c.Chat().ID, chatSession.Token)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Send("还没有持仓，无法生成报告")
		}
		return ctrl.failure(ctx, c, err)
	}

	if report.Link != "" {
		return c.Send("📄 持仓报告: " + report.Link)
	}

	return c.Send(&tele.Document{
		File:     tele.FromReader(bytes.NewReader(report.Content)),
		FileName: report.FileName,
		Caption:  "📄 持仓报告",
	})
}

func (ctrl *Controller) holdingFromCallback(ctx context.Context, c tele.Context) (model.EnrichedHolding, error) {
	id, err := strconv.ParseInt(c.Data(), 10, 64)
	if err != nil {
		return model.EnrichedHolding{}, err
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return model.EnrichedHolding{}, err
	}

	return ctrl.fundTrackerService.Holding(ctx, c.Chat().ID, chatSession.Token, id)
}

// progressMessage sends a placeholder and returns a callback editing it.
// Edits are throttled to every progressStep percent.
func (ctrl *Controller) progressMessage(c tele.Context, title string) (*tele.Message, model.ProgressFunc) {
	msg, err := c.Bot().Send(c.Recipient(), title)
	if err != nil {
		slog.Warn("can't send progress message", slog.String("err", err.Error()))
		return nil, nil
	}

	last := 0
	return msg, func(p model.Progress) {
		if p.Percent-last < progressStep && p.Processed != p.Total {
			return
		}
		last = p.Percent
		_, _ = c.Bot().Edit(msg, telebotConverter.ProgressText(title, p))
	}
}

func (ctrl *Controller) replace(c tele.Context, msg *tele.Message, what any, opts ...any) error {
	if msg == nil {
		return c.Send(what, opts...)
	}
	_, err := c.Bot().Edit(msg, what, opts...)
	return err
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return model.Session{}, nil
		}
		slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Session{}, err
	}
	return chatSession, nil
}

func (ctrl *Controller) saveSession(ctx context.Context, c tele.Context, chatSession model.Session) error {
	err := ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), chatSession)
	if err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return err
	}
	c.Set("session", chatSession)
	return nil
}

func (ctrl *Controller) failure(ctx context.Context, c tele.Context, err error) error {
	if errors.Is(err, service.ErrNoSession) {
		if ctrl.fundTrackerService.LoginSupported() {
			return c.Send("请先登录: /login 用户名 密码")
		}
		return c.Send("请先发送 /start")
	}

	if msg, ok := userMessage(err); ok {
		return c.Send(msg)
	}

	slog.Error("request failed", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	return c.Send(internalErrMsg)
}
