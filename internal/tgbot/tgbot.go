package tgbot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/KotFed0t/fund_tracker_bot/config"
	"github.com/KotFed0t/fund_tracker_bot/data/session"
	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/model/tg/tgCallback"
	"github.com/KotFed0t/fund_tracker_bot/internal/transport/telegram"
	customMW "github.com/KotFed0t/fund_tracker_bot/internal/transport/telegram/middleware"
	"github.com/KotFed0t/fund_tracker_bot/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
}

func New(cfg *config.Config, ctrl *telegram.Controller, session Session) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
		OnError: func(err error, c tele.Context) {
			slog.Error("unhandled telebot error", slog.String("err", err.Error()))
		},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: session}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger(), middleware.AutoRespond())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle(tele.OnText, b.routeText)

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/help", b.ctrl.Help)
	b.bot.Handle("/login", b.ctrl.Login)
	b.bot.Handle("/logout", b.ctrl.Logout)
	b.bot.Handle("/funds", b.ctrl.Funds)
	b.bot.Handle("/add", b.ctrl.Add)
	b.bot.Handle("/refresh", b.ctrl.Refresh)
	b.bot.Handle("/batch", b.ctrl.Batch)
	b.bot.Handle("/report", b.ctrl.Report)

	b.bot.Handle(&tele.Btn{Unique: tgCallback.ShowFunds}, b.ctrl.ShowFunds)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.RefreshFunds}, b.ctrl.Refresh)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.EditHolding}, b.ctrl.EditHolding)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.EditAmount}, b.ctrl.InitEditAmount)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.EditProfit}, b.ctrl.InitEditProfit)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.EditNotes}, b.ctrl.InitEditNotes)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.DeleteHolding}, b.ctrl.InitDeleteHolding)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.ConfirmDelete}, b.ctrl.ConfirmDeleteHolding)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.BatchMode}, b.ctrl.ChooseBatchMode)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.BatchCancel}, b.ctrl.CancelBatch)
}

// routeText picks the controller method by the action stored in the chat session.
func (b *TGBot) routeText(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := b.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send("出了点问题，请稍后再试...")
	}

	c.Set("session", chatSession)

	switch chatSession.Action {
	case model.ExpectingBatchInput:
		return b.ctrl.ProcessBatchInput(c)
	case model.ExpectingBatchDefaults:
		return b.ctrl.ProcessBatchDefaults(c)
	case model.ExpectingBatchIndividual:
		return b.ctrl.ProcessBatchIndividual(c)
	case model.ExpectingEditAmount, model.ExpectingEditProfit, model.ExpectingEditNotes:
		return b.ctrl.ProcessEdit(c)
	case model.ExpectingBatchMode:
		return c.Send("请选择添加方式，或使用 /batch 重新开始")
	default:
		slog.Debug("text without pending action", slog.String("rqID", rqID), slog.Any("action", chatSession.Action))
		return b.ctrl.Help(c)
	}
}
