package holdingsApi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/KotFed0t/fund_tracker_bot/config"
	"github.com/KotFed0t/fund_tracker_bot/internal/converter/apiConverter"
	"github.com/KotFed0t/fund_tracker_bot/internal/externalApi"
	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/model/apiModel"
	"github.com/KotFed0t/fund_tracker_bot/utils"
	"github.com/go-resty/resty/v2"
)

const holdingsUrl = "/funds-management/"

type HoldingsApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *HoldingsApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.HoldingsApi.Url)
	return &HoldingsApi{client: client}
}

// Login exchanges credentials for a bearer token.
func (a *HoldingsApi) Login(ctx context.Context, username, password string) (token string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "HoldingsApi.Login"

	slog.Debug("Login start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	defer func() {
		slog.Debug("Login finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	}()

	resp, err := a.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"username": username, "password": password}).
		Post("/auth/login")
	if err != nil {
		slog.Error("error while dialing HoldingsApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	if err = checkResponse(resp); err != nil {
		slog.Warn("login rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	var t apiModel.Token
	if err = json.Unmarshal(resp.Body(), &t); err != nil {
		slog.Error("can't unmarshall token", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	if t.AccessToken == "" {
		return "", errors.New("empty access token")
	}

	return t.AccessToken, nil
}

// ForToken binds the client to one authenticated user.
func (a *HoldingsApi) ForToken(token string) *UserHoldings {
	return &UserHoldings{client: a.client, token: token}
}

// UserHoldings is the holdings authority scoped to a bearer token.
type UserHoldings struct {
	client *resty.Client
	token  string
}

func (u *UserHoldings) request(ctx context.Context) *resty.Request {
	return u.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetAuthToken(u.token)
}

func (u *UserHoldings) CurrentUser(ctx context.Context) (user model.User, ok bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "UserHoldings.CurrentUser"

	if u.token == "" {
		return model.User{}, false, nil
	}

	resp, err := u.request(ctx).Get("/auth/me")
	if err != nil {
		slog.Error("error while dialing HoldingsApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, false, err
	}

	if err = checkResponse(resp); err != nil {
		if errors.Is(err, externalApi.ErrUnauthorized) {
			slog.Info("token is not accepted anymore", slog.String("rqID", rqID), slog.String("op", op))
			return model.User{}, false, nil
		}
		return model.User{}, false, err
	}

	var raw apiModel.User
	if err = json.Unmarshal(resp.Body(), &raw); err != nil {
		return model.User{}, false, err
	}

	return model.User{ID: raw.ID, Username: raw.Username}, true, nil
}

func (u *UserHoldings) List(ctx context.Context) ([]model.Holding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "UserHoldings.List"

	slog.Debug("List start", slog.String("rqID", rqID), slog.String("op", op))

	resp, err := u.request(ctx).Get(holdingsUrl)
	if err != nil {
		slog.Error("error while dialing HoldingsApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	if err = checkResponse(resp); err != nil {
		slog.Error("HoldingsApi answered with error", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	var raw []apiModel.Holding
	if err = json.Unmarshal(resp.Body(), &raw); err != nil {
		slog.Error("can't unmarshall holdings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	res := make([]model.Holding, 0, len(raw))
	for _, h := range raw {
		res = append(res, apiConverter.ConvertHolding(h))
	}

	slog.Debug("List finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(res)))

	return res, nil
}

func (u *UserHoldings) Create(ctx context.Context, req model.HoldingRequest) (model.Holding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "UserHoldings.Create"

	slog.Debug("Create start", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", req.Code))

	resp, err := u.request(ctx).
		SetBody(apiConverter.ConvertHoldingRequest(req)).
		Post(holdingsUrl)

	return u.holdingFromResponse(ctx, op, resp, err)
}

func (u *UserHoldings) Update(ctx context.Context, id int64, req model.HoldingRequest) (model.Holding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "UserHoldings.Update"

	slog.Debug("Update start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("id", id))

	resp, err := u.request(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		SetBody(apiConverter.ConvertHoldingRequest(req)).
		Put(holdingsUrl + "{id}")

	return u.holdingFromResponse(ctx, op, resp, err)
}

func (u *UserHoldings) Delete(ctx context.Context, id int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "UserHoldings.Delete"

	slog.Debug("Delete start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("id", id))

	resp, err := u.request(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Delete(holdingsUrl + "{id}")
	if err != nil {
		slog.Error("error while dialing HoldingsApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err = checkResponse(resp); err != nil {
		slog.Error("HoldingsApi answered with error", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("Delete finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("id", id))

	return nil
}

func (u *UserHoldings) holdingFromResponse(ctx context.Context, op string, resp *resty.Response, err error) (model.Holding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	if err != nil {
		slog.Error("error while dialing HoldingsApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Holding{}, err
	}

	if err = checkResponse(resp); err != nil {
		slog.Error("HoldingsApi answered with error", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Holding{}, err
	}

	var raw apiModel.Holding
	if err = json.Unmarshal(resp.Body(), &raw); err != nil {
		slog.Error("can't unmarshall holding", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Holding{}, err
	}

	slog.Debug(op+" finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("id", raw.ID))

	return apiConverter.ConvertHolding(raw), nil
}

func checkResponse(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	var detail apiModel.ErrorDetail
	_ = json.Unmarshal(resp.Body(), &detail)
	return externalApi.ErrFromStatus(resp.StatusCode(), detail.Detail)
}
