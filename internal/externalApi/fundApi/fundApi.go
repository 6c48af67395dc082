package fundApi

import (
	"context"
	"encoding/json"
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

type FundApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *FundApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.FundApi.Url)
	return &FundApi{client: client}
}

func (a *FundApi) Search(ctx context.Context, keyword string, limit int) ([]model.FundSummary, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundApi.Search"

	slog.Debug("Search start", slog.String("rqID", rqID), slog.String("op", op), slog.String("keyword", keyword))

	var raw []apiModel.FundSummary
	err := a.get(ctx, op, "/funds/search", map[string]string{"keyword": keyword, "limit": strconv.Itoa(limit)}, nil, &raw)
	if err != nil {
		return nil, err
	}

	res := make([]model.FundSummary, 0, len(raw))
	for _, f := range raw {
		res = append(res, apiConverter.ConvertFundSummary(f))
	}

	slog.Debug("Search finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("found", len(res)))

	return res, nil
}

func (a *FundApi) Detail(ctx context.Context, code string) (model.FundDetail, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundApi.Detail"

	slog.Debug("Detail start", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", code))

	var raw apiModel.FundDetail
	err := a.get(ctx, op, "/funds/{code}/detail", nil, map[string]string{"code": code}, &raw)
	if err != nil {
		return model.FundDetail{}, err
	}

	slog.Debug("Detail finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", code))

	return apiConverter.ConvertFundDetail(raw), nil
}

func (a *FundApi) Estimate(ctx context.Context, code string) (model.FundEstimate, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundApi.Estimate"

	slog.Debug("Estimate start", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", code))

	var raw apiModel.FundEstimate
	err := a.get(ctx, op, "/funds/{code}/estimate", nil, map[string]string{"code": code}, &raw)
	if err != nil {
		return model.FundEstimate{}, err
	}

	slog.Debug("Estimate finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", code))

	return apiConverter.ConvertFundEstimate(raw), nil
}

func (a *FundApi) get(ctx context.Context, op, url string, query, path map[string]string, out any) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(query).
		SetPathParams(path).
		Get(url)
	if err != nil {
		slog.Error("error while dialing FundApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if resp.IsError() {
		var detail apiModel.ErrorDetail
		_ = json.Unmarshal(resp.Body(), &detail)
		err = externalApi.ErrFromStatus(resp.StatusCode(), detail.Detail)
		slog.Error("FundApi answered with error", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	err = json.Unmarshal(resp.Body(), out)
	if err != nil {
		slog.Error("can't unmarshall FundApi response", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}
