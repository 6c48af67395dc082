package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/KotFed0t/fund_tracker_bot/data/repository"
	"github.com/KotFed0t/fund_tracker_bot/internal/converter/dbConverter"
	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/model/dbModel"
	"github.com/KotFed0t/fund_tracker_bot/utils"
)

const holdingColumns = `holding_id, user_id, code, name, share_count, holding_amount, current_profit, notes, dt_create, dt_update`

// ForChat binds the repository to the user registered for a telegram chat.
func (r *Postgres) ForChat(chatID int64) *UserHoldings {
	return &UserHoldings{repo: r, chatID: chatID}
}

// UserHoldings is the self-hosted holdings authority of one chat user.
type UserHoldings struct {
	repo   *Postgres
	chatID int64
}

func (u *UserHoldings) CurrentUser(ctx context.Context) (model.User, bool, error) {
	userID, err := u.repo.GetUserID(ctx, u.chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, false, nil
		}
		return model.User{}, false, err
	}
	return model.User{ID: userID}, true, nil
}

func (u *UserHoldings) List(ctx context.Context) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ListHoldings"
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE user_id = (SELECT user_id FROM users WHERE chat_id = $1)
		ORDER BY holding_id
		`

	slog.Debug("ListHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("chatID", u.chatID))
	defer func() {
		if err != nil {
			slog.Error("ListHoldings failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ListHoldings completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := u.repo.txOrDb(ctx).QueryxContext(ctx, query, u.chatID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	holdings = make([]model.Holding, 0)
	for rows.Next() {
		var h dbModel.Holding
		err = rows.StructScan(&h)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, dbConverter.ConvertHolding(h))
	}

	return holdings, rows.Err()
}

func (u *UserHoldings) Create(ctx context.Context, req model.HoldingRequest) (holding model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.CreateHolding"
	query := `
		INSERT INTO holdings(user_id, code, name, share_count, holding_amount, current_profit, notes)
		SELECT user_id, $2, $3, $4, $5, $6, NULLIF($7, '')
		FROM users WHERE chat_id = $1
		RETURNING ` + holdingColumns

	slog.Debug("CreateHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.String("code", req.Code))
	defer func() {
		if err != nil {
			slog.Error("CreateHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("CreateHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	var h dbModel.Holding
	err = u.repo.txOrDb(ctx).QueryRowxContext(
		ctx,
		query,
		u.chatID,
		req.Code,
		req.Name,
		req.ShareCount,
		req.HoldingAmount,
		req.CurrentProfit,
		req.Notes,
	).StructScan(&h)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Holding{}, repository.ErrAlreadyExists
		}
		if errors.Is(err, sql.ErrNoRows) { // no user registered for the chat
			return model.Holding{}, repository.ErrNotFound
		}
		return model.Holding{}, err
	}

	return dbConverter.ConvertHolding(h), nil
}

// Update never touches code and name, they are fixed at creation.
func (u *UserHoldings) Update(ctx context.Context, id int64, req model.HoldingRequest) (holding model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateHolding"
	query := `
		UPDATE holdings SET
			share_count = $3,
			holding_amount = $4,
			current_profit = $5,
			notes = NULLIF($6, ''),
			dt_update = now()
		WHERE holding_id = $2
		AND user_id = (SELECT user_id FROM users WHERE chat_id = $1)
		RETURNING ` + holdingColumns

	slog.Debug("UpdateHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("id", id))
	defer func() {
		if err != nil {
			slog.Error("UpdateHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	var h dbModel.Holding
	err = u.repo.txOrDb(ctx).QueryRowxContext(
		ctx,
		query,
		u.chatID,
		id,
		req.ShareCount,
		req.HoldingAmount,
		req.CurrentProfit,
		req.Notes,
	).StructScan(&h)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Holding{}, repository.ErrNotFound
		}
		return model.Holding{}, err
	}

	return dbConverter.ConvertHolding(h), nil
}

func (u *UserHoldings) Delete(ctx context.Context, id int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteHolding"
	query := `
		DELETE FROM holdings
		WHERE holding_id = $2
		AND user_id = (SELECT user_id FROM users WHERE chat_id = $1)
		`

	slog.Debug("DeleteHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("id", id))
	defer func() {
		if err != nil {
			slog.Error("DeleteHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := u.repo.txOrDb(ctx).ExecContext(ctx, query, u.chatID, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
