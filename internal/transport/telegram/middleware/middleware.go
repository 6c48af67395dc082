package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

// Logger tags every update with a request id and logs its duration.
func Logger() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			now := time.Now()

			rqID := uuid.NewString()
			c.Set("rqID", rqID)

			attrs := []any{slog.String("rqID", rqID), slog.String("kind", updateKind(c))}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chatID", chat.ID))
			}

			slog.Info("start request", attrs...)

			err := next(c)

			attrs = append(attrs, slog.String("request duration", fmt.Sprintf("%.2fs", time.Since(now).Seconds())))
			if err != nil {
				slog.Error("request failed", append(attrs, slog.String("err", err.Error()))...)
				return err
			}

			slog.Info("request finished", attrs...)

			return nil
		}
	}
}

func updateKind(c tele.Context) string {
	switch {
	case c.Callback() != nil:
		return "callback"
	case c.Message() != nil && c.Message().IsReply():
		return "reply"
	case c.Message() != nil:
		return "message"
	}
	return "other"
}
