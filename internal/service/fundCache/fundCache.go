package fundCache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/utils"
	"golang.org/x/sync/singleflight"
)

type FundApi interface {
	Detail(ctx context.Context, code string) (model.FundDetail, error)
	Estimate(ctx context.Context, code string) (model.FundEstimate, error)
}

// Cache memoizes fund references for the lifetime of one session.
// Entries are never invalidated; concurrent misses of one code share a single fetch.
type Cache struct {
	api     FundApi
	mu      sync.RWMutex
	entries map[string]model.FundReference
	group   singleflight.Group
}

func New(api FundApi) *Cache {
	return &Cache{
		api:     api,
		entries: make(map[string]model.FundReference),
	}
}

// Get never fails. On a read failure it returns a reference with only Code set
// and does not remember it, so the next call fetches again.
func (c *Cache) Get(ctx context.Context, code string) model.FundReference {
	if ref, ok := c.lookup(code); ok {
		return ref
	}

	// the fetch is shared, one caller's cancellation must not fail the others
	sharedCtx := context.WithoutCancel(ctx)

	v, _, _ := c.group.Do(code, func() (any, error) {
		if ref, ok := c.lookup(code); ok {
			return ref, nil
		}

		ref, err := c.fetch(sharedCtx, code)
		if err != nil {
			return model.FundReference{Code: code}, nil
		}

		c.mu.Lock()
		c.entries[code] = ref
		c.mu.Unlock()

		return ref, nil
	})

	return v.(model.FundReference)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(code string) (model.FundReference, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.entries[code]
	return ref, ok
}

func (c *Cache) fetch(ctx context.Context, code string) (model.FundReference, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundCache.fetch"

	slog.Debug("fetch start", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", code))

	detail, err := c.api.Detail(ctx, code)
	if err != nil {
		slog.Warn("can't get fund detail, using empty reference", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", code), slog.String("err", err.Error()))
		return model.FundReference{}, err
	}

	estimate, err := c.api.Estimate(ctx, code)
	if err != nil {
		slog.Warn("can't get fund estimate, using empty reference", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", code), slog.String("err", err.Error()))
		return model.FundReference{}, err
	}

	ref := model.FundReference{
		Code:             code,
		Name:             detail.Name,
		FullName:         detail.FullName,
		Type:             detail.Type,
		RiskLevel:        detail.Rating,
		CurrentValuation: estimate.EstimateValue,
		PriorValuation:   estimate.YesterdayNav,
	}

	if ref.Name == "" {
		ref.Name = code
	}

	if ref.RiskLevel == "" {
		ref.RiskLevel = detail.RiskLevel
	}

	slog.Debug("fetch finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", code))

	return ref, nil
}
