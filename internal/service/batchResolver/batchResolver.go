package batchResolver

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/service"
	"github.com/KotFed0t/fund_tracker_bot/utils"
	"github.com/shopspring/decimal"
)

type State int

const (
	Idle State = iota
	Parsing
	Previewed
	Adding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Parsing:
		return "parsing"
	case Previewed:
		return "previewed"
	case Adding:
		return "adding"
	}
	return "unknown"
}

const (
	reasonDuplicate = "基金已在持仓中"
	reasonNotFound  = "未找到该基金"
	reasonFailed    = "搜索失败"
	unknownFundName = "未知基金"
)

var (
	separators = regexp.MustCompile(`[\n,，;\t ]+`)
	fundCode   = regexp.MustCompile(`^\d{6}$`)
)

type Store interface {
	HasCode(code string) bool
	Add(ctx context.Context, intent model.AddIntent) error
}

type Lookup interface {
	Search(ctx context.Context, keyword string, limit int) ([]model.FundSummary, error)
}

// Resolver drives one bulk import at a time. Classification and commit are
// strictly sequential so progress can be reported after every code.
type Resolver struct {
	store  Store
	lookup Lookup

	mu         sync.Mutex
	state      State
	candidates []model.BatchCandidate
}

func New(store Store, lookup Lookup) *Resolver {
	return &Resolver{store: store, lookup: lookup}
}

// ParseCodes extracts unique 6-digit fund codes in order of first appearance.
func ParseCodes(text string) []string {
	codes := make([]string, 0)
	for _, token := range separators.Split(text, -1) {
		token = strings.TrimSpace(token)
		if !fundCode.MatchString(token) || slices.Contains(codes, token) {
			continue
		}
		codes = append(codes, token)
	}
	return codes
}

func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Resolve classifies every code found in text and leaves the resolver Previewed.
func (r *Resolver) Resolve(ctx context.Context, text string, progress model.ProgressFunc) (model.BatchPreview, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "batchResolver.Resolve"

	slog.Debug("Resolve start", slog.String("rqID", rqID), slog.String("op", op))
	defer slog.Debug("Resolve finished", slog.String("rqID", rqID), slog.String("op", op))

	if strings.TrimSpace(text) == "" {
		return model.BatchPreview{}, service.ErrEmptyInput
	}

	codes := ParseCodes(text)
	if len(codes) == 0 {
		return model.BatchPreview{}, service.ErrEmptyInput
	}

	if err := r.enter(Parsing); err != nil {
		return model.BatchPreview{}, err
	}

	candidates := make([]model.BatchCandidate, 0, len(codes))
	for i, code := range codes {
		candidates = append(candidates, r.classify(ctx, code))
		report(progress, i+1, len(codes))
	}

	r.mu.Lock()
	r.candidates = candidates
	r.state = Previewed
	r.mu.Unlock()

	preview := newPreview(candidates)
	slog.Info(
		"batch resolved",
		slog.String("rqID", rqID),
		slog.Int("total", len(candidates)),
		slog.Int("ready", preview.Counts[model.CandidateReady]),
	)

	return preview, nil
}

func (r *Resolver) classify(ctx context.Context, code string) model.BatchCandidate {
	if r.store.HasCode(code) {
		return model.BatchCandidate{Code: code, Name: unknownFundName, Status: model.CandidateDuplicate, Reason: reasonDuplicate}
	}

	results, err := r.lookup.Search(ctx, code, 1)
	if err != nil {
		slog.Warn(
			"fund lookup failed",
			slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.String("code", code),
			slog.String("err", err.Error()),
		)
		return model.BatchCandidate{Code: code, Name: unknownFundName, Status: model.CandidateLookupFailed, Reason: reasonFailed}
	}

	if len(results) == 0 {
		return model.BatchCandidate{Code: code, Name: unknownFundName, Status: model.CandidateNotFound, Reason: reasonNotFound}
	}

	match := results[0]
	return model.BatchCandidate{
		Code:     match.Code,
		Name:     match.Name,
		FullName: match.FullName,
		Type:     match.Type,
		Status:   model.CandidateReady,
	}
}

// Preview returns the current candidates while the resolver is Previewed.
func (r *Resolver) Preview() (model.BatchPreview, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Previewed {
		return model.BatchPreview{}, false
	}
	return newPreview(r.candidates), true
}

// SetIndividualInput records raw operator input for a ready candidate.
func (r *Resolver) SetIndividualInput(code, amount, profit string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Previewed {
		return service.ErrBatchNotPreviewed
	}

	i := slices.IndexFunc(r.candidates, func(c model.BatchCandidate) bool {
		return c.Code == code && c.Status == model.CandidateReady
	})
	if i < 0 {
		return service.ErrNotFound
	}

	r.candidates[i].Amount = amount
	r.candidates[i].Profit = profit

	return nil
}

// Commit adds every ready candidate through the store. A failed item does not
// stop the rest, the resolver returns to Idle either way.
func (r *Resolver) Commit(ctx context.Context, mode model.BatchMode, defaults model.BatchDefaults, progress model.ProgressFunc) (model.BatchResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "batchResolver.Commit"

	slog.Debug("Commit start", slog.String("rqID", rqID), slog.String("op", op), slog.String("mode", mode.String()))
	defer slog.Debug("Commit finished", slog.String("rqID", rqID), slog.String("op", op))

	r.mu.Lock()
	if r.state != Previewed {
		r.mu.Unlock()
		return model.BatchResult{}, service.ErrBatchNotPreviewed
	}
	ready := newPreview(r.candidates).Ready()
	if len(ready) == 0 {
		r.mu.Unlock()
		return model.BatchResult{}, service.ErrNothingToAdd
	}
	r.state = Adding
	r.mu.Unlock()

	defer r.Reset()

	res := model.BatchResult{Mode: mode}
	for i, c := range ready {
		intent := model.AddIntent{Code: c.Code, Name: c.Name}

		switch mode {
		case model.BatchModeSkip:
		case model.BatchModeDefault:
			intent.HoldingAmount = defaults.HoldingAmount
			intent.CurrentProfit = defaults.CurrentProfit
		case model.BatchModeIndividual:
			intent.HoldingAmount = ParseAmount(c.Amount)
			intent.CurrentProfit = ParseAmount(c.Profit)
		}

		if err := r.store.Add(ctx, intent); err != nil {
			slog.Warn(
				"batch item not added",
				slog.String("rqID", rqID),
				slog.String("code", c.Code),
				slog.String("err", err.Error()),
			)
			res.Failed++
		} else {
			res.Added++
		}

		report(progress, i+1, len(ready))
	}

	slog.Info("batch committed", slog.String("rqID", rqID), slog.Int("added", res.Added), slog.Int("failed", res.Failed))

	return res, nil
}

// Reset drops the current batch.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Idle
	r.candidates = nil
}

// ParseAmount reads operator input, blank or non-numeric input is 0.
func ParseAmount(s string) decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return v
}

func (r *Resolver) enter(state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Parsing || r.state == Adding {
		return service.ErrBatchBusy
	}
	r.state = state
	r.candidates = nil
	return nil
}

func newPreview(candidates []model.BatchCandidate) model.BatchPreview {
	p := model.BatchPreview{
		Candidates: slices.Clone(candidates),
		Counts:     make(map[model.CandidateStatus]int, 4),
	}
	for _, c := range candidates {
		switch c.Status {
		case model.CandidateReady, model.CandidateDuplicate, model.CandidateNotFound, model.CandidateLookupFailed:
			p.Counts[c.Status]++
		}
	}
	return p
}

func report(progress model.ProgressFunc, processed, total int) {
	if progress == nil {
		return
	}
	progress(model.Progress{
		Processed: processed,
		Total:     total,
		Percent:   (processed*100 + total/2) / total,
	})
}
