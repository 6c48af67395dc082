package holdingsStore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/KotFed0t/fund_tracker_bot/data/repository"
	"github.com/KotFed0t/fund_tracker_bot/internal/externalApi"
	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/service"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/valuation"
	"github.com/KotFed0t/fund_tracker_bot/utils"
	"github.com/shopspring/decimal"
)

type State int

const (
	Uninitialized State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// SharePolicy decides what happens to a stored share count when the amount is edited.
type SharePolicy int

const (
	// SharesCaptured keeps the share count computed at creation
	SharesCaptured SharePolicy = iota
	// SharesDerived recomputes it from the new amount and the latest valuation
	SharesDerived
)

func ParseSharePolicy(s string) (SharePolicy, error) {
	switch s {
	case "", "captured":
		return SharesCaptured, nil
	case "derived":
		return SharesDerived, nil
	}
	return 0, fmt.Errorf("unknown share count policy %q", s)
}

type SessionAuthority interface {
	CurrentUser(ctx context.Context) (user model.User, ok bool, err error)
}

type Authority interface {
	SessionAuthority
	List(ctx context.Context) ([]model.Holding, error)
	Create(ctx context.Context, req model.HoldingRequest) (model.Holding, error)
	Update(ctx context.Context, id int64, req model.HoldingRequest) (model.Holding, error)
	Delete(ctx context.Context, id int64) error
}

type References interface {
	Get(ctx context.Context, code string) model.FundReference
}

// Store mirrors the authority's holdings of one session. It never patches the
// mirror locally: every write is followed by a full reload.
type Store struct {
	authority Authority
	refs      References
	policy    SharePolicy

	mu       sync.Mutex
	state    State
	session  bool
	holdings []model.Holding
	// the snapshot comes from a failed reload
	stale bool
	// epoch of the latest dispatched reload, older completions are dropped
	epoch uint64
	// epoch of the latest applied reload
	settled uint64
}

func New(authority Authority, refs References, policy SharePolicy) *Store {
	return &Store{
		authority: authority,
		refs:      refs,
		policy:    policy,
	}
}

// Start checks the session and loads the holdings.
// Without a session the store becomes Ready with no holdings and no fetch is made.
func (s *Store) Start(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "HoldingsStore.Start"

	slog.Debug("Start start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("Start finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("state", s.State().String()))
	}()

	epoch := s.dispatch()

	_, ok, err := s.authority.CurrentUser(ctx)
	if err != nil {
		slog.Error("got error from authority.CurrentUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		s.apply(ctx, epoch, nil, true)
		return err
	}

	s.mu.Lock()
	s.session = ok
	s.mu.Unlock()

	if !ok {
		s.apply(ctx, epoch, nil, false)
		return service.ErrNoSession
	}

	return s.load(ctx, epoch)
}

// Refresh re-checks the session and reloads without a mutation.
func (s *Store) Refresh(ctx context.Context) error {
	return s.Start(ctx)
}

func (s *Store) Add(ctx context.Context, intent model.AddIntent) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "HoldingsStore.Add"

	slog.Debug("Add start", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", intent.Code))
	defer func() {
		slog.Debug("Add finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", intent.Code))
	}()

	if err := s.writable(); err != nil {
		return err
	}

	if err := validate(intent.HoldingAmount, intent.CurrentProfit); err != nil {
		return err
	}

	// only advisory, the authority has the final word
	if s.HasCode(intent.Code) {
		slog.Warn("fund already in holdings", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", intent.Code))
		return service.ErrDuplicate
	}

	ref := s.refs.Get(ctx, intent.Code)

	req := model.HoldingRequest{
		Code:          intent.Code,
		Name:          intent.Name,
		ShareCount:    valuation.ShareCount(intent.HoldingAmount, ref.CurrentValuation),
		HoldingAmount: intent.HoldingAmount,
		CurrentProfit: intent.CurrentProfit,
		Notes:         intent.Notes,
	}

	if req.Name == "" {
		req.Name = ref.Name
	}
	if req.Name == "" {
		req.Name = intent.Code
	}

	s.begin()

	_, err := s.authority.Create(ctx, req)
	if err != nil {
		s.abandon()
		if isRejected(err) {
			slog.Warn("authority rejected new holding", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", intent.Code), slog.String("err", err.Error()))
			return fmt.Errorf("%w: %w", service.ErrDuplicate, err)
		}
		slog.Error("got error from authority.Create", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	s.reload(ctx, op)

	return nil
}

// Update merges partial changes over the mirrored holding. Code and name never change.
func (s *Store) Update(ctx context.Context, id int64, changes model.HoldingChanges) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "HoldingsStore.Update"

	slog.Debug("Update start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("id", id))
	defer func() {
		slog.Debug("Update finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("id", id))
	}()

	if err := s.writable(); err != nil {
		return err
	}

	existing, ok := s.Find(id)
	if !ok {
		return service.ErrNotFound
	}

	req := model.HoldingRequest{
		Code:          existing.Code,
		Name:          existing.Name,
		ShareCount:    existing.ShareCount,
		HoldingAmount: existing.HoldingAmount,
		CurrentProfit: existing.CurrentProfit,
		Notes:         existing.Notes,
	}

	if changes.HoldingAmount != nil {
		req.HoldingAmount = *changes.HoldingAmount
	}
	if changes.CurrentProfit != nil {
		req.CurrentProfit = *changes.CurrentProfit
	}
	if changes.Notes != nil {
		req.Notes = *changes.Notes
	}

	switch {
	case changes.ShareCount != nil:
		if changes.ShareCount.IsNegative() {
			return service.ErrInvalidAmount
		}
		req.ShareCount = *changes.ShareCount
	case changes.HoldingAmount != nil && s.policy == SharesDerived:
		ref := s.refs.Get(ctx, existing.Code)
		if ref.CurrentValuation.IsPositive() {
			req.ShareCount = valuation.ShareCount(req.HoldingAmount, ref.CurrentValuation)
		}
	}

	if err := validate(req.HoldingAmount, req.CurrentProfit); err != nil {
		return err
	}

	s.begin()

	_, err := s.authority.Update(ctx, id, req)
	if err != nil {
		s.abandon()
		slog.Error("got error from authority.Update", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		if isNotFound(err) {
			return fmt.Errorf("%w: %w", service.ErrNotFound, err)
		}
		return err
	}

	s.reload(ctx, op)

	return nil
}

func (s *Store) Remove(ctx context.Context, id int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "HoldingsStore.Remove"

	slog.Debug("Remove start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("id", id))
	defer func() {
		slog.Debug("Remove finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("id", id))
	}()

	if err := s.writable(); err != nil {
		return err
	}

	s.begin()

	err := s.authority.Delete(ctx, id)
	if err != nil {
		s.abandon()
		slog.Error("got error from authority.Delete", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		if isNotFound(err) {
			return fmt.Errorf("%w: %w", service.ErrNotFound, err)
		}
		return err
	}

	s.reload(ctx, op)

	return nil
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Holdings returns a copy of the current snapshot.
func (s *Store) Holdings() []model.Holding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.holdings)
}

func (s *Store) HasCode(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.ContainsFunc(s.holdings, func(h model.Holding) bool { return h.Code == code })
}

func (s *Store) Find(id int64) (model.Holding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.holdings, func(h model.Holding) bool { return h.ID == id })
	if i < 0 {
		return model.Holding{}, false
	}
	return s.holdings[i], true
}

// Stale reports whether the snapshot was left empty by a failed reload.
func (s *Store) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

func (s *Store) writable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.session:
		return nil
	case s.stale:
		// the session check itself failed
		return service.ErrUnavailable
	default:
		return service.ErrNoSession
	}
}

// load lists holdings and applies them under the given epoch.
// A failed list degrades to an empty collection.
func (s *Store) load(ctx context.Context, epoch uint64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "HoldingsStore.load"

	holdings, err := s.authority.List(ctx)
	if err != nil {
		slog.Error("got error from authority.List", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		s.apply(ctx, epoch, nil, true)
		return err
	}

	s.apply(ctx, epoch, holdings, false)

	return nil
}

// reload follows a successful write. Its epoch is taken only now, so a reload
// dispatched while the write was in flight can't outrank it.
func (s *Store) reload(ctx context.Context, op string) {
	if err := s.load(ctx, s.dispatch()); err != nil {
		slog.Warn("write applied, holdings left stale", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("op", op))
	}
}

// begin marks a write in flight. The epoch stays as is until the write succeeds.
func (s *Store) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Loading
}

func (s *Store) dispatch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.state = Loading
	return s.epoch
}

func (s *Store) apply(ctx context.Context, epoch uint64, holdings []model.Holding, failed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		slog.Warn(
			"stale reload discarded",
			slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.Uint64("epoch", epoch),
			slog.Uint64("latest", s.epoch),
		)
		return false
	}

	if holdings == nil {
		holdings = []model.Holding{}
	}
	s.holdings = holdings
	s.stale = failed
	s.state = Ready
	s.settled = epoch

	return true
}

// abandon ends a failed write, keeping the snapshot. A reload still in
// flight keeps the store Loading.
func (s *Store) abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled == s.epoch {
		s.state = Ready
	}
}

func validate(amount, profit decimal.Decimal) error {
	if amount.IsNegative() {
		return service.ErrInvalidAmount
	}
	if profit.LessThan(amount.Neg()) {
		return service.ErrProfitBelowLoss
	}
	return nil
}

func isRejected(err error) bool {
	return errors.Is(err, externalApi.ErrRejected) || errors.Is(err, repository.ErrAlreadyExists)
}

func isNotFound(err error) bool {
	return errors.Is(err, externalApi.ErrNotFound) || errors.Is(err, repository.ErrNotFound)
}
