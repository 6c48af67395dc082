package fundTrackerService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KotFed0t/fund_tracker_bot/config"
	"github.com/KotFed0t/fund_tracker_bot/internal/externalApi"
	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/service"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/aggregator"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/batchResolver"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/fundCache"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/holdingsStore"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/valuation"
	"github.com/KotFed0t/fund_tracker_bot/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var fundCode = regexp.MustCompile(`^\d{6}$`)

type FundApi interface {
	fundCache.FundApi
	batchResolver.Lookup
}

// AuthorityFactory returns the holdings authority of one chat.
// token is empty for backends that identify users by chat.
type AuthorityFactory func(chatID int64, token string) holdingsStore.Authority

type Login interface {
	Login(ctx context.Context, username, password string) (token string, err error)
}

type Registrar interface {
	RegUser(ctx context.Context, chatID int64) (userID int64, err error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, view model.PortfolioView) (fileBytes []byte, fileExtension string, err error)
}

type ReportStorage interface {
	UploadReport(ctx context.Context, reader io.Reader, filename string) (link string, err error)
	DeleteOldReports(ctx context.Context) error
}

type Deps struct {
	FundApi     FundApi
	Authorities AuthorityFactory
	Generator   ReportGenerator
	// optional, nil when the backend has no login
	Login Login
	// optional, nil when users are not registered locally
	Registrar Registrar
	// optional, nil sends reports as documents
	Storage ReportStorage
}

// workspace is everything one chat session owns. The reference cache lives
// exactly as long as the workspace.
type workspace struct {
	token    string
	cache    *fundCache.Cache
	store    *holdingsStore.Store
	resolver *batchResolver.Resolver
	lastUsed time.Time

	// concurrent handlers of one chat share a single session check and load
	starts  singleflight.Group
	started atomic.Bool
}

func (ws *workspace) loaded() bool {
	return ws.started.Load() && !ws.store.Stale()
}

// start checks the session and loads holdings. Unless forced it does nothing
// for a workspace loaded by a start that finished meanwhile.
func (ws *workspace) start(ctx context.Context, force bool) error {
	_, err, _ := ws.starts.Do("start", func() (any, error) {
		if !force && ws.loaded() {
			return nil, nil
		}
		err := ws.store.Start(ctx)
		ws.started.Store(true)
		return nil, err
	})
	return err
}

type FundTrackerService struct {
	cfg    *config.Config
	deps   Deps
	policy holdingsStore.SharePolicy
	now    func() time.Time

	mu         sync.Mutex
	workspaces map[int64]*workspace
}

func New(cfg *config.Config, deps Deps) (*FundTrackerService, error) {
	policy, err := holdingsStore.ParseSharePolicy(cfg.Valuation.ShareCountPolicy)
	if err != nil {
		return nil, err
	}

	return &FundTrackerService{
		cfg:        cfg,
		deps:       deps,
		policy:     policy,
		now:        time.Now,
		workspaces: make(map[int64]*workspace),
	}, nil
}

func (s *FundTrackerService) RegUser(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundTrackerService.RegUser"

	if s.deps.Registrar == nil {
		return nil
	}

	slog.Debug("RegUser start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("RegUser finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	_, err := s.deps.Registrar.RegUser(ctx, chatID)
	if err != nil {
		slog.Error("got error from registrar.RegUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	// a workspace built before registration has no session
	s.Forget(chatID)

	return nil
}

func (s *FundTrackerService) LoginSupported() bool {
	return s.deps.Login != nil
}

func (s *FundTrackerService) Login(ctx context.Context, chatID int64, username, password string) (token string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundTrackerService.Login"

	if s.deps.Login == nil {
		return "", service.ErrLoginUnsupported
	}

	slog.Debug("Login start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("Login finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	token, err = s.deps.Login.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, externalApi.ErrUnauthorized) || errors.Is(err, externalApi.ErrRejected) {
			return "", service.ErrBadCredentials
		}
		slog.Error("got error from login.Login", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	s.Forget(chatID)

	return token, nil
}

// Forget drops the chat workspace together with its reference cache.
func (s *FundTrackerService) Forget(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workspaces, chatID)
}

func (s *FundTrackerService) Portfolio(ctx context.Context, chatID int64, token string) (model.PortfolioView, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundTrackerService.Portfolio"

	slog.Debug("Portfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("Portfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	ws, err := s.workspace(ctx, chatID, token)
	if err != nil {
		return model.PortfolioView{}, err
	}

	return s.view(ctx, ws), nil
}

func (s *FundTrackerService) Refresh(ctx context.Context, chatID int64, token string) (model.PortfolioView, error) {
	ws, err := s.workspace(ctx, chatID, token)
	if err != nil {
		return model.PortfolioView{}, err
	}

	if err = ws.start(ctx, true); err != nil {
		if errors.Is(err, service.ErrNoSession) {
			return model.PortfolioView{}, err
		}
		slog.Warn("refresh failed, showing degraded portfolio", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.Int64("chatID", chatID), slog.String("err", err.Error()))
	}

	return s.view(ctx, ws), nil
}

func (s *FundTrackerService) Holding(ctx context.Context, chatID int64, token string, id int64) (model.EnrichedHolding, error) {
	ws, err := s.workspace(ctx, chatID, token)
	if err != nil {
		return model.EnrichedHolding{}, err
	}

	h, ok := ws.store.Find(id)
	if !ok {
		return model.EnrichedHolding{}, service.ErrNotFound
	}

	return valuation.Enrich(h, ws.cache.Get(ctx, h.Code)), nil
}

// AddHolding validates a manual add before any network call.
func (s *FundTrackerService) AddHolding(ctx context.Context, chatID int64, token string, intent model.AddIntent) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundTrackerService.AddHolding"

	slog.Debug("AddHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", intent.Code))
	defer func() {
		slog.Debug("AddHolding finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", intent.Code))
	}()

	if !fundCode.MatchString(intent.Code) {
		return service.ErrInvalidCode
	}
	if !intent.HoldingAmount.IsPositive() {
		return service.ErrInvalidAmount
	}
	if intent.CurrentProfit.LessThan(intent.HoldingAmount.Neg()) {
		return service.ErrProfitBelowLoss
	}

	ws, err := s.workspace(ctx, chatID, token)
	if err != nil {
		return err
	}

	return ws.store.Add(ctx, intent)
}

func (s *FundTrackerService) UpdateHolding(ctx context.Context, chatID int64, token string, id int64, changes model.HoldingChanges) error {
	if changes.HoldingAmount != nil && !changes.HoldingAmount.IsPositive() {
		return service.ErrInvalidAmount
	}

	ws, err := s.workspace(ctx, chatID, token)
	if err != nil {
		return err
	}

	return ws.store.Update(ctx, id, changes)
}

func (s *FundTrackerService) RemoveHolding(ctx context.Context, chatID int64, token string, id int64) error {
	ws, err := s.workspace(ctx, chatID, token)
	if err != nil {
		return err
	}

	return ws.store.Remove(ctx, id)
}

func (s *FundTrackerService) ResolveBatch(ctx context.Context, chatID int64, token string, text string, progress model.ProgressFunc) (model.BatchPreview, error) {
	ws, err := s.workspace(ctx, chatID, token)
	if err != nil {
		return model.BatchPreview{}, err
	}

	return ws.resolver.Resolve(ctx, text, progress)
}

func (s *FundTrackerService) BatchPreview(ctx context.Context, chatID int64, token string) (model.BatchPreview, error) {
	ws, err := s.workspace(ctx, chatID, token)
	if err != nil {
		return model.BatchPreview{}, err
	}

	preview, ok := ws.resolver.Preview()
	if !ok {
		return model.BatchPreview{}, service.ErrBatchNotPreviewed
	}

	return preview, nil
}

func (s *FundTrackerService) SetBatchInput(ctx context.Context, chatID int64, token string, code, amount, profit string) error {
	ws, err := s.workspace(ctx, chatID, token)
	if err != nil {
		return err
	}

	return ws.resolver.SetIndividualInput(code, amount, profit)
}

func (s *FundTrackerService) CommitBatch(
	ctx context.Context,
	chatID int64,
	token string,
	mode model.BatchMode,
	defaults model.BatchDefaults,
	progress model.ProgressFunc,
) (model.BatchResult, error) {
	ws, err := s.workspace(ctx, chatID, token)
	if err != nil {
		return model.BatchResult{}, err
	}

	return ws.resolver.Commit(ctx, mode, defaults, progress)
}

func (s *FundTrackerService) CancelBatch(chatID int64) {
	s.mu.Lock()
	ws, ok := s.workspaces[chatID]
	s.mu.Unlock()

	if ok {
		ws.resolver.Reset()
	}
}

// Report renders the portfolio to xlsx and uploads it when a storage is configured.
func (s *FundTrackerService) Report(ctx context.Context, chatID int64, token string) (model.Report, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundTrackerService.Report"

	slog.Debug("Report start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("Report finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	view, err := s.Portfolio(ctx, chatID, token)
	if err != nil {
		return model.Report{}, err
	}

	if len(view.Holdings) == 0 {
		return model.Report{}, service.ErrNotFound
	}

	content, ext, err := s.deps.Generator.Generate(ctx, view)
	if err != nil {
		slog.Error("got error from generator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Report{}, err
	}

	report := model.Report{
		FileName: fmt.Sprintf("holdings_%d_%s%s", chatID, s.now().Format("20060102_150405"), ext),
		Content:  content,
	}

	if s.deps.Storage == nil {
		return report, nil
	}

	link, err := s.deps.Storage.UploadReport(ctx, bytes.NewReader(content), report.FileName)
	if err != nil {
		// the document can still be sent directly
		slog.Warn("report upload failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return report, nil
	}
	report.Link = link

	return report, nil
}

func (s *FundTrackerService) DeleteOldReports(ctx context.Context) error {
	if s.deps.Storage == nil {
		return nil
	}
	return s.deps.Storage.DeleteOldReports(ctx)
}

// EvictIdleWorkspaces drops workspaces not used within SessionExpiration.
func (s *FundTrackerService) EvictIdleWorkspaces(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	threshold := s.now().Add(-s.cfg.SessionExpiration)

	s.mu.Lock()
	evicted := 0
	for chatID, ws := range s.workspaces {
		if ws.lastUsed.Before(threshold) {
			delete(s.workspaces, chatID)
			evicted++
		}
	}
	remaining := len(s.workspaces)
	s.mu.Unlock()

	slog.Info("idle workspaces evicted", slog.String("rqID", rqID), slog.Int("evicted", evicted), slog.Int("remaining", remaining))

	return nil
}

// workspace returns the started workspace of the chat, building a new one
// on first use or when the token changed. A workspace left stale by a failed
// load is started again. Only a missing session is an error; any other start
// failure leaves the workspace degraded to an empty snapshot.
func (s *FundTrackerService) workspace(ctx context.Context, chatID int64, token string) (*workspace, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundTrackerService.workspace"

	s.mu.Lock()
	ws, ok := s.workspaces[chatID]
	if !ok || ws.token != token {
		ws = s.newWorkspace(chatID, token)
		s.workspaces[chatID] = ws
	}
	ws.lastUsed = s.now()
	s.mu.Unlock()

	if ws.loaded() {
		return ws, nil
	}

	err := ws.start(ctx, false)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNoSession):
		// not kept, so the next call starts over
		s.mu.Lock()
		if s.workspaces[chatID] == ws {
			delete(s.workspaces, chatID)
		}
		s.mu.Unlock()
		return nil, err
	default:
		slog.Warn("workspace started degraded", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return ws, nil
}

func (s *FundTrackerService) newWorkspace(chatID int64, token string) *workspace {
	cache := fundCache.New(s.deps.FundApi)
	store := holdingsStore.New(s.deps.Authorities(chatID, token), cache, s.policy)
	return &workspace{
		token:    token,
		cache:    cache,
		store:    store,
		resolver: batchResolver.New(store, s.deps.FundApi),
	}
}

func (s *FundTrackerService) view(ctx context.Context, ws *workspace) model.PortfolioView {
	holdings := ws.store.Holdings()
	enriched := make([]model.EnrichedHolding, len(holdings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Valuation.EnrichConcurrency, 1))

	for i, h := range holdings {
		g.Go(func() error {
			enriched[i] = valuation.Enrich(h, ws.cache.Get(gctx, h.Code))
			return nil
		})
	}
	_ = g.Wait()

	return model.PortfolioView{
		Holdings: enriched,
		Summary:  aggregator.Summarize(enriched),
		Stale:    ws.store.Stale(),
	}
}
