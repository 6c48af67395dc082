package holdingsStore

import (
	"context"
	"errors"
	"testing"

	"github.com/KotFed0t/fund_tracker_bot/internal/externalApi"
	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthority struct {
	mock.Mock
}

func (m *MockAuthority) CurrentUser(ctx context.Context) (model.User, bool, error) {
	args := m.Called()
	return args.Get(0).(model.User), args.Bool(1), args.Error(2)
}

func (m *MockAuthority) List(ctx context.Context) ([]model.Holding, error) {
	args := m.Called()
	return args.Get(0).([]model.Holding), args.Error(1)
}

func (m *MockAuthority) Create(ctx context.Context, req model.HoldingRequest) (model.Holding, error) {
	args := m.Called(req)
	return args.Get(0).(model.Holding), args.Error(1)
}

func (m *MockAuthority) Update(ctx context.Context, id int64, req model.HoldingRequest) (model.Holding, error) {
	args := m.Called(id, req)
	return args.Get(0).(model.Holding), args.Error(1)
}

func (m *MockAuthority) Delete(ctx context.Context, id int64) error {
	args := m.Called(id)
	return args.Error(0)
}

type staticRefs map[string]model.FundReference

func (r staticRefs) Get(ctx context.Context, code string) model.FundReference {
	if ref, ok := r[code]; ok {
		return ref
	}
	return model.FundReference{Code: code}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var liquor = model.Holding{ID: 1, Code: "161725", Name: "招商中证白酒", HoldingAmount: d("1000"), ShareCount: d("800"), CurrentProfit: d("150")}

func startedStore(t *testing.T, auth *MockAuthority, refs References, policy SharePolicy, initial []model.Holding) *Store {
	t.Helper()
	auth.On("CurrentUser").Return(model.User{ID: 1, Username: "demo"}, true, nil).Once()
	auth.On("List").Return(initial, nil).Once()

	s := New(auth, refs, policy)
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, Ready, s.State())
	return s
}

func TestStart_NoSession(t *testing.T) {
	auth := new(MockAuthority)
	auth.On("CurrentUser").Return(model.User{}, false, nil)

	s := New(auth, staticRefs{}, SharesCaptured)
	assert.Equal(t, Uninitialized, s.State())

	err := s.Start(context.Background())

	assert.ErrorIs(t, err, service.ErrNoSession)
	assert.Equal(t, Ready, s.State())
	assert.Empty(t, s.Holdings())
	auth.AssertNotCalled(t, "List")
}

func TestStart_LoadsHoldings(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{liquor})

	assert.Equal(t, []model.Holding{liquor}, s.Holdings())
	assert.True(t, s.HasCode("161725"))
	assert.False(t, s.HasCode("110011"))

	h, ok := s.Find(1)
	assert.True(t, ok)
	assert.Equal(t, "161725", h.Code)
	auth.AssertExpectations(t)
}

func TestStart_ListFailureDegradesToEmpty(t *testing.T) {
	auth := new(MockAuthority)
	auth.On("CurrentUser").Return(model.User{ID: 1}, true, nil)
	auth.On("List").Return([]model.Holding(nil), errors.New("connection refused"))

	s := New(auth, staticRefs{}, SharesCaptured)
	err := s.Start(context.Background())

	assert.Error(t, err)
	assert.Equal(t, Ready, s.State())
	assert.NotNil(t, s.Holdings())
	assert.Empty(t, s.Holdings())
	assert.True(t, s.Stale())
}

func TestStart_SessionCheckFailure(t *testing.T) {
	auth := new(MockAuthority)
	auth.On("CurrentUser").Return(model.User{}, false, errors.New("timeout"))

	s := New(auth, staticRefs{}, SharesCaptured)
	err := s.Start(context.Background())

	assert.Error(t, err)
	assert.Equal(t, Ready, s.State())
	assert.True(t, s.Stale())
	assert.ErrorIs(t, s.Add(context.Background(), model.AddIntent{Code: "161725", HoldingAmount: d("1")}), service.ErrUnavailable)
	auth.AssertNotCalled(t, "List")
	auth.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAdd_ReloadFailureLeavesStaleSnapshot(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{})

	auth.On("Create", mock.Anything).Return(liquor, nil).Once()
	auth.On("List").Return([]model.Holding(nil), errors.New("503")).Once()

	err := s.Add(context.Background(), model.AddIntent{Code: "161725", HoldingAmount: d("1000")})

	require.NoError(t, err)
	assert.Equal(t, Ready, s.State())
	assert.True(t, s.Stale())
	assert.Empty(t, s.Holdings())

	auth.On("CurrentUser").Return(model.User{ID: 1}, true, nil).Once()
	auth.On("List").Return([]model.Holding{liquor}, nil).Once()

	require.NoError(t, s.Refresh(context.Background()))
	assert.False(t, s.Stale())
	assert.Equal(t, []model.Holding{liquor}, s.Holdings())
}

func TestAdd_ComputesShareCountAndReloads(t *testing.T) {
	auth := new(MockAuthority)
	refs := staticRefs{"110011": {Code: "110011", Name: "易方达中小盘", CurrentValuation: d("1.5")}}
	s := startedStore(t, auth, refs, SharesCaptured, []model.Holding{liquor})

	added := model.Holding{ID: 2, Code: "110011", Name: "易方达中小盘", HoldingAmount: d("1500"), ShareCount: d("1000")}

	auth.On("Create", mock.MatchedBy(func(req model.HoldingRequest) bool {
		return req.Code == "110011" && req.Name == "易方达中小盘" && req.ShareCount.Equal(d("1000"))
	})).Return(added, nil).Once()
	auth.On("List").Return([]model.Holding{liquor, added}, nil).Once()

	err := s.Add(context.Background(), model.AddIntent{Code: "110011", HoldingAmount: d("1500")})

	require.NoError(t, err)
	assert.Len(t, s.Holdings(), 2)
	assert.True(t, s.HasCode("110011"))
	auth.AssertExpectations(t)
}

func TestAdd_UnknownValuationStoresZeroShares(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{})

	auth.On("Create", mock.MatchedBy(func(req model.HoldingRequest) bool {
		// name falls back to the code when the reference is empty
		return req.ShareCount.IsZero() && req.Name == "000001"
	})).Return(model.Holding{}, nil).Once()
	auth.On("List").Return([]model.Holding{}, nil).Once()

	require.NoError(t, s.Add(context.Background(), model.AddIntent{Code: "000001", HoldingAmount: d("100")}))
	auth.AssertExpectations(t)
}

func TestAdd_LocalDuplicate(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{liquor})

	err := s.Add(context.Background(), model.AddIntent{Code: "161725", HoldingAmount: d("100")})

	assert.ErrorIs(t, err, service.ErrDuplicate)
	auth.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAdd_RejectedByAuthorityIsDuplicateWithoutReload(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{liquor})

	auth.On("Create", mock.Anything).Return(model.Holding{}, externalApi.ErrRejected).Once()

	err := s.Add(context.Background(), model.AddIntent{Code: "110011", HoldingAmount: d("100")})

	assert.ErrorIs(t, err, service.ErrDuplicate)
	assert.Equal(t, Ready, s.State())
	assert.Equal(t, []model.Holding{liquor}, s.Holdings())
	// only the initial load
	auth.AssertNumberOfCalls(t, "List", 1)
}

func TestAdd_Validation(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{})

	err := s.Add(context.Background(), model.AddIntent{Code: "110011", HoldingAmount: d("100"), CurrentProfit: d("-100.01")})
	assert.ErrorIs(t, err, service.ErrProfitBelowLoss)

	err = s.Add(context.Background(), model.AddIntent{Code: "110011", HoldingAmount: d("-1")})
	assert.ErrorIs(t, err, service.ErrInvalidAmount)

	// a full loss is allowed
	auth.On("Create", mock.Anything).Return(model.Holding{}, nil).Once()
	auth.On("List").Return([]model.Holding{}, nil).Once()
	assert.NoError(t, s.Add(context.Background(), model.AddIntent{Code: "110011", HoldingAmount: d("100"), CurrentProfit: d("-100")}))
}

func TestMutations_NoSession(t *testing.T) {
	auth := new(MockAuthority)
	auth.On("CurrentUser").Return(model.User{}, false, nil)

	s := New(auth, staticRefs{}, SharesCaptured)
	_ = s.Start(context.Background())

	assert.ErrorIs(t, s.Add(context.Background(), model.AddIntent{Code: "110011"}), service.ErrNoSession)
	assert.ErrorIs(t, s.Update(context.Background(), 1, model.HoldingChanges{}), service.ErrNoSession)
	assert.ErrorIs(t, s.Remove(context.Background(), 1), service.ErrNoSession)
}

func TestUpdate_MergesPartialChanges(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{"161725": {CurrentValuation: d("2")}}, SharesCaptured, []model.Holding{liquor})

	notes := "long term"
	auth.On("Update", int64(1), mock.MatchedBy(func(req model.HoldingRequest) bool {
		return req.Code == liquor.Code &&
			req.Name == liquor.Name &&
			req.HoldingAmount.Equal(liquor.HoldingAmount) &&
			req.CurrentProfit.Equal(liquor.CurrentProfit) &&
			req.ShareCount.Equal(liquor.ShareCount) &&
			req.Notes == notes
	})).Return(model.Holding{}, nil).Once()
	auth.On("List").Return([]model.Holding{liquor}, nil).Once()

	require.NoError(t, s.Update(context.Background(), 1, model.HoldingChanges{Notes: &notes}))
	auth.AssertExpectations(t)
}

func TestUpdate_SharePolicy(t *testing.T) {
	amount := d("1200")

	tests := []struct {
		name   string
		policy SharePolicy
		shares decimal.Decimal
	}{
		{name: "captured keeps shares", policy: SharesCaptured, shares: d("800")},
		{name: "derived recomputes shares", policy: SharesDerived, shares: d("600")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := new(MockAuthority)
			s := startedStore(t, auth, staticRefs{"161725": {CurrentValuation: d("2")}}, tt.policy, []model.Holding{liquor})

			auth.On("Update", int64(1), mock.MatchedBy(func(req model.HoldingRequest) bool {
				return req.HoldingAmount.Equal(amount) && req.ShareCount.Equal(tt.shares)
			})).Return(model.Holding{}, nil).Once()
			auth.On("List").Return([]model.Holding{liquor}, nil).Once()

			require.NoError(t, s.Update(context.Background(), 1, model.HoldingChanges{HoldingAmount: &amount}))
			auth.AssertExpectations(t)
		})
	}
}

func TestUpdate_UnknownID(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{liquor})

	err := s.Update(context.Background(), 42, model.HoldingChanges{})

	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestUpdate_ProfitBelowLoss(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{liquor})

	profit := d("-1000.5")
	err := s.Update(context.Background(), 1, model.HoldingChanges{CurrentProfit: &profit})

	assert.ErrorIs(t, err, service.ErrProfitBelowLoss)
	auth.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRemove_ReloadsAfterDelete(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{liquor})

	auth.On("Delete", int64(1)).Return(nil).Once()
	auth.On("List").Return([]model.Holding{}, nil).Once()

	require.NoError(t, s.Remove(context.Background(), 1))
	assert.Empty(t, s.Holdings())
	auth.AssertExpectations(t)
}

func TestRemove_NotFound(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{liquor})

	auth.On("Delete", int64(7)).Return(externalApi.ErrNotFound).Once()

	err := s.Remove(context.Background(), 7)

	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, Ready, s.State())
	auth.AssertNumberOfCalls(t, "List", 1)
}

func TestRefresh_StaleReloadDiscarded(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{})

	stale := []model.Holding{liquor}
	fresh := []model.Holding{}

	started := make(chan struct{})
	release := make(chan struct{})

	auth.On("CurrentUser").Return(model.User{ID: 1}, true, nil)
	auth.On("List").Return(stale, nil).Once().Run(func(mock.Arguments) {
		close(started)
		<-release
	})
	auth.On("List").Return(fresh, nil).Once()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Refresh(context.Background())
	}()

	<-started
	assert.Equal(t, Loading, s.State())

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, Ready, s.State())

	close(release)
	<-done

	// the older completion must not overwrite the newer snapshot
	assert.Empty(t, s.Holdings())
	assert.Equal(t, Ready, s.State())
}

func TestAdd_RefreshDuringCreateKeepsNewHolding(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{})

	writing := make(chan struct{})
	release := make(chan struct{})

	auth.On("Create", mock.Anything).Return(liquor, nil).Once().Run(func(mock.Arguments) {
		close(writing)
		<-release
	})
	auth.On("CurrentUser").Return(model.User{ID: 1}, true, nil).Once()
	// the refresh lists before the create lands, the add's own reload after
	auth.On("List").Return([]model.Holding{}, nil).Once()
	auth.On("List").Return([]model.Holding{liquor}, nil).Once()

	added := make(chan error, 1)
	go func() {
		added <- s.Add(context.Background(), model.AddIntent{Code: "161725", HoldingAmount: d("1000")})
	}()

	<-writing
	assert.Equal(t, Loading, s.State())

	require.NoError(t, s.Refresh(context.Background()))
	assert.Empty(t, s.Holdings())

	close(release)
	require.NoError(t, <-added)

	assert.Equal(t, []model.Holding{liquor}, s.Holdings())
	assert.Equal(t, Ready, s.State())
	assert.False(t, s.Stale())
	auth.AssertExpectations(t)
}

func TestRemove_FailureDuringReloadKeepsLoading(t *testing.T) {
	auth := new(MockAuthority)
	s := startedStore(t, auth, staticRefs{}, SharesCaptured, []model.Holding{liquor})

	listing := make(chan struct{})
	release := make(chan struct{})

	auth.On("CurrentUser").Return(model.User{ID: 1}, true, nil).Once()
	auth.On("List").Return([]model.Holding{liquor}, nil).Once().Run(func(mock.Arguments) {
		close(listing)
		<-release
	})
	auth.On("Delete", int64(1)).Return(errors.New("connection reset")).Once()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Refresh(context.Background())
	}()

	<-listing
	assert.Error(t, s.Remove(context.Background(), 1))
	assert.Equal(t, Loading, s.State())

	close(release)
	<-done
	assert.Equal(t, Ready, s.State())
}

func TestParseSharePolicy(t *testing.T) {
	p, err := ParseSharePolicy("derived")
	require.NoError(t, err)
	assert.Equal(t, SharesDerived, p)

	p, err = ParseSharePolicy("")
	require.NoError(t, err)
	assert.Equal(t, SharesCaptured, p)

	_, err = ParseSharePolicy("lots")
	assert.Error(t, err)
}
