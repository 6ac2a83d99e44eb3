package integrity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/fulfillment/internal/domain/integrity"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return m.err
}

func (m *MockEventPublisher) GetEvents() []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]shared.DomainEvent(nil), m.events...)
}

// MockChecker is a mock implementation of integrity.Checker
type MockChecker struct {
	mock.Mock
	name    string
	results []integrity.Result
	actions []integrity.Action
}

func newMockChecker(name string) *MockChecker {
	return &MockChecker{name: name}
}

func (m *MockChecker) Name() string { return m.name }
func (m *MockChecker) Title() string { return "Checking " + m.name }
func (m *MockChecker) Columns() []integrity.Column { return []integrity.Column{{Key: "id", Label: "ID"}} }
func (m *MockChecker) Labels() map[string]string { return map[string]string{"id": "ID"} }
func (m *MockChecker) Results() []integrity.Result { return m.results }
func (m *MockChecker) Actions() []integrity.Action { return m.actions }
func (m *MockChecker) setResults(n int) { m.results = make([]integrity.Result, n) }
func (m *MockChecker) setActions(a ...integrity.Action) { m.actions = a }

func (m *MockChecker) Check(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	m.setResults(args.Int(2))
	return args.Bool(0), args.Error(1)
}

func (m *MockChecker) Build(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockChecker) Fix(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	var units []uuid.UUID
	if args.Get(0) != nil {
		units = args.Get(0).([]uuid.UUID)
	}
	return units, args.Error(1)
}

var (
	unitA = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	unitB = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
)

func increment(kind integrity.ActionKind, unit uuid.UUID) integrity.Action {
	return integrity.NewIncrement(kind, unit, unit, valueobject.QuantityFromInt(1))
}

func TestRunner_Run_CheckOnly(t *testing.T) {
	sold := newMockChecker("unit_sold")
	sold.On("Check", mock.Anything).Return(false, nil, 2).Once()
	shipped := newMockChecker("unit_shipped")
	shipped.On("Check", mock.Anything).Return(true, nil, 0).Once()

	publisher := &MockEventPublisher{}
	runner := NewRunner([]integrity.Checker{sold, shipped}, zap.NewNop())
	runner.SetEventPublisher(publisher)

	report, err := runner.Run(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, report.Checkers, 2)
	assert.Equal(t, "unit_sold", report.Checkers[0].Name)
	assert.Equal(t, "Checking unit_sold", report.Checkers[0].Title)
	assert.Len(t, report.Checkers[0].Results, 2)
	assert.True(t, report.Checkers[1].OK())
	assert.Equal(t, 2, report.Mismatches())
	assert.False(t, report.OK())
	assert.Zero(t, report.Fixes)
	assert.Empty(t, report.UnitIDs)
	assert.Empty(t, publisher.GetEvents())

	sold.AssertNotCalled(t, "Build", mock.Anything)
	sold.AssertExpectations(t)
	shipped.AssertExpectations(t)
}

func TestRunner_Run_Fix(t *testing.T) {
	sold := newMockChecker("unit_sold")
	sold.On("Check", mock.Anything).Return(false, nil, 2).Once()
	sold.On("Build", mock.Anything).Run(func(mock.Arguments) {
		sold.setActions(increment(integrity.ActionUnitSold, unitA), increment(integrity.ActionUnitSold, unitB))
	}).Return(nil).Once()
	sold.On("Fix", mock.Anything).Return([]uuid.UUID{unitA, unitB}, nil).Once()
	sold.On("Check", mock.Anything).Return(true, nil, 0).Once()

	shipped := newMockChecker("unit_shipped")
	shipped.On("Check", mock.Anything).Return(false, nil, 1).Once()
	shipped.On("Build", mock.Anything).Run(func(mock.Arguments) {
		shipped.setActions(increment(integrity.ActionUnitShipped, unitA))
	}).Return(nil).Once()
	shipped.On("Fix", mock.Anything).Return([]uuid.UUID{unitA}, nil).Once()
	shipped.On("Check", mock.Anything).Return(true, nil, 0).Once()

	publisher := &MockEventPublisher{}
	runner := NewRunner([]integrity.Checker{sold, shipped}, zap.NewNop())
	runner.SetEventPublisher(publisher)

	report, err := runner.Run(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, report.Fix)
	assert.Equal(t, 3, report.Fixes)
	assert.Equal(t, []uuid.UUID{unitA, unitB}, report.UnitIDs)
	assert.Equal(t, 2, report.Checkers[0].Fixed)
	assert.Len(t, report.Checkers[0].Actions, 2)
	// results keep the mismatches found before the fix
	assert.Len(t, report.Checkers[0].Results, 2)

	events := publisher.GetEvents()
	require.Len(t, events, 1)
	reconciled, ok := events[0].(*stock.UnitsReconciledEvent)
	require.True(t, ok)
	assert.Equal(t, stock.EventTypeStockUnitsReconciled, reconciled.EventType())
	assert.Equal(t, report.BatchID, reconciled.AggregateID())
	assert.Equal(t, []uuid.UUID{unitA, unitB}, reconciled.UnitIDs)
	assert.Equal(t, 3, reconciled.Fixes)

	sold.AssertExpectations(t)
	shipped.AssertExpectations(t)
}

func TestRunner_Run_Errors(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(c *MockChecker)
		wantErr   error
		wantUnits int
		wantEvent bool
	}{
		{
			name: "fatal check stops the batch",
			setup: func(c *MockChecker) {
				c.On("Check", mock.Anything).Return(false, shared.NewBoundViolation("unit %s", unitA), 1).Once()
			},
			wantErr: shared.ErrBoundViolation,
		},
		{
			name: "undistributable delta",
			setup: func(c *MockChecker) {
				c.On("Check", mock.Anything).Return(false, nil, 1).Once()
				c.On("Build", mock.Anything).Return(shared.NewUnresolvedDelta("item %s", unitA)).Once()
			},
			wantErr: shared.ErrUnresolvedDelta,
		},
		{
			name: "executor failure keeps fixed units",
			setup: func(c *MockChecker) {
				c.On("Check", mock.Anything).Return(false, nil, 2).Once()
				c.On("Build", mock.Anything).Return(nil).Once()
				c.On("Fix", mock.Anything).Return([]uuid.UUID{unitA}, shared.ErrNotFound).Once()
			},
			wantErr:   shared.ErrNotFound,
			wantUnits: 1,
			wantEvent: true,
		},
		{
			name: "mismatches after fix",
			setup: func(c *MockChecker) {
				c.On("Check", mock.Anything).Return(false, nil, 2).Once()
				c.On("Build", mock.Anything).Return(nil).Once()
				c.On("Fix", mock.Anything).Return([]uuid.UUID{unitA}, nil).Once()
				c.On("Check", mock.Anything).Return(false, nil, 1).Once()
			},
			wantErr:   ErrStillMismatched,
			wantUnits: 1,
			wantEvent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failing := newMockChecker("assignment_sold")
			tt.setup(failing)
			next := newMockChecker("unit_sold")

			publisher := &MockEventPublisher{}
			runner := NewRunner([]integrity.Checker{failing, next}, zap.NewNop())
			runner.SetEventPublisher(publisher)

			report, err := runner.Run(context.Background(), true)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			require.NotNil(t, report)
			require.Len(t, report.Checkers, 1)
			assert.Error(t, report.Checkers[0].Err)
			assert.Len(t, report.UnitIDs, tt.wantUnits)
			assert.Equal(t, tt.wantEvent, len(publisher.GetEvents()) == 1)

			failing.AssertExpectations(t)
			next.AssertNotCalled(t, "Check", mock.Anything)
		})
	}
}

func TestRunner_Run_PublishFailureIgnored(t *testing.T) {
	c := newMockChecker("unit_sold")
	c.On("Check", mock.Anything).Return(false, nil, 1).Once()
	c.On("Build", mock.Anything).Return(nil).Once()
	c.On("Fix", mock.Anything).Return([]uuid.UUID{unitA}, nil).Once()
	c.On("Check", mock.Anything).Return(true, nil, 0).Once()

	runner := NewRunner([]integrity.Checker{c}, zap.NewNop())
	runner.SetEventPublisher(&MockEventPublisher{err: errors.New("bus down")})

	report, err := runner.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{unitA}, report.UnitIDs)
}

func TestRunner_Run_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := telemetry.NewIntegrityMetrics(provider.Meter("test"))
	require.NoError(t, err)

	c := newMockChecker("unit_sold")
	c.On("Check", mock.Anything).Return(false, nil, 1).Once()
	c.On("Build", mock.Anything).Run(func(mock.Arguments) {
		c.setActions(increment(integrity.ActionUnitSold, unitA))
	}).Return(nil).Once()
	c.On("Fix", mock.Anything).Return([]uuid.UUID{unitA}, nil).Once()
	c.On("Check", mock.Anything).Return(true, nil, 0).Once()

	runner := NewRunner([]integrity.Checker{c}, zap.NewNop())
	runner.SetMetrics(metrics)

	_, err = runner.Run(context.Background(), true)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var names []string
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names = append(names, m.Name)
		}
	}
	assert.Contains(t, names, "fulfillment_integrity_mismatches_total")
	assert.Contains(t, names, "fulfillment_integrity_actions_total")
	assert.Contains(t, names, "fulfillment_integrity_units_reconciled_total")
	assert.Contains(t, names, "fulfillment_integrity_check_duration_seconds")
}

func TestRunner_Run_TagsContextWithBatch(t *testing.T) {
	var checkCtx context.Context
	c := newMockChecker("unit_sold")
	c.On("Check", mock.Anything).Run(func(args mock.Arguments) {
		checkCtx = args.Get(0).(context.Context)
	}).Return(true, nil, 0).Once()

	core, recorded := observer.New(zapcore.InfoLevel)
	runner := NewRunner([]integrity.Checker{c}, zap.New(core))

	report, err := runner.Run(context.Background(), false)
	require.NoError(t, err)

	require.NotNil(t, checkCtx)
	assert.Equal(t, report.BatchID.String(), logger.GetBatchID(checkCtx))

	finished := recorded.FilterMessage("Integrity batch finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, report.BatchID.String(), finished[0].ContextMap()["batch_id"])
	for _, entry := range recorded.FilterMessage("Checking unit_sold").All() {
		assert.Equal(t, report.BatchID.String(), entry.ContextMap()["batch_id"])
		assert.Equal(t, "unit_sold", entry.ContextMap()["checker"])
	}
}
