package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSagaNotFound is returned for unknown or pruned saga IDs
var ErrSagaNotFound = errors.New("saga not found")

const subscriberBuffer = 100

// Manager manages saga execution and coordination
type Manager struct {
	logger      *zap.Logger
	instances   map[SagaID]*SagaInstance
	definitions map[string]SagaDefinition
	subscribers map[int]chan SagaEvent
	nextSubID   int
	mu          sync.RWMutex
	subMu       sync.RWMutex
}

// NewManager creates a new saga manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger:      logger,
		instances:   make(map[SagaID]*SagaInstance),
		definitions: make(map[string]SagaDefinition),
		subscribers: make(map[int]chan SagaEvent),
	}
}

// RegisterDefinition registers a saga definition
func (m *Manager) RegisterDefinition(def SagaDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[def.ID()] = def
	m.logger.Info("Saga definition registered", zap.String("id", def.ID()))
}

// StartSaga starts a new saga instance with a generated ID
func (m *Manager) StartSaga(ctx context.Context, definitionID string, data SagaData) (SagaID, error) {
	sagaID := SagaID(fmt.Sprintf("%s_%d", definitionID, time.Now().UnixNano()))
	if err := m.StartSagaWithID(ctx, sagaID, definitionID, data); err != nil {
		return "", err
	}
	return sagaID, nil
}

// StartSagaWithID starts a new saga instance under a caller chosen ID.
// The saga runs in its own goroutine and stops when ctx is cancelled or the definition timeout expires.
func (m *Manager) StartSagaWithID(ctx context.Context, sagaID SagaID, definitionID string, data SagaData) error {
	if data == nil {
		data = SagaData{}
	}

	m.mu.Lock()
	def, exists := m.definitions[definitionID]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("saga definition not found: %s", definitionID)
	}
	if _, exists := m.instances[sagaID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("saga already exists: %s", sagaID)
	}

	steps := def.Steps()

	// Initialize step executions
	stepExecs := make([]StepExecution, len(steps))
	for i, step := range steps {
		stepExecs[i] = StepExecution{
			ID:    step.ID(),
			State: StepStatePending,
		}
	}

	instance := &SagaInstance{
		ID:         sagaID,
		Definition: definitionID,
		State:      SagaStateStarted,
		Data:       data,
		Steps:      stepExecs,
		StartedAt:  time.Now(),
		done:       make(chan struct{}),
	}

	m.instances[sagaID] = instance
	m.mu.Unlock()

	m.emitEvent(SagaEvent{
		SagaID:     sagaID,
		Definition: definitionID,
		Type:       EventSagaStarted,
		Timestamp:  time.Now(),
	})

	// Start execution in a goroutine
	go m.executeSaga(ctx, sagaID, def, steps)

	m.logger.Info("Saga started", zap.String("sagaID", string(sagaID)), zap.String("definition", definitionID))
	return nil
}

// GetSaga returns a snapshot of a saga instance by ID
func (m *Manager) GetSaga(sagaID SagaID) (*SagaInstance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	instance, exists := m.instances[sagaID]
	if !exists {
		return nil, false
	}

	snapshot := *instance
	snapshot.Steps = append([]StepExecution(nil), instance.Steps...)
	return &snapshot, true
}

// Wait blocks until the saga finishes or ctx is done and returns its final snapshot
func (m *Manager) Wait(ctx context.Context, sagaID SagaID) (*SagaInstance, error) {
	m.mu.RLock()
	instance, exists := m.instances[sagaID]
	m.mu.RUnlock()
	if !exists {
		return nil, ErrSagaNotFound
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-instance.done:
	}

	snapshot, _ := m.GetSaga(sagaID)
	if snapshot == nil {
		return nil, ErrSagaNotFound
	}
	return snapshot, nil
}

// Prune forgets finished sagas that completed before the given time
func (m *Manager) Prune(before time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, instance := range m.instances {
		if instance.IsFinished() && instance.CompletedAt != nil && instance.CompletedAt.Before(before) {
			delete(m.instances, id)
			pruned++
		}
	}
	return pruned
}

// Subscribe registers a listener for saga events.
// Slow subscribers miss events instead of blocking execution. Call the returned func to unsubscribe.
func (m *Manager) Subscribe() (<-chan SagaEvent, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan SagaEvent, subscriberBuffer)
	m.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			delete(m.subscribers, id)
			close(ch)
		})
	}
}

// executeSaga executes a saga instance
func (m *Manager) executeSaga(ctx context.Context, sagaID SagaID, def SagaDefinition, steps []Step) {
	m.updateSagaState(sagaID, SagaStateRunning)

	// Create context with timeout
	ctx, cancel := context.WithTimeout(ctx, def.Timeout())
	defer cancel()

	// Execute steps sequentially
	var failure error
	lastCompletedStep := -1

	for i, step := range steps {
		if err := m.executeStep(ctx, sagaID, def.ID(), i, step); err != nil {
			m.logger.Error("Step failed",
				zap.String("sagaID", string(sagaID)),
				zap.String("stepID", string(step.ID())),
				zap.Error(err))

			failure = err
			break
		}
		lastCompletedStep = i
	}

	if failure != nil {
		m.setSagaError(sagaID, failure)
		m.logger.Info("Starting compensation", zap.String("sagaID", string(sagaID)))

		// Compensation must run even when the saga context has expired
		compensateCtx, cancelCompensate := context.WithTimeout(context.WithoutCancel(ctx), def.Timeout())
		defer cancelCompensate()
		m.compensateSaga(compensateCtx, sagaID, def, steps, lastCompletedStep)
	} else {
		m.completeSaga(sagaID, def.ID())
	}
}

// executeStep executes a single step
func (m *Manager) executeStep(ctx context.Context, sagaID SagaID, definitionID string, stepIndex int, step Step) error {
	m.updateStepState(sagaID, stepIndex, StepStateRunning)

	started := time.Now()
	m.setStepStartTime(sagaID, stepIndex, started)

	m.emitEvent(SagaEvent{
		SagaID:     sagaID,
		Definition: definitionID,
		StepID:     step.ID(),
		Type:       EventStepStarted,
		Timestamp:  started,
	})

	instance, _ := m.GetSaga(sagaID)

	result := step.Execute(ctx, instance.Data)
	if !result.Success && result.Error == nil {
		result.Error = fmt.Errorf("step %s failed", step.ID())
	}
	if result.Success && ctx.Err() != nil {
		result = StepResult{Error: ctx.Err()}
	}

	now := time.Now()
	m.setStepCompletionTime(sagaID, stepIndex, now)

	if result.Success {
		m.setStepResult(sagaID, stepIndex, result.Data)
		m.updateStepState(sagaID, stepIndex, StepStateCompleted)

		m.emitEvent(SagaEvent{
			SagaID:     sagaID,
			Definition: definitionID,
			StepID:     step.ID(),
			Type:       EventStepCompleted,
			Timestamp:  now,
			Data:       result.Data,
			Duration:   now.Sub(started),
		})

		m.logger.Info("Step completed",
			zap.String("sagaID", string(sagaID)),
			zap.String("stepID", string(step.ID())),
			zap.Duration("duration", now.Sub(started)))

		return nil
	}

	m.updateStepState(sagaID, stepIndex, StepStateFailed)
	m.setStepError(sagaID, stepIndex, result.Error.Error())

	m.emitEvent(SagaEvent{
		SagaID:     sagaID,
		Definition: definitionID,
		StepID:     step.ID(),
		Type:       EventStepFailed,
		Timestamp:  now,
		Data:       result.Error.Error(),
		Duration:   now.Sub(started),
	})

	return result.Error
}

// compensateSaga runs compensation for completed steps in reverse order
func (m *Manager) compensateSaga(ctx context.Context, sagaID SagaID, def SagaDefinition, steps []Step, lastCompletedStep int) {
	instance, _ := m.GetSaga(sagaID)

	for i := lastCompletedStep; i >= 0; i-- {
		step := steps[i]

		m.logger.Info("Compensating step",
			zap.String("sagaID", string(sagaID)),
			zap.String("stepID", string(step.ID())))

		if err := step.Compensate(ctx, instance.Data); err != nil {
			m.logger.Error("Compensation failed",
				zap.String("sagaID", string(sagaID)),
				zap.String("stepID", string(step.ID())),
				zap.Error(err))
			continue
		}

		m.updateStepState(sagaID, i, StepStateCompensated)

		m.emitEvent(SagaEvent{
			SagaID:     sagaID,
			Definition: def.ID(),
			StepID:     step.ID(),
			Type:       EventStepCompensated,
			Timestamp:  time.Now(),
		})
	}

	now := time.Now()
	m.finishSaga(sagaID, SagaStateCompensated, now)

	m.emitEvent(SagaEvent{
		SagaID:     sagaID,
		Definition: def.ID(),
		Type:       EventSagaCompensated,
		Timestamp:  now,
		Data:       instance.Error,
	})

	m.logger.Info("Saga compensated", zap.String("sagaID", string(sagaID)))
}

// completeSaga marks a saga as completed
func (m *Manager) completeSaga(sagaID SagaID, definitionID string) {
	now := time.Now()
	m.finishSaga(sagaID, SagaStateCompleted, now)

	m.emitEvent(SagaEvent{
		SagaID:     sagaID,
		Definition: definitionID,
		Type:       EventSagaCompleted,
		Timestamp:  now,
	})

	m.logger.Info("Saga completed", zap.String("sagaID", string(sagaID)))
}

// Helper methods for updating saga state
func (m *Manager) updateSagaState(sagaID SagaID, state SagaState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, exists := m.instances[sagaID]; exists {
		instance.State = state
	}
}

func (m *Manager) finishSaga(sagaID SagaID, state SagaState, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, exists := m.instances[sagaID]; exists {
		instance.State = state
		instance.CompletedAt = &t
		close(instance.done)
	}
}

func (m *Manager) setSagaError(sagaID SagaID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, exists := m.instances[sagaID]; exists {
		instance.Error = err.Error()
		instance.Data[DataKeyError] = err
	}
}

func (m *Manager) updateStepState(sagaID SagaID, stepIndex int, state StepState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, exists := m.instances[sagaID]; exists && stepIndex < len(instance.Steps) {
		instance.Steps[stepIndex].State = state
	}
}

func (m *Manager) setStepStartTime(sagaID SagaID, stepIndex int, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, exists := m.instances[sagaID]; exists && stepIndex < len(instance.Steps) {
		instance.Steps[stepIndex].StartedAt = &t
	}
}

func (m *Manager) setStepCompletionTime(sagaID SagaID, stepIndex int, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, exists := m.instances[sagaID]; exists && stepIndex < len(instance.Steps) {
		instance.Steps[stepIndex].CompletedAt = &t
	}
}

func (m *Manager) setStepResult(sagaID SagaID, stepIndex int, result interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, exists := m.instances[sagaID]; exists && stepIndex < len(instance.Steps) {
		instance.Steps[stepIndex].Result = result
	}
}

func (m *Manager) setStepError(sagaID SagaID, stepIndex int, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, exists := m.instances[sagaID]; exists && stepIndex < len(instance.Steps) {
		instance.Steps[stepIndex].Error = errMsg
	}
}

func (m *Manager) emitEvent(event SagaEvent) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for _, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			m.logger.Warn("Subscriber channel full, dropping event", zap.String("type", event.Type))
		}
	}
}
