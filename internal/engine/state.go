package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Phase is one step of the per-task state machine.
type Phase string

const (
	PhaseReceived         Phase = "received"
	PhaseMemoryLookup     Phase = "memory_lookup"
	PhaseStrategySelected Phase = "strategy_selected"
	PhaseExecuting        Phase = "executing"
	PhaseVerifying        Phase = "verifying"
	PhaseRefining         Phase = "refining"
	PhaseFinalized        Phase = "finalized"
	PhaseStored           Phase = "stored"
	PhaseReturned         Phase = "returned"
)

// transitions is the legal phase graph. Refining loops back to Executing;
// Returned is terminal for success and failure alike.
var transitions = map[Phase][]Phase{
	PhaseReceived:         {PhaseMemoryLookup, PhaseReturned},
	PhaseMemoryLookup:     {PhaseStrategySelected, PhaseReturned},
	PhaseStrategySelected: {PhaseExecuting, PhaseReturned},
	PhaseExecuting:        {PhaseVerifying, PhaseReturned},
	PhaseVerifying:        {PhaseRefining, PhaseFinalized, PhaseReturned},
	PhaseRefining:         {PhaseExecuting, PhaseReturned},
	PhaseFinalized:        {PhaseStored, PhaseReturned},
	PhaseStored:           {PhaseReturned},
	PhaseReturned:         {},
}

func canAdvance(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// TaskState is one in-flight task's registry row.
type TaskState struct {
	// Task is the immutable task being reasoned over.
	Task Task

	// Phase is the current state-machine phase.
	Phase Phase

	// StartedAt is when the task entered the engine.
	StartedAt time.Time

	cancel context.CancelFunc
}

// AgentState is the process-wide registry of in-flight tasks, keyed by task
// ID. It is created at agent start and torn down at shutdown; it is the
// only shared mutable structure outside the memory system. All mutation
// goes through the engine.
type AgentState struct {
	mu     sync.RWMutex
	tasks  map[string]*TaskState
	closed bool
}

// NewAgentState creates an empty registry.
func NewAgentState() *AgentState {
	return &AgentState{tasks: make(map[string]*TaskState)}
}

// begin registers a task in PhaseReceived. Duplicate IDs and closed
// registries are errors.
func (a *AgentState) begin(task Task, cancel context.CancelFunc) (*TaskState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrAgentClosed
	}
	if _, ok := a.tasks[task.ID]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateTask, task.ID)
	}

	ts := &TaskState{
		Task:      task,
		Phase:     PhaseReceived,
		StartedAt: time.Now(),
		cancel:    cancel,
	}
	a.tasks[task.ID] = ts
	return ts, nil
}

// advance moves a task to the next phase, enforcing the transition graph.
func (a *AgentState) advance(taskID string, next Phase) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts, ok := a.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q not registered", taskID)
	}
	if !canAdvance(ts.Phase, next) {
		return fmt.Errorf("illegal transition %s -> %s for task %q", ts.Phase, next, taskID)
	}
	ts.Phase = next
	return nil
}

// Phase returns the current phase of an in-flight task.
func (a *AgentState) Phase(taskID string) (Phase, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ts, ok := a.tasks[taskID]
	if !ok {
		return "", false
	}
	return ts.Phase, true
}

// Cancel cancels an in-flight task. Cancellation before Finalized releases
// reasoning state without any memory write-back. Returns false for unknown
// or already-finalized tasks. The phase check and the cancel happen under
// the lock so a concurrent advance cannot slip between them.
func (a *AgentState) Cancel(taskID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts, ok := a.tasks[taskID]
	if !ok || ts.Phase == PhaseFinalized || ts.Phase == PhaseStored || ts.Phase == PhaseReturned {
		return false
	}
	ts.cancel()
	return true
}

// finish removes a task from the registry once it has returned.
func (a *AgentState) finish(taskID string) {
	a.mu.Lock()
	delete(a.tasks, taskID)
	a.mu.Unlock()
}

// InFlight returns the number of registered tasks.
func (a *AgentState) InFlight() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.tasks)
}

// Close tears the registry down, cancelling every in-flight task. Further
// begins fail with ErrAgentClosed.
func (a *AgentState) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	for _, ts := range a.tasks {
		ts.cancel()
	}
}
