// Package engine implements the reasoning engine that answers tasks by
// orchestrating knowledge-graph queries and tiered memory lookups.
//
// Each task advances through an explicit per-task state machine held in
// AgentState:
//
//	Received -> MemoryLookup -> StrategySelected -> Executing -> Verifying
//	  -> (Refining -> Executing)* -> Finalized -> Stored -> Returned
//
// A fixed set of strategies (path finding, relation prediction, complex
// reasoning) is dispatched from the task type. Results carry an aggregate
// confidence in [0,1]; results below the similarity threshold trigger
// bounded refinement with relaxed search depth or an alternate strategy,
// and exhaustion yields the best candidate flagged low-confidence rather
// than an error.
package engine
