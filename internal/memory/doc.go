// Package memory implements the tiered experience store backing the
// reasoning engine.
//
// Three tiers hold different payload shapes under one storage contract:
// episodic (task + outcome records), semantic (generalized facts distilled
// from repeated episodes), and procedural (a per-strategy success statistic
// maintained as an exponential moving average).
//
// Episodic and semantic records decay exponentially over time and are
// pruned once their strength drops below a configurable epsilon. Each tier
// is capacity bounded; storing past capacity synchronously evicts the
// weakest records. Writes to a tier are serialized, reads run concurrently,
// and tiers never block each other.
package memory
