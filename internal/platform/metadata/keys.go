package metadata

// --- SQLite Keys ---
// These keys are used for the 'key' column in the 'metadata' table.
const (
	// LastPokeExpirySweepAtKey stores the RFC3339 timestamp of the last completed
	// poke expiry sweep. Used to report sweeper lag after a restart.
	LastPokeExpirySweepAtKey = "last_poke_expiry_sweep_at"

	// LastMirrorReconcileAtKey stores the RFC3339 timestamp of the last successful
	// Redis mirror reconciliation (leaderboard + quota + known sessions).
	LastMirrorReconcileAtKey = "last_mirror_reconcile_at"
)
