package model

// Config holds all tunable parameters, layered by the CLI from defaults,
// ~/.claimwatch/config.yaml, CLAIMWATCH_* environment variables, and flags
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Scorer   ScorerConfig   `yaml:"scorer"`
	Timeline TimelineConfig `yaml:"timeline"`
	Alerts   AlertConfig    `yaml:"alerts"`
	Worker   WorkerConfig   `yaml:"worker"`
	Cache    CacheConfig    `yaml:"cache"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	// Backend name: "memory" or "mysql"
	Backend string `yaml:"backend"`

	// DSN for the mysql backend, e.g. user:pass@tcp(host:3306)/claimwatch
	DSN string `yaml:"dsn"`
}

// ScorerConfig holds the composite confidence weights. The six weights
// are applied to prior, source credibility, citation support,
// contradiction penalty (subtracted), verification bonus, and mutation
// decay respectively.
type ScorerConfig struct {
	PriorWeight         float64 `yaml:"prior_weight"`
	SourceWeight        float64 `yaml:"source_weight"`
	CitationWeight      float64 `yaml:"citation_weight"`
	ContradictionWeight float64 `yaml:"contradiction_weight"`
	VerificationWeight  float64 `yaml:"verification_weight"`
	MutationWeight      float64 `yaml:"mutation_weight"`
}

// TimelineConfig controls the timeline stores
type TimelineConfig struct {
	// Window is how many newest snapshots an analysis reads
	Window int `yaml:"window"`

	// MovingAvgWindow is the simple moving average span
	MovingAvgWindow int `yaml:"moving_avg_window"`

	// EMAAlpha is the exponential moving average smoothing factor
	EMAAlpha float64 `yaml:"ema_alpha"`
}

// AlertConfig holds the alert engine thresholds
type AlertConfig struct {
	EntropySpikeThreshold      float64 `yaml:"entropy_spike_threshold"`
	EntropySpikeCritical       float64 `yaml:"entropy_spike_critical"`
	ConfidenceCollapseRate     float64 `yaml:"confidence_collapse_rate"`
	ConfidenceSurgeRate        float64 `yaml:"confidence_surge_rate"`
	DriftAccelerationThreshold float64 `yaml:"drift_acceleration_threshold"`
	TensionThreshold           float64 `yaml:"tension_threshold"`
	TensionCritical            float64 `yaml:"tension_critical"`
}

// WorkerConfig controls batch analysis concurrency
type WorkerConfig struct {
	// PoolSize is the number of concurrent analysis workers
	PoolSize int `yaml:"pool_size"`

	// WritesPerSecond throttles timeline appends per series
	WritesPerSecond float64 `yaml:"writes_per_second"`

	// WriteBurst is the per-series write burst allowance
	WriteBurst int `yaml:"write_burst"`
}

// CacheConfig controls the in-process graph read cache
type CacheConfig struct {
	// Enabled toggles the read-through cache
	Enabled bool `yaml:"enabled"`

	// TTLSeconds is how long a cached node stays fresh
	TTLSeconds int `yaml:"ttl_seconds"`

	// CleanupSeconds is the expired-entry sweep interval
	CleanupSeconds int `yaml:"cleanup_seconds"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "memory",
		},
		Scorer: ScorerConfig{
			PriorWeight:         0.15,
			SourceWeight:        0.25,
			CitationWeight:      0.20,
			ContradictionWeight: 0.15,
			VerificationWeight:  0.15,
			MutationWeight:      0.10,
		},
		Timeline: TimelineConfig{
			Window:          200,
			MovingAvgWindow: 5,
			EMAAlpha:        0.3,
		},
		Alerts: AlertConfig{
			EntropySpikeThreshold:      2.0,
			EntropySpikeCritical:       3.0,
			ConfidenceCollapseRate:     -0.05,
			ConfidenceSurgeRate:        0.05,
			DriftAccelerationThreshold: 0.005,
			TensionThreshold:           0.5,
			TensionCritical:            0.8,
		},
		Worker: WorkerConfig{
			PoolSize:        4,
			WritesPerSecond: 50,
			WriteBurst:      10,
		},
		Cache: CacheConfig{
			Enabled:        true,
			TTLSeconds:     300,
			CleanupSeconds: 600,
		},
	}
}
