package cli

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ndanilov/claimwatch/internal/alert"
	"github.com/ndanilov/claimwatch/internal/cache"
	"github.com/ndanilov/claimwatch/internal/citation"
	"github.com/ndanilov/claimwatch/internal/contradiction"
	"github.com/ndanilov/claimwatch/internal/entropy"
	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/kinematics"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/pipeline"
	"github.com/ndanilov/claimwatch/internal/propagation"
	"github.com/ndanilov/claimwatch/internal/score"
	"github.com/ndanilov/claimwatch/internal/stability"
	"github.com/ndanilov/claimwatch/internal/store"
	"github.com/ndanilov/claimwatch/internal/timeline"
)

// app holds the assembled engine stack behind every subcommand
type app struct {
	cfg           *model.Config
	store         store.Store
	graph         *graph.Engine
	scorer        *score.Scorer
	confidence    *timeline.Confidence
	entropy       *timeline.Entropy
	kinematics    *kinematics.Engine
	stability     *stability.Engine
	contradiction *contradiction.Analyzer
	citation      *citation.Analyzer
	propagation   *propagation.Tracker
	alerts        *alert.Engine
	pipeline      *pipeline.Pipeline
}

// loadConfig layers viper values over the built-in defaults
func loadConfig() *model.Config {
	cfg := model.DefaultConfig()

	if viper.IsSet("storage.backend") {
		cfg.Storage.Backend = viper.GetString("storage.backend")
	}
	if viper.IsSet("storage.dsn") {
		cfg.Storage.DSN = viper.GetString("storage.dsn")
	}

	if viper.IsSet("scorer.prior_weight") {
		cfg.Scorer.PriorWeight = viper.GetFloat64("scorer.prior_weight")
	}
	if viper.IsSet("scorer.source_weight") {
		cfg.Scorer.SourceWeight = viper.GetFloat64("scorer.source_weight")
	}
	if viper.IsSet("scorer.citation_weight") {
		cfg.Scorer.CitationWeight = viper.GetFloat64("scorer.citation_weight")
	}
	if viper.IsSet("scorer.contradiction_weight") {
		cfg.Scorer.ContradictionWeight = viper.GetFloat64("scorer.contradiction_weight")
	}
	if viper.IsSet("scorer.verification_weight") {
		cfg.Scorer.VerificationWeight = viper.GetFloat64("scorer.verification_weight")
	}
	if viper.IsSet("scorer.mutation_weight") {
		cfg.Scorer.MutationWeight = viper.GetFloat64("scorer.mutation_weight")
	}

	if viper.IsSet("timeline.window") {
		cfg.Timeline.Window = viper.GetInt("timeline.window")
	}
	if viper.IsSet("timeline.moving_avg_window") {
		cfg.Timeline.MovingAvgWindow = viper.GetInt("timeline.moving_avg_window")
	}
	if viper.IsSet("timeline.ema_alpha") {
		cfg.Timeline.EMAAlpha = viper.GetFloat64("timeline.ema_alpha")
	}

	if viper.IsSet("alerts.entropy_spike_threshold") {
		cfg.Alerts.EntropySpikeThreshold = viper.GetFloat64("alerts.entropy_spike_threshold")
	}
	if viper.IsSet("alerts.entropy_spike_critical") {
		cfg.Alerts.EntropySpikeCritical = viper.GetFloat64("alerts.entropy_spike_critical")
	}
	if viper.IsSet("alerts.confidence_collapse_rate") {
		cfg.Alerts.ConfidenceCollapseRate = viper.GetFloat64("alerts.confidence_collapse_rate")
	}
	if viper.IsSet("alerts.confidence_surge_rate") {
		cfg.Alerts.ConfidenceSurgeRate = viper.GetFloat64("alerts.confidence_surge_rate")
	}
	if viper.IsSet("alerts.drift_acceleration_threshold") {
		cfg.Alerts.DriftAccelerationThreshold = viper.GetFloat64("alerts.drift_acceleration_threshold")
	}
	if viper.IsSet("alerts.tension_threshold") {
		cfg.Alerts.TensionThreshold = viper.GetFloat64("alerts.tension_threshold")
	}
	if viper.IsSet("alerts.tension_critical") {
		cfg.Alerts.TensionCritical = viper.GetFloat64("alerts.tension_critical")
	}

	if viper.IsSet("worker.pool_size") {
		cfg.Worker.PoolSize = viper.GetInt("worker.pool_size")
	}
	if viper.IsSet("worker.writes_per_second") {
		cfg.Worker.WritesPerSecond = viper.GetFloat64("worker.writes_per_second")
	}
	if viper.IsSet("worker.write_burst") {
		cfg.Worker.WriteBurst = viper.GetInt("worker.write_burst")
	}

	if viper.IsSet("cache.enabled") {
		cfg.Cache.Enabled = viper.GetBool("cache.enabled")
	}
	if viper.IsSet("cache.ttl_seconds") {
		cfg.Cache.TTLSeconds = viper.GetInt("cache.ttl_seconds")
	}
	if viper.IsSet("cache.cleanup_seconds") {
		cfg.Cache.CleanupSeconds = viper.GetInt("cache.cleanup_seconds")
	}

	return cfg
}

// buildApp opens the configured backend and wires the full engine stack
func buildApp() (*app, error) {
	cfg := loadConfig()

	var st store.Store
	switch cfg.Storage.Backend {
	case "", "memory":
		st = store.NewMemory()
	case "mysql":
		db, err := store.OpenMySQL(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		st = db
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	var opts []graph.Option
	if cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		cleanup := time.Duration(cfg.Cache.CleanupSeconds) * time.Second
		opts = append(opts, graph.WithCache(cache.NewMemoryCache(ttl, cleanup), ttl))
	}
	g := graph.New(st, st, opts...)

	scorer := score.New(g, st, cfg.Scorer, nil)
	conf := timeline.NewConfidence(g, scorer, st, cfg.Timeline, nil)
	entTL := timeline.NewEntropy(g, entropy.New(g, nil), st, cfg.Timeline, nil)
	kin := kinematics.New(g, entTL, nil)
	stab := stability.New(g, conf, entTL, kin, st, nil)
	contra := contradiction.New(g, st, nil)
	cit := citation.New(g, nil)
	prop := propagation.New(g, st, nil)
	alerts := alert.New(g, conf, entTL, kin, contra, stab, st, cfg.Alerts, nil)
	pipe := pipeline.New(g, conf, entTL, stab, alerts, cfg.Worker, nil)

	return &app{
		cfg:           cfg,
		store:         st,
		graph:         g,
		scorer:        scorer,
		confidence:    conf,
		entropy:       entTL,
		kinematics:    kin,
		stability:     stab,
		contradiction: contra,
		citation:      cit,
		propagation:   prop,
		alerts:        alerts,
		pipeline:      pipe,
	}, nil
}

// close releases the app's backend
func (a *app) close() {
	_ = a.store.Close()
}
