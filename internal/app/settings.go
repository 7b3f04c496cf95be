package service

import (
	"fmt"

	"github.com/okian/fantasylive/internal/config"
	"github.com/okian/fantasylive/internal/domain/scoring"
)

const maxWorkers = 256

// Settings are the engine parameters that can change at runtime.
type Settings struct {
	UpdateHz      int              `json:"updateHz"`
	WorkerCount   int              `json:"workerCount"`
	CacheStrategy string           `json:"cacheStrategy"`
	Features      scoring.Features `json:"features"`
	BaselineBlend bool             `json:"baselineBlend"`
}

// ConfigPatch changes a subset of Settings. Nil fields are left alone.
type ConfigPatch struct {
	UpdateHz          *int    `json:"updateHz,omitempty"`
	WorkerCount       *int    `json:"workerCount,omitempty"`
	CacheStrategy     *string `json:"cacheStrategy,omitempty"`
	FeatureWeather    *bool   `json:"featureWeather,omitempty"`
	FeatureSentiment  *bool   `json:"featureSentiment,omitempty"`
	FeaturePredictive *bool   `json:"featurePredictive,omitempty"`
	BaselineBlend     *bool   `json:"baselineBlend,omitempty"`
}

func settingsFrom(cfg *config.Config) Settings {
	return Settings{
		UpdateHz:      cfg.UpdateHz,
		WorkerCount:   cfg.WorkerCount,
		CacheStrategy: cfg.CacheStrategy,
		Features: scoring.Features{
			Weather:    cfg.FeatureWeather,
			Sentiment:  cfg.FeatureSentiment,
			Predictive: cfg.FeaturePredictive,
		},
		BaselineBlend: cfg.BaselineBlend,
	}
}

// apply returns s with p applied, or an error if the result is invalid.
func (p ConfigPatch) apply(s Settings) (Settings, error) {
	if p.UpdateHz != nil {
		if *p.UpdateHz <= 0 || *p.UpdateHz > 1000 {
			return s, fmt.Errorf("%w: updateHz must be in 1..1000, got %d", ErrInvalidPatch, *p.UpdateHz)
		}
		s.UpdateHz = *p.UpdateHz
	}
	if p.WorkerCount != nil {
		if *p.WorkerCount <= 0 || *p.WorkerCount > maxWorkers {
			return s, fmt.Errorf("%w: workerCount must be in 1..%d, got %d", ErrInvalidPatch, maxWorkers, *p.WorkerCount)
		}
		s.WorkerCount = *p.WorkerCount
	}
	if p.CacheStrategy != nil {
		if _, err := config.Retention(*p.CacheStrategy); err != nil {
			return s, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
		}
		s.CacheStrategy = *p.CacheStrategy
	}
	if p.FeatureWeather != nil {
		s.Features.Weather = *p.FeatureWeather
	}
	if p.FeatureSentiment != nil {
		s.Features.Sentiment = *p.FeatureSentiment
	}
	if p.FeaturePredictive != nil {
		s.Features.Predictive = *p.FeaturePredictive
	}
	if p.BaselineBlend != nil {
		s.BaselineBlend = *p.BaselineBlend
	}
	return s, nil
}

func (s Settings) calculator() *scoring.Calculator {
	return scoring.NewCalculator(
		scoring.WithFeatures(s.Features),
		scoring.WithBaselineBlend(s.BaselineBlend),
	)
}
