package models

import (
	"errors"
	"testing"
)

func TestConfigGroups_ValidateDefaults(t *testing.T) {
	cfg := DefaultConfigGroups()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestConfigGroups_ValidateBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConfigGroups)
		field  string
	}{
		{"dense limit too high", func(c *ConfigGroups) { c.Retrieval.DenseLimit = 501 }, "retrieval.dense_limit"},
		{"dense limit negative", func(c *ConfigGroups) { c.Retrieval.DenseLimit = -1 }, "retrieval.dense_limit"},
		{"lexical limit too high", func(c *ConfigGroups) { c.Retrieval.LexicalLimit = 501 }, "retrieval.lexical_limit"},
		{"rrf_k zero", func(c *ConfigGroups) { c.Retrieval.RRFK = 0 }, "retrieval.rrf_k"},
		{"rrf_k too high", func(c *ConfigGroups) { c.Retrieval.RRFK = 1001 }, "retrieval.rrf_k"},
		{"top_k_rrf zero", func(c *ConfigGroups) { c.Retrieval.TopKRRF = 0 }, "retrieval.top_k_rrf"},
		{"top_n_final too high", func(c *ConfigGroups) { c.Retrieval.TopNFinal = 101 }, "retrieval.top_n_final"},
		{"entity boost negative", func(c *ConfigGroups) { c.Retrieval.EntityBoost = -0.1 }, "retrieval.entity_boost"},
		{"entity boost too high", func(c *ConfigGroups) { c.Retrieval.EntityBoost = 10.5 }, "retrieval.entity_boost"},
		{"mmr lambda above one", func(c *ConfigGroups) { c.Retrieval.MMRLambda = 1.1 }, "retrieval.mmr_lambda"},
		{"reranker batch zero", func(c *ConfigGroups) { c.Retrieval.RerankerBatchSize = 0 }, "retrieval.reranker_batch_size"},
		{"reranker max length too small", func(c *ConfigGroups) { c.Retrieval.RerankerMaxLength = 8 }, "retrieval.reranker_max_length"},
		{"coverage above one", func(c *ConfigGroups) { c.Consolidation.CoverageThreshold = 1.5 }, "consolidation.coverage_threshold"},
		{"line gap negative", func(c *ConfigGroups) { c.Consolidation.LineGap = -1 }, "consolidation.line_gap"},
		{"enrich lines too high", func(c *ConfigGroups) { c.Consolidation.EnrichLinesAbove = 201 }, "consolidation.enrich_lines_above"},
		{"top_n_contexts zero", func(c *ConfigGroups) { c.Augmentation.TopNContexts = 0 }, "augmentation.top_n_contexts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfigGroups()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var vErr *ConfigValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ConfigValidationError, got %T", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, vErr.Field)
			}
		})
	}
}

func TestConfigGroups_NoClamping(t *testing.T) {
	cfg := DefaultConfigGroups()
	cfg.Retrieval.DenseLimit = 9999
	_ = cfg.Validate()
	if cfg.Retrieval.DenseLimit != 9999 {
		t.Error("validation must not mutate values")
	}
}
