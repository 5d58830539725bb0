package models

import (
	"fmt"
	"time"
)

// RagConfig is a named, versioned parameter preset. Exactly one preset is
// flagged as default at any time; the engine reads the active preset once
// per invocation and treats it as an immutable snapshot.
type RagConfig struct {
	ID        string       `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	IsDefault bool         `json:"is_default" db:"is_default"`
	Config    ConfigGroups `json:"config" db:"config"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// ConfigGroups holds the three required parameter groups.
type ConfigGroups struct {
	Retrieval     RetrievalConfig     `json:"retrieval" yaml:"retrieval"`
	Consolidation ConsolidationConfig `json:"consolidation" yaml:"consolidation"`
	Augmentation  AugmentationConfig  `json:"augmentation" yaml:"augmentation"`
}

// RetrievalConfig controls hybrid search, fusion, reranking, and MMR.
type RetrievalConfig struct {
	DenseLimit        int     `json:"dense_limit" yaml:"dense_limit"`
	LexicalLimit      int     `json:"lexical_limit" yaml:"lexical_limit"`
	RRFK              int     `json:"rrf_k" yaml:"rrf_k"`
	TopKRRF           int     `json:"top_k_rrf" yaml:"top_k_rrf"`
	TopNFinal         int     `json:"top_n_final" yaml:"top_n_final"`
	EntityBoost       float64 `json:"entity_boost" yaml:"entity_boost"`
	MinWordCount      int     `json:"min_word_count" yaml:"min_word_count"`
	MinCharCount      int     `json:"min_char_count" yaml:"min_char_count"`
	MMRLambda         float64 `json:"mmr_lambda" yaml:"mmr_lambda"`
	RerankerBatchSize int     `json:"reranker_batch_size" yaml:"reranker_batch_size"`
	RerankerMaxLength int     `json:"reranker_max_length" yaml:"reranker_max_length"`
}

// ConsolidationConfig controls merging of adjacent retrieved chunks.
type ConsolidationConfig struct {
	CoverageThreshold float64 `json:"coverage_threshold" yaml:"coverage_threshold"`
	LineGap           int     `json:"line_gap" yaml:"line_gap"`
	MinContentLength  int     `json:"min_content_length" yaml:"min_content_length"`
	EnrichFromMD      bool    `json:"enrich_from_md" yaml:"enrich_from_md"`
	EnrichLinesAbove  int     `json:"enrich_lines_above" yaml:"enrich_lines_above"`
	EnrichLinesBelow  int     `json:"enrich_lines_below" yaml:"enrich_lines_below"`
}

// AugmentationConfig controls prompt assembly.
type AugmentationConfig struct {
	TopNContexts int `json:"top_n_contexts" yaml:"top_n_contexts"`
}

// ConfigValidationError reports a parameter outside its documented bounds.
// Configs with any out-of-bounds value are rejected atomically; values are
// never silently clamped.
type ConfigValidationError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config field %s = %g outside bounds [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

// bound checks v against [min, max] and returns a typed error on violation.
func bound(field string, v, min, max float64) error {
	if v < min || v > max {
		return &ConfigValidationError{Field: field, Value: v, Min: min, Max: max}
	}
	return nil
}

// Validate checks every parameter against its documented bounds. The first
// violation is returned as a *ConfigValidationError.
func (g *ConfigGroups) Validate() error {
	r := g.Retrieval
	checks := []error{
		bound("retrieval.dense_limit", float64(r.DenseLimit), 0, 500),
		bound("retrieval.lexical_limit", float64(r.LexicalLimit), 0, 500),
		bound("retrieval.rrf_k", float64(r.RRFK), 1, 1000),
		bound("retrieval.top_k_rrf", float64(r.TopKRRF), 1, 500),
		bound("retrieval.top_n_final", float64(r.TopNFinal), 1, 100),
		bound("retrieval.entity_boost", r.EntityBoost, 0, 10),
		bound("retrieval.min_word_count", float64(r.MinWordCount), 0, 1000),
		bound("retrieval.min_char_count", float64(r.MinCharCount), 0, 10000),
		bound("retrieval.mmr_lambda", r.MMRLambda, 0, 1),
		bound("retrieval.reranker_batch_size", float64(r.RerankerBatchSize), 1, 256),
		bound("retrieval.reranker_max_length", float64(r.RerankerMaxLength), 16, 8192),
	}
	c := g.Consolidation
	checks = append(checks,
		bound("consolidation.coverage_threshold", c.CoverageThreshold, 0, 1),
		bound("consolidation.line_gap", float64(c.LineGap), 0, 10000),
		bound("consolidation.min_content_length", float64(c.MinContentLength), 0, 100000),
		bound("consolidation.enrich_lines_above", float64(c.EnrichLinesAbove), 0, 200),
		bound("consolidation.enrich_lines_below", float64(c.EnrichLinesBelow), 0, 200),
		bound("augmentation.top_n_contexts", float64(g.Augmentation.TopNContexts), 1, 100),
	)
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// DefaultConfigGroups returns the built-in parameter preset.
func DefaultConfigGroups() ConfigGroups {
	return ConfigGroups{
		Retrieval: RetrievalConfig{
			DenseLimit:        50,
			LexicalLimit:      50,
			RRFK:              60,
			TopKRRF:           30,
			TopNFinal:         10,
			EntityBoost:       0.05,
			MinWordCount:      5,
			MinCharCount:      20,
			MMRLambda:         0.7,
			RerankerBatchSize: 16,
			RerankerMaxLength: 512,
		},
		Consolidation: ConsolidationConfig{
			CoverageThreshold: 0.5,
			LineGap:           5,
			MinContentLength:  80,
			EnrichFromMD:      true,
			EnrichLinesAbove:  2,
			EnrichLinesBelow:  2,
		},
		Augmentation: AugmentationConfig{
			TopNContexts: 8,
		},
	}
}
