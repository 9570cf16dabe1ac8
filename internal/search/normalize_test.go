package search

import (
	"math"
	"testing"
)

func TestNormalizeScores_Empty(t *testing.T) {
	results := []Hit{}
	normalized := normalizeScores(results)

	if len(normalized) != 0 {
		t.Errorf("expected empty result, got %d items", len(normalized))
	}
}

func TestNormalizeScores_Single(t *testing.T) {
	results := []Hit{
		{EntityID: "event_a", Score: 0.5},
	}
	normalized := normalizeScores(results)

	if len(normalized) != 1 {
		t.Fatalf("expected 1 result, got %d", len(normalized))
	}

	// Single result should have score 1.0 (all scores are min=max)
	if normalized[0].Score != 1.0 {
		t.Errorf("expected score 1.0 for single result, got %f", normalized[0].Score)
	}
}

func TestNormalizeScores_Multiple(t *testing.T) {
	results := []Hit{
		{EntityID: "event_a", Score: 0.0},
		{EntityID: "event_b", Score: 0.5},
		{EntityID: "event_c", Score: 1.0},
	}
	normalized := normalizeScores(results)

	if len(normalized) != 3 {
		t.Fatalf("expected 3 results, got %d", len(normalized))
	}

	// Check normalization
	// min=0.0, max=1.0, range=1.0
	// 0.0 -> (0.0-0.0)/1.0 = 0.0
	// 0.5 -> (0.5-0.0)/1.0 = 0.5
	// 1.0 -> (1.0-0.0)/1.0 = 1.0

	if math.Abs(normalized[0].Score-0.0) > 0.001 {
		t.Errorf("expected score 0.0, got %f", normalized[0].Score)
	}

	if math.Abs(normalized[1].Score-0.5) > 0.001 {
		t.Errorf("expected score 0.5, got %f", normalized[1].Score)
	}

	if math.Abs(normalized[2].Score-1.0) > 0.001 {
		t.Errorf("expected score 1.0, got %f", normalized[2].Score)
	}
}

func TestNormalizeScores_AlreadyNormalized(t *testing.T) {
	results := []Hit{
		{EntityID: "event_a", Score: 0.0},
		{EntityID: "event_b", Score: 0.5},
		{EntityID: "event_c", Score: 1.0},
	}
	normalized := normalizeScores(results)

	// Should not change already normalized scores
	if normalized[0].Score != results[0].Score {
		t.Errorf("score changed: %f -> %f", results[0].Score, normalized[0].Score)
	}
}

func TestNormalizeScores_Negative(t *testing.T) {
	results := []Hit{
		{EntityID: "event_a", Score: -1.0},
		{EntityID: "event_b", Score: 0.0},
		{EntityID: "event_c", Score: 1.0},
	}
	normalized := normalizeScores(results)

	// min=-1.0, max=1.0, range=2.0
	// -1.0 -> (-1.0-(-1.0))/2.0 = 0.0
	// 0.0 -> (0.0-(-1.0))/2.0 = 0.5
	// 1.0 -> (1.0-(-1.0))/2.0 = 1.0

	if math.Abs(normalized[0].Score-0.0) > 0.001 {
		t.Errorf("expected score 0.0, got %f", normalized[0].Score)
	}

	if math.Abs(normalized[1].Score-0.5) > 0.001 {
		t.Errorf("expected score 0.5, got %f", normalized[1].Score)
	}

	if math.Abs(normalized[2].Score-1.0) > 0.001 {
		t.Errorf("expected score 1.0, got %f", normalized[2].Score)
	}
}
