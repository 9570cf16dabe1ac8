package search

// normalizeScores normalizes scores to [0, 1] range.
func normalizeScores(results []Hit) []Hit {
	if len(results) == 0 {
		return results
	}

	minScore := results[0].Score
	maxScore := results[0].Score

	for _, result := range results {
		if result.Score < minScore {
			minScore = result.Score
		}
		if result.Score > maxScore {
			maxScore = result.Score
		}
	}

	// Avoid division by zero - when all scores are equal, set all to 1.0
	if maxScore == minScore {
		normalized := make([]Hit, len(results))
		for i, result := range results {
			normalized[i] = result
			normalized[i].Score = 1.0
		}
		return normalized
	}

	normalized := make([]Hit, len(results))
	for i, result := range results {
		normalized[i] = result
		normalized[i].Score = (result.Score - minScore) / (maxScore - minScore)
	}

	return normalized
}
