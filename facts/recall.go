package facts

import (
	"context"
	"sort"

	"factmem/embed"
)

// SearchFacts ranks the user's active facts against a free-text query by
// embedding similarity. Lenient: no backend or no facts yields an empty
// result, not an error.
func (s *Store) SearchFacts(ctx context.Context, userID, query string, limit int) ([]Fact, error) {
	repos := s.reposFor()
	if repos == nil || userID == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.Config.RecallLimit
	}

	// Over-fetch so ranking has something to choose from.
	fetchLimit := limit * 10
	if fetchLimit < limit {
		fetchLimit = limit
	}
	rows, err := repos.Entities().ListActiveByUser(ctx, userID, fetchLimit)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]Fact, 0, len(rows))
	for _, rec := range rows {
		score := 0.0
		if len(rec.Embedding) > 0 {
			score = embed.CosineSimilarity(queryVec, embed.Decode(rec.Embedding))
		}
		out = append(out, Fact{
			EntityType: rec.EntityType,
			Subtype:    rec.EntitySubtype,
			Content:    rec.CanonicalName,
			Score:      score,
			UpdatedAt:  rec.DateUpdated,
		})
	}

	// Score descending, most recently updated first on ties.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
