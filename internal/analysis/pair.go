package analysis

import (
	"sort"
	"strings"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

// Pair joins the given and received streams into counterpart-keyed pairs.
//
// The map is seeded from the given stream first, preserving encounter order,
// then the received stream either completes an existing entry or inserts a
// received-only one. When a counterpart appears more than once in a stream
// only the first record is matched; later duplicates are dropped. Keys are
// matched exactly, with no case normalization.
//
// Output ordering: reciprocal pairs first, then one-way pairs, with a
// secondary case-insensitive sort by counterpart display name. No two pairs
// share a counterpart key.
func Pair(given, received []model.ActivityRecord) []model.ReviewPair {
	index := make(map[string]int, len(given))
	pairs := make([]model.ReviewPair, 0, len(given)+len(received))

	for i := range given {
		g := given[i]
		if g.CounterpartKey == "" {
			continue
		}
		if _, seen := index[g.CounterpartKey]; seen {
			continue // first match wins
		}
		index[g.CounterpartKey] = len(pairs)
		pairs = append(pairs, model.ReviewPair{
			CounterpartKey:    g.CounterpartKey,
			CounterpartName:   g.CounterpartName,
			CounterpartAvatar: g.CounterpartAvatar,
			Given:             &given[i],
		})
	}

	for i := range received {
		r := received[i]
		if r.CounterpartKey == "" {
			continue
		}
		if at, seen := index[r.CounterpartKey]; seen {
			if pairs[at].Received == nil {
				pairs[at].Received = &received[i]
				if pairs[at].CounterpartName == "" {
					pairs[at].CounterpartName = r.CounterpartName
				}
				if pairs[at].CounterpartAvatar == "" {
					pairs[at].CounterpartAvatar = r.CounterpartAvatar
				}
			}
			continue
		}
		index[r.CounterpartKey] = len(pairs)
		pairs = append(pairs, model.ReviewPair{
			CounterpartKey:    r.CounterpartKey,
			CounterpartName:   r.CounterpartName,
			CounterpartAvatar: r.CounterpartAvatar,
			Received:          &received[i],
		})
	}

	for i := range pairs {
		pairs[i].Reciprocal = isReciprocal(pairs[i])
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Reciprocal != pairs[j].Reciprocal {
			return pairs[i].Reciprocal
		}
		ni := strings.ToLower(pairs[i].CounterpartName)
		nj := strings.ToLower(pairs[j].CounterpartName)
		if ni != nj {
			return ni < nj
		}
		return pairs[i].CounterpartKey < pairs[j].CounterpartKey
	})

	return pairs
}

// isReciprocal requires both sides present and both ratings positive.
// Negative-for-negative exchanges are deliberately not reciprocal.
func isReciprocal(p model.ReviewPair) bool {
	return p.Given != nil && p.Received != nil &&
		p.Given.Rating == model.RatingPositive &&
		p.Received.Rating == model.RatingPositive
}
