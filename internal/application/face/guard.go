package face

import (
	"context"
	"log/slog"
	"sync"

	"github.com/securevote-api/internal/domain"
)

type enrolledScanner interface {
	EachEnrolled(ctx context.Context, fn func(domain.EnrolledVoter) error) error
}

// Guard rejects a new embedding that matches any enrolled voter.
//
// Check and the subsequent enrollment must run under Lock so two concurrent
// registrations of the same face in this process cannot both pass. Separate
// processes can still race; the window is one scan plus one write.
type Guard struct {
	store   enrolledScanner
	matcher Matcher
	mu      sync.Mutex
}

func NewGuard(store enrolledScanner, matcher Matcher) *Guard {
	return &Guard{store: store, matcher: matcher}
}

// Lock serialises check-then-enroll. The returned func releases it.
func (g *Guard) Lock() func() {
	g.mu.Lock()
	return g.mu.Unlock
}

// Check scans every enrolled embedding and returns a *domain.DuplicateFaceError
// naming the closest voter when the minimum distance is within the threshold.
// On ties the first voter seen wins.
func (g *Guard) Check(ctx context.Context, embedding []float64) error {
	best := noMatch
	bestID := ""
	err := g.store.EachEnrolled(ctx, func(v domain.EnrolledVoter) error {
		if d := Distance(embedding, v.FaceEmbedding); d < best {
			best, bestID = d, v.VoterID
		}
		return nil
	})
	if err != nil {
		return err
	}
	if bestID != "" && best <= g.matcher.Threshold {
		slog.Warn("duplicate face rejected", "matched_voter_id", bestID, "distance", best)
		return &domain.DuplicateFaceError{MatchedVoterID: bestID, Distance: best}
	}
	return nil
}

// noMatch is above any reachable distance.
const noMatch = 999.0
