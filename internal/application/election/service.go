package election

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/securevote-api/internal/domain"
	"github.com/securevote-api/internal/pkg/id"
)

// localLayout is the datetime-local form format; such values are read in the
// configured election timezone.
const localLayout = "2006-01-02T15:04"

type Service interface {
	Create(ctx context.Context, req domain.CreateElectionRequest) (*domain.ElectionDetail, error)
	Get(ctx context.Context, electionID string) (*domain.Election, error)
	List(ctx context.Context) ([]domain.Election, error)
	ListActive(ctx context.Context) ([]domain.Election, error)
	Toggle(ctx context.Context, electionID string) (*domain.Election, error)
	// Detail is the voter's view of one election; voterID may be empty.
	Detail(ctx context.Context, electionID, voterID string) (*domain.ElectionDetail, error)
	Results(ctx context.Context, electionID string) (*domain.ElectionResults, error)
}

type electionStore interface {
	Create(ctx context.Context, e *domain.Election, candidates []domain.Candidate) error
	Get(ctx context.Context, electionID string) (*domain.Election, error)
	List(ctx context.Context) ([]domain.Election, error)
	SetActive(ctx context.Context, electionID string, active bool) error
	Candidates(ctx context.Context, electionID string) ([]domain.Candidate, error)
}

type ballotStore interface {
	Exists(ctx context.Context, electionID, voterID string) (bool, error)
	Tally(ctx context.Context, electionID string) (map[string]int, error)
}

type voterCounter interface {
	CountEligible(ctx context.Context) (int, error)
}

type ServiceDeps struct {
	Elections electionStore
	Ballots   ballotStore
	Voters    voterCounter
	Location  *time.Location
	Now       func() time.Time
}

type service struct {
	elections electionStore
	ballots   ballotStore
	voters    voterCounter
	loc       *time.Location
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		elections: deps.Elections,
		ballots:   deps.Ballots,
		voters:    deps.Voters,
		loc:       deps.Location,
		now:       deps.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *service) Create(ctx context.Context, req domain.CreateElectionRequest) (*domain.ElectionDetail, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("title required: %w", domain.ErrBadRequest)
	}
	start, err := ParseTime(req.StartAt, s.loc)
	if err != nil {
		return nil, err
	}
	end, err := ParseTime(req.EndAt, s.loc)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end_at must be after start_at: %w", domain.ErrBadRequest)
	}
	names := CandidateNames(req.Candidates)
	if len(names) < 2 {
		return nil, fmt.Errorf("add at least 2 candidates: %w", domain.ErrBadRequest)
	}

	e := &domain.Election{
		ElectionID: id.New(),
		Title:      title,
		StartAt:    start,
		EndAt:      end,
		IsActive:   true,
		CreatedAt:  s.now(),
	}
	candidates := make([]domain.Candidate, len(names))
	for i, n := range names {
		candidates[i] = domain.Candidate{CandidateID: id.New(), ElectionID: e.ElectionID, Name: n}
	}
	if err := s.elections.Create(ctx, e, candidates); err != nil {
		return nil, err
	}
	slog.Info("election created", "election_id", e.ElectionID, "candidates", len(candidates))
	return &domain.ElectionDetail{Election: e, Candidates: candidates}, nil
}

func (s *service) Get(ctx context.Context, electionID string) (*domain.Election, error) {
	return s.elections.Get(ctx, electionID)
}

func (s *service) List(ctx context.Context) ([]domain.Election, error) {
	return s.elections.List(ctx)
}

// ListActive returns elections open for voting right now.
func (s *service) ListActive(ctx context.Context) ([]domain.Election, error) {
	all, err := s.elections.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := make([]domain.Election, 0, len(all))
	for i := range all {
		if all[i].OpenAt(now) {
			active = append(active, all[i])
		}
	}
	return active, nil
}

func (s *service) Toggle(ctx context.Context, electionID string) (*domain.Election, error) {
	e, err := s.elections.Get(ctx, electionID)
	if err != nil {
		return nil, err
	}
	e.IsActive = !e.IsActive
	if err := s.elections.SetActive(ctx, electionID, e.IsActive); err != nil {
		return nil, err
	}
	slog.Info("election toggled", "election_id", electionID, "is_active", e.IsActive)
	return e, nil
}

func (s *service) Detail(ctx context.Context, electionID, voterID string) (*domain.ElectionDetail, error) {
	e, err := s.elections.Get(ctx, electionID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.elections.Candidates(ctx, electionID)
	if err != nil {
		return nil, err
	}
	d := &domain.ElectionDetail{Election: e, Candidates: candidates}
	if voterID != "" {
		if d.HasVoted, err = s.ballots.Exists(ctx, electionID, voterID); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Results tallies every candidate, zero-vote ones included, ordered by votes
// descending then name ascending. The first row is the winner.
func (s *service) Results(ctx context.Context, electionID string) (*domain.ElectionResults, error) {
	e, err := s.elections.Get(ctx, electionID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.elections.Candidates(ctx, electionID)
	if err != nil {
		return nil, err
	}
	counts, err := s.ballots.Tally(ctx, electionID)
	if err != nil {
		return nil, err
	}
	eligible, err := s.voters.CountEligible(ctx)
	if err != nil {
		return nil, err
	}
	return Tabulate(e, candidates, counts, eligible), nil
}

// Tabulate builds results from raw per-candidate counts.
func Tabulate(e *domain.Election, candidates []domain.Candidate, counts map[string]int, eligible int) *domain.ElectionResults {
	res := &domain.ElectionResults{Election: e, EligibleTotal: eligible, Rows: make([]domain.CandidateTally, 0, len(candidates))}
	for _, c := range candidates {
		res.Rows = append(res.Rows, domain.CandidateTally{CandidateID: c.CandidateID, Name: c.Name, Votes: counts[c.CandidateID]})
	}
	for _, n := range counts {
		res.TotalVotes += n
	}
	sort.SliceStable(res.Rows, func(i, j int) bool {
		if res.Rows[i].Votes != res.Rows[j].Votes {
			return res.Rows[i].Votes > res.Rows[j].Votes
		}
		return res.Rows[i].Name < res.Rows[j].Name
	})
	if len(res.Rows) > 0 {
		w := res.Rows[0]
		res.Winner = &w
	}
	if eligible > 0 {
		res.Turnout = float64(res.TotalVotes) / float64(eligible) * 100
	}
	return res
}

// ParseTime accepts RFC3339 or a zone-less "YYYY-MM-DDTHH:MM" read in loc.
func ParseTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{localLayout, "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: %w", v, domain.ErrBadRequest)
}

// CandidateNames trims each entry, splits multi-line entries one name per line
// and drops blanks.
func CandidateNames(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, line := range strings.Split(entry, "\n") {
			if n := strings.TrimSpace(line); n != "" {
				out = append(out, n)
			}
		}
	}
	return out
}
