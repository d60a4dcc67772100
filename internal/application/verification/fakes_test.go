package verification

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/securevote-api/internal/application/face"
	"github.com/securevote-api/internal/application/otp"
	"github.com/securevote-api/internal/domain"
)

type memVoters struct {
	mu       sync.Mutex
	eligible map[string]*domain.EligibleVoter
	enrolled []domain.EnrolledVoter
}

func newMemVoters(eligible ...domain.EligibleVoter) *memVoters {
	m := &memVoters{eligible: map[string]*domain.EligibleVoter{}}
	for i := range eligible {
		v := eligible[i]
		m.eligible[v.VoterID] = &v
	}
	return m
}

func (m *memVoters) GetEligible(_ context.Context, id string) (*domain.EligibleVoter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.eligible[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memVoters) GetEnrolled(_ context.Context, id string) (*domain.EnrolledVoter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.enrolled {
		if v.VoterID == id {
			cp := v
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memVoters) Enroll(_ context.Context, id string, emb []float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.eligible[id]
	if !ok || v.IsRegistered {
		return domain.ErrAlreadyRegistered
	}
	for _, e := range m.enrolled {
		if e.VoterID == id {
			return domain.ErrAlreadyRegistered
		}
	}
	v.IsRegistered = true
	m.enrolled = append(m.enrolled, domain.EnrolledVoter{VoterID: id, FaceEmbedding: emb, RegisteredAt: at})
	return nil
}

func (m *memVoters) EachEnrolled(_ context.Context, fn func(domain.EnrolledVoter) error) error {
	m.mu.Lock()
	rows := append([]domain.EnrolledVoter(nil), m.enrolled...)
	m.mu.Unlock()
	for _, v := range rows {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// enrollDirect seeds an already-registered voter.
func (m *memVoters) enrollDirect(id string, emb []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.eligible[id]; ok {
		v.IsRegistered = true
	}
	m.enrolled = append(m.enrolled, domain.EnrolledVoter{VoterID: id, FaceEmbedding: emb})
}

type memElections map[string]*domain.Election

func (m memElections) Get(_ context.Context, id string) (*domain.Election, error) {
	e, ok := m[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

type memBallots struct{ cast map[string]bool }

func (m *memBallots) Exists(_ context.Context, electionID, voterID string) (bool, error) {
	return m.cast[electionID+"/"+voterID], nil
}

type memSessions struct {
	mu    sync.Mutex
	saved map[string]domain.Session
	puts  int
}

func (m *memSessions) Put(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]domain.Session{}
	}
	m.saved[s.SessionID] = *s
	m.puts++
	return nil
}

type memChallenges struct {
	mu   sync.Mutex
	rows map[string][]*domain.OtpChallenge
}

func (m *memChallenges) Append(_ context.Context, c *domain.OtpChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[string][]*domain.OtpChallenge{}
	}
	cp := *c
	m.rows[c.SubjectKey] = append(m.rows[c.SubjectKey], &cp)
	return nil
}

func (m *memChallenges) Latest(_ context.Context, key string) (*domain.OtpChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := append([]*domain.OtpChallenge(nil), m.rows[key]...)
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ChallengeID > rows[j].ChallengeID })
	cp := *rows[0]
	return &cp, nil
}

func (m *memChallenges) MarkConsumed(context.Context, string, string, time.Time) error { return nil }

func (m *memChallenges) RecordFailure(_ context.Context, key, challengeID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows[key] {
		if c.ChallengeID == challengeID {
			c.Attempts++
			return c.Attempts, nil
		}
	}
	return 0, domain.ErrNotFound
}

// inbox records the last code mailed to each address.
type inbox struct {
	mu   sync.Mutex
	last map[string]string
	fail error
}

func (b *inbox) SendEmail(to, _, body string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	if b.last == nil {
		b.last = map[string]string{}
	}
	// body starts with "Your SecureVote OTP is: NNNNNN"
	const prefix = "Your SecureVote OTP is: "
	b.last[to] = body[len(prefix) : len(prefix)+6]
	return nil
}

func (b *inbox) code(to string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last[to]
}

// imageEmbedder maps image bytes to fixed embeddings; unknown images have no face.
type imageEmbedder map[string][]float64

func (e imageEmbedder) Extract(_ context.Context, image []byte) ([]float64, error) {
	emb, ok := e[string(image)]
	if !ok {
		return nil, domain.ErrNoFaceDetected
	}
	return emb, nil
}

type recordingArchive struct{ keys []string }

func (a *recordingArchive) Archive(_ context.Context, voterID string, _ []byte, _ time.Time) (string, error) {
	a.keys = append(a.keys, voterID)
	return "s3://bucket/" + voterID, nil
}

// Embeddings used across tests. faceA vs faceA2 is ~0.005 apart, faceA vs faceHalf is 0.5.
var (
	faceA    = []float64{1, 0, 0}
	faceA2   = []float64{1, 0.1, 0}
	faceB    = []float64{0, 1, 0}
	faceHalf = []float64{0.5, math.Sqrt(0.75), 0}
)

type harness struct {
	svc       Service
	voters    *memVoters
	elections memElections
	ballots   *memBallots
	sessions  *memSessions
	mail      *inbox
	archive   *recordingArchive
	now       time.Time
}

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newHarness(eligible ...domain.EligibleVoter) *harness {
	h := &harness{
		voters:    newMemVoters(eligible...),
		elections: memElections{},
		ballots:   &memBallots{cast: map[string]bool{}},
		sessions:  &memSessions{},
		mail:      &inbox{},
		archive:   &recordingArchive{},
		now:       testNow,
	}
	clock := func() time.Time { return h.now }
	matcher := face.Matcher{Threshold: 0.35}
	h.svc = NewService(ServiceDeps{
		Voters:    h.voters,
		Elections: h.elections,
		Ballots:   h.ballots,
		Sessions:  h.sessions,
		Ledger: otp.NewLedger(otp.LedgerDeps{
			Store:  &memChallenges{},
			Mailer: h.mail,
			TTL:    5 * time.Minute,
			Now:    clock,
		}),
		Embedder: imageEmbedder{
			"imgA":    faceA,
			"imgA2":   faceA2,
			"imgB":    faceB,
			"imgHalf": faceHalf,
		},
		Guard:   face.NewGuard(h.voters, matcher),
		Matcher: matcher,
		Archive: h.archive,
		Now:     clock,
	})
	return h
}

func newSession() *domain.Session {
	return &domain.Session{SessionID: "sess-1", Role: domain.RoleVoter, Enable: true}
}
