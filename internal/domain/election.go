package domain

import "time"

type Election struct {
	ElectionID string    `json:"id" dynamodbav:"election_id"`
	Title      string    `json:"title" dynamodbav:"title"`
	StartAt    time.Time `json:"start_at" dynamodbav:"start_at"`
	EndAt      time.Time `json:"end_at" dynamodbav:"end_at"`
	IsActive   bool      `json:"is_active" dynamodbav:"is_active"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
}

// OpenAt reports whether ballots may be cast at now: the election is switched on
// and now lies inside [StartAt, EndAt].
func (e *Election) OpenAt(now time.Time) bool {
	return e.IsActive && !now.Before(e.StartAt) && !now.After(e.EndAt)
}

type Candidate struct {
	CandidateID string `json:"id" dynamodbav:"candidate_id"`
	ElectionID  string `json:"election_id" dynamodbav:"election_id"`
	Name        string `json:"name" dynamodbav:"name"`
}

// Ballot is unique per (ElectionID, VoterID); the table key enforces it.
type Ballot struct {
	ElectionID  string    `json:"election_id" dynamodbav:"election_id"`
	VoterID     string    `json:"voter_id" dynamodbav:"voter_id"`
	CandidateID string    `json:"candidate_id" dynamodbav:"candidate_id"`
	VotedAt     time.Time `json:"voted_at" dynamodbav:"voted_at"`
}

type CreateElectionRequest struct {
	Title      string   `json:"title" validate:"required"`
	StartAt    string   `json:"start_at" validate:"required"` // RFC3339 or YYYY-MM-DDTHH:MM
	EndAt      string   `json:"end_at" validate:"required"`
	Candidates []string `json:"candidates" validate:"required,min=1"` // one name per entry or per line
}

type ElectionDetail struct {
	Election   *Election   `json:"election"`
	Candidates []Candidate `json:"candidates"`
	HasVoted   bool        `json:"has_voted"`
}

type CandidateTally struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Votes       int    `json:"votes"`
}

type ElectionResults struct {
	Election      *Election        `json:"election"`
	Rows          []CandidateTally `json:"rows"`
	Winner        *CandidateTally  `json:"winner,omitempty"`
	TotalVotes    int              `json:"total_votes"`
	EligibleTotal int              `json:"eligible_total"`
	Turnout       float64          `json:"turnout"`
}
