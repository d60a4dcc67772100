package domain

import "time"

// EligibleVoter is a roster entry permitted to register.
type EligibleVoter struct {
	VoterID      string  `json:"voter_id" dynamodbav:"voter_id"`
	Name         string  `json:"name" dynamodbav:"name"`
	Email        string  `json:"email" dynamodbav:"email"`
	Phone        *string `json:"phone,omitempty" dynamodbav:"phone"`
	IsRegistered bool    `json:"is_registered" dynamodbav:"is_registered"`
}

// EnrolledVoter holds the face embedding captured at registration. Written once.
type EnrolledVoter struct {
	VoterID       string    `json:"voter_id" dynamodbav:"voter_id"`
	FaceEmbedding []float64 `json:"-" dynamodbav:"face_embedding"`
	RegisteredAt  time.Time `json:"registered_at" dynamodbav:"registered_at"`
}

// ImportResult reports the outcome of a roster bulk upsert.
type ImportResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// DashboardStats are the admin overview counters.
type DashboardStats struct {
	TotalEligible   int        `json:"total_eligible"`
	TotalRegistered int        `json:"total_registered"`
	TotalVotes      int        `json:"total_votes"`
	Elections       []Election `json:"elections"`
}
