package domain

import "time"

// Flow names a two-factor verification sequence. It doubles as the OTP purpose.
type Flow string

const (
	FlowRegister Flow = "register"
	FlowLogin    Flow = "login"
	FlowVote     Flow = "vote"
)

// ParseFlow returns the Flow for s, or ErrBadRequest for unknown names.
func ParseFlow(s string) (Flow, error) {
	switch f := Flow(s); f {
	case FlowRegister, FlowLogin, FlowVote:
		return f, nil
	}
	return "", ErrBadRequest
}

// OtpChallenge is one row of the append-only OTP log.
// PK: subject_key ("<voter_id>#<purpose>"), SK: challenge_id (monotonic ULID).
// Only the newest row for a subject_key is ever consulted.
type OtpChallenge struct {
	SubjectKey  string     `json:"-" dynamodbav:"subject_key"`
	ChallengeID string     `json:"id" dynamodbav:"challenge_id"`
	SubjectID   string     `json:"subject_id" dynamodbav:"subject_id"`
	Purpose     Flow       `json:"purpose" dynamodbav:"purpose"`
	CodeHash    string     `json:"-" dynamodbav:"code_hash"`
	ExpiresAt   time.Time  `json:"expires_at" dynamodbav:"expires_at"`
	CreatedAt   time.Time  `json:"created_at" dynamodbav:"created_at"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty" dynamodbav:"consumed_at,omitempty"`
	Attempts    int        `json:"-" dynamodbav:"attempts"` // wrong codes tried against this challenge
	PurgeAt     int64      `json:"-" dynamodbav:"purge_at"` // DynamoDB TTL (Unix seconds)
}

// SubjectKey builds the partition key for a (subject, purpose) pair.
func SubjectKey(subjectID string, purpose Flow) string {
	return subjectID + "#" + string(purpose)
}
