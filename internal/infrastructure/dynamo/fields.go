package dynamo

// DynamoDB attribute names used in expressions across all repos.
const (
	fieldVoterID      = "voter_id"
	fieldElectionID   = "election_id"
	fieldIsRegistered = "is_registered"
	fieldIsActive     = "is_active"
	fieldSubjectKey   = "subject_key"
	fieldChallengeID  = "challenge_id"
	fieldConsumedAt   = "consumed_at"
	fieldAttempts     = "attempts"
	fieldEnable       = "enable"
	fieldUpdatedAt    = "updated_at"
)
