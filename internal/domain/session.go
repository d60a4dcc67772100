package domain

import "time"

// Session is the server-side verification state of one client. The client only holds a
// signed token naming SessionID; every flag below is trusted because it never leaves the server.
//
// OTPVerified and FaceVerified are only meaningful for (PendingVoterID, PendingFlow):
// starting any flow overwrites the pending tags and resets both flags.
type Session struct {
	SessionID         string    `json:"id" dynamodbav:"session_id"`
	Role              string    `json:"role" dynamodbav:"role"`
	VoterID           string    `json:"voter_id,omitempty" dynamodbav:"voter_id"`
	PendingVoterID    string    `json:"pending_voter_id,omitempty" dynamodbav:"pending_voter_id"`
	PendingEmail      string    `json:"-" dynamodbav:"pending_email"`
	PendingFlow       Flow      `json:"pending_flow,omitempty" dynamodbav:"pending_flow"`
	PendingElectionID string    `json:"pending_election_id,omitempty" dynamodbav:"pending_election_id"`
	OTPVerified       bool      `json:"otp_verified" dynamodbav:"otp_verified"`
	FaceVerified      bool      `json:"face_verified" dynamodbav:"face_verified"`
	Enable            bool      `json:"enable" dynamodbav:"enable"`
	ExpiresAt         int64     `json:"-" dynamodbav:"expires_at"` // DynamoDB TTL (Unix seconds)
	CreatedAt         time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt         time.Time `json:"updated" dynamodbav:"updated_at"`
}

// LoggedIn reports whether a voter identity is bound to the session.
func (s *Session) LoggedIn() bool { return s.VoterID != "" }

// BeginFlow moves the session to OtpRequested for (voterID, flow).
func (s *Session) BeginFlow(voterID, email string, flow Flow, electionID string) {
	s.PendingVoterID = voterID
	s.PendingEmail = email
	s.PendingFlow = flow
	s.PendingElectionID = electionID
	s.OTPVerified = false
	s.FaceVerified = false
}

// InFlow reports whether the session is pending on flow.
func (s *Session) InFlow(flow Flow) bool {
	return s.PendingVoterID != "" && s.PendingFlow == flow
}

// ResetVerification drops back to OtpRequested without forgetting the pending subject.
func (s *Session) ResetVerification() {
	s.OTPVerified = false
	s.FaceVerified = false
}

// ClearPending returns the session to Idle.
func (s *Session) ClearPending() {
	s.PendingVoterID = ""
	s.PendingEmail = ""
	s.PendingFlow = ""
	s.PendingElectionID = ""
	s.OTPVerified = false
	s.FaceVerified = false
}
