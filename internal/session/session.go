// ABOUTME: Per-user conversation session model with tagged auth, credential and confirmation states
// ABOUTME: Persisted as a flat JSON record; the attached credential is never persisted

package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuthState is one of Unauthenticated, OtpPending or Authenticated.
type AuthState interface {
	authState()
}

// Unauthenticated is the initial state: no identity claimed yet.
type Unauthenticated struct{}

// OtpPending means a passcode was sent to CandidateEmail and is valid until Expiry.
type OtpPending struct {
	CandidateEmail string
	Expiry         time.Time
}

// Authenticated carries the verified identity email.
type Authenticated struct {
	Email string
}

func (Unauthenticated) authState() {}
func (OtpPending) authState()      {}
func (Authenticated) authState()   {}

// CredentialState is the credential resolved for the current update only.
type CredentialState interface {
	credentialState()
}

// NoCredential means the credential stage has not attached anything yet.
type NoCredential struct{}

// AttachedCredential is a fresh, active access token the handlers may use.
type AttachedCredential struct {
	AccessToken string
	Expiry      time.Time
}

func (NoCredential) credentialState()       {}
func (AttachedCredential) credentialState() {}

// ConfirmationState tracks the yes/no handshake owned by the business handlers.
type ConfirmationState interface {
	confirmationState()
}

// NoConfirmation means nothing is awaiting the user's answer.
type NoConfirmation struct{}

// PendingConfirmation holds an event the user must confirm despite conflicts.
type PendingConfirmation struct {
	EventData         json.RawMessage
	ConflictingEvents json.RawMessage
}

func (NoConfirmation) confirmationState()      {}
func (PendingConfirmation) confirmationState() {}

// IdentityChange is an in-flight change of the verified email address.
type IdentityChange struct {
	NewEmail string    `json:"new_email"`
	Expiry   time.Time `json:"expiry"`
}

// Session is the pipeline-owned state for one external user.
type Session struct {
	ChatID                string
	ExternalUserID        string
	LanguageCode          string
	LastActivity          time.Time
	LastProcessedUpdateID string
	IsProcessing          bool
	// ProcessingSince is when IsProcessing was last set; zero when idle.
	ProcessingSince time.Time

	Auth           AuthState
	IdentityChange *IdentityChange
	Confirmation   ConfirmationState

	// Credential is recomputed on every update and dropped on write.
	Credential CredentialState
}

// New returns the default session for a user seen for the first time.
func New(chatID, externalUserID, languageCode string) *Session {
	return &Session{
		ChatID:         chatID,
		ExternalUserID: externalUserID,
		LanguageCode:   languageCode,
		Auth:           Unauthenticated{},
		Confirmation:   NoConfirmation{},
		Credential:     NoCredential{},
	}
}

// Email returns the verified identity email, if the session is authenticated.
func (s *Session) Email() (string, bool) {
	if a, ok := s.Auth.(Authenticated); ok {
		return a.Email, true
	}
	return "", false
}

// BusyFor reports whether a handler marked the session busy less than maxAge ago.
// A flag older than maxAge is treated as left over from a crashed or lost update.
func (s *Session) BusyFor(now time.Time, maxAge time.Duration) bool {
	if !s.IsProcessing {
		return false
	}
	if s.ProcessingSince.IsZero() || maxAge <= 0 {
		return true
	}
	return now.Sub(s.ProcessingSince) < maxAge
}

// ClearAuth drops every auth-derived field while keeping the chat linkage.
func (s *Session) ClearAuth() {
	s.Auth = Unauthenticated{}
	s.IdentityChange = nil
	s.Confirmation = NoConfirmation{}
	s.Credential = NoCredential{}
}

const (
	authUnauthenticated = "unauthenticated"
	authOtpPending      = "otp_pending"
	authAuthenticated   = "authenticated"
)

// record is the flat persisted layout.
type record struct {
	ChatID                string          `json:"chat_id"`
	ExternalUserID        string          `json:"external_user_id"`
	LanguageCode          string          `json:"language_code,omitempty"`
	LastActivity          *time.Time      `json:"last_activity,omitempty"`
	LastProcessedUpdateID string          `json:"last_processed_update_id,omitempty"`
	IsProcessing          bool            `json:"is_processing"`
	ProcessingSince       *time.Time      `json:"processing_since,omitempty"`
	AuthState             string          `json:"auth_state"`
	Email                 string          `json:"email,omitempty"`
	CandidateEmail        string          `json:"candidate_email,omitempty"`
	OtpExpiry             *time.Time      `json:"otp_expiry,omitempty"`
	IdentityChange        *IdentityChange `json:"pending_identity_change,omitempty"`
	EventData             json.RawMessage `json:"pending_event_data,omitempty"`
	ConflictingEvents     json.RawMessage `json:"pending_conflicting_events,omitempty"`
	HasConfirmation       bool            `json:"has_pending_confirmation,omitempty"`
}

// MarshalJSON flattens the tagged states into a single record.
func (s Session) MarshalJSON() ([]byte, error) {
	r := record{
		ChatID:                s.ChatID,
		ExternalUserID:        s.ExternalUserID,
		LanguageCode:          s.LanguageCode,
		LastProcessedUpdateID: s.LastProcessedUpdateID,
		IsProcessing:          s.IsProcessing,
		IdentityChange:        s.IdentityChange,
	}
	if !s.LastActivity.IsZero() {
		t := s.LastActivity
		r.LastActivity = &t
	}
	if !s.ProcessingSince.IsZero() {
		t := s.ProcessingSince
		r.ProcessingSince = &t
	}

	switch a := s.Auth.(type) {
	case nil, Unauthenticated:
		r.AuthState = authUnauthenticated
	case OtpPending:
		r.AuthState = authOtpPending
		r.CandidateEmail = a.CandidateEmail
		exp := a.Expiry
		r.OtpExpiry = &exp
	case Authenticated:
		r.AuthState = authAuthenticated
		r.Email = a.Email
	default:
		return nil, fmt.Errorf("unknown auth state %T", a)
	}

	switch c := s.Confirmation.(type) {
	case nil, NoConfirmation:
	case PendingConfirmation:
		r.HasConfirmation = true
		r.EventData = c.EventData
		r.ConflictingEvents = c.ConflictingEvents
	default:
		return nil, fmt.Errorf("unknown confirmation state %T", c)
	}

	return json.Marshal(r)
}

// UnmarshalJSON rebuilds the tagged states from the flat record.
func (s *Session) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}

	*s = Session{
		ChatID:                r.ChatID,
		ExternalUserID:        r.ExternalUserID,
		LanguageCode:          r.LanguageCode,
		LastProcessedUpdateID: r.LastProcessedUpdateID,
		IsProcessing:          r.IsProcessing,
		IdentityChange:        r.IdentityChange,
		Confirmation:          NoConfirmation{},
		Credential:            NoCredential{},
	}
	if r.LastActivity != nil {
		s.LastActivity = *r.LastActivity
	}
	if r.ProcessingSince != nil {
		s.ProcessingSince = *r.ProcessingSince
	}

	switch r.AuthState {
	case "", authUnauthenticated:
		s.Auth = Unauthenticated{}
	case authOtpPending:
		p := OtpPending{CandidateEmail: r.CandidateEmail}
		if r.OtpExpiry != nil {
			p.Expiry = *r.OtpExpiry
		}
		s.Auth = p
	case authAuthenticated:
		s.Auth = Authenticated{Email: r.Email}
	default:
		return fmt.Errorf("unknown auth state %q", r.AuthState)
	}

	if r.HasConfirmation {
		s.Confirmation = PendingConfirmation{
			EventData:         r.EventData,
			ConflictingEvents: r.ConflictingEvents,
		}
	}
	return nil
}
