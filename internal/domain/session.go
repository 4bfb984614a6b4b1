// Package domain contains core domain types for the onboarding chat.
package domain

import (
	"time"
)

// Turn is one message in the session transcript.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds everything collected in one onboarding conversation.
type Session struct {
	ID            string    `json:"session_id"`
	State         State     `json:"current_state"`
	ZipCode       string    `json:"zip_code,omitempty"`
	FullName      string    `json:"full_name,omitempty"`
	Email         string    `json:"email,omitempty"`
	LicenseType   string    `json:"license_type,omitempty"`
	LicenseStatus string    `json:"license_status,omitempty"`
	Greeting      string    `json:"greeting,omitempty"`
	Transcript    []Turn    `json:"messages"`
	Vehicles      []Vehicle `json:"vehicles"`
	Draft         *Vehicle  `json:"pending_vehicle,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewSession returns a session in the initial state with no fields set.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		State:      InitialState,
		Transcript: []Turn{},
		Vehicles:   []Vehicle{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Append adds a turn to the transcript.
func (s *Session) Append(role Role, content string, at time.Time) {
	s.Transcript = append(s.Transcript, Turn{Role: role, Content: content, Timestamp: at})
}

// RecentTurns returns the last n turns of the transcript.
func (s *Session) RecentTurns(n int) []Turn {
	if n <= 0 {
		return nil
	}
	if n >= len(s.Transcript) {
		return s.Transcript
	}
	return s.Transcript[len(s.Transcript)-n:]
}

// DraftVehicle returns the vehicle being collected, creating it if needed.
func (s *Session) DraftVehicle() *Vehicle {
	if s.Draft == nil {
		s.Draft = &Vehicle{}
	}
	return s.Draft
}

// FinalizeDraft moves a complete draft into the vehicle list.
// It returns false and leaves the draft in place when it is incomplete.
func (s *Session) FinalizeDraft() bool {
	if s.Draft == nil || !s.Draft.Complete() {
		return false
	}
	s.Vehicles = append(s.Vehicles, *s.Draft)
	s.Draft = nil
	return true
}

// Complete reports whether the session reached the terminal state.
func (s *Session) Complete() bool {
	return s.State.Terminal()
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.Transcript = append([]Turn{}, s.Transcript...)
	c.Vehicles = make([]Vehicle, len(s.Vehicles))
	for i := range s.Vehicles {
		c.Vehicles[i] = s.Vehicles[i].clone()
	}
	if s.Draft != nil {
		d := s.Draft.clone()
		c.Draft = &d
	}
	return &c
}

// Summary is the list view of a session.
type Summary struct {
	ID           string    `json:"session_id"`
	State        State     `json:"current_state"`
	FullName     string    `json:"full_name,omitempty"`
	Email        string    `json:"email,omitempty"`
	VehicleCount int       `json:"vehicles_count"`
	MessageCount int       `json:"messages_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
