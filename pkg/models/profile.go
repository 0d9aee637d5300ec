package models

import "time"

// Personality is the user's configured answering persona.
type Personality string

const (
	PersonalityPolite       Personality = "polite"
	PersonalityDirect       Personality = "direct"
	PersonalityHumorous     Personality = "humorous"
	PersonalityProfessional Personality = "professional"
)

// SpeechStyle controls response verbosity and register.
type SpeechStyle string

const (
	StyleBrief    SpeechStyle = "brief"
	StyleNormal   SpeechStyle = "normal"
	StyleDetailed SpeechStyle = "detailed"
	StyleFormal   SpeechStyle = "formal"
	StyleFriendly SpeechStyle = "friendly"
)

// UserProfile is read-mostly during a call; effectiveness aggregates are
// written back by the learning system.
type UserProfile struct {
	UserID        string             `json:"user_id"`
	Personality   Personality        `json:"personality"`
	SpeechStyle   SpeechStyle        `json:"speech_style"`
	Preferences   map[string]string  `json:"preferences,omitempty"`
	Effectiveness map[string]float64 `json:"effectiveness,omitempty"`
}

// DefaultUserProfile returns the profile used when none is stored.
func DefaultUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:      userID,
		Personality: PersonalityPolite,
		SpeechStyle: StyleNormal,
	}
}

// SpamProfile is the per-fingerprint caller reputation record. Written by
// the post-call pipeline, read by the intent classifier as a prior.
type SpamProfile struct {
	Fingerprint    string    `json:"fingerprint"`
	Category       string    `json:"category"`
	RiskScore      float64   `json:"risk_score"`
	Confidence     float64   `json:"confidence"`
	Reports        int       `json:"reports"`
	Blocked        int       `json:"blocked"`
	BypassAttempts int       `json:"bypass_attempts"`
	LastActivity   time.Time `json:"last_activity"`
}
