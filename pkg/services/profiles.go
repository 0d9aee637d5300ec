package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// UserProfile loads one user's answering profile.
func (s *Store) UserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile := &models.UserProfile{UserID: userID}
	var preferences, effectiveness []byte
	err := s.pool.QueryRow(ctx, `
		SELECT personality, speech_style, preferences, effectiveness
		FROM user_profiles WHERE user_id = $1`, userID,
	).Scan(&profile.Personality, &profile.SpeechStyle, &preferences, &effectiveness)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user profile %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user profile %s: %w", userID, err)
	}

	if err := json.Unmarshal(preferences, &profile.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences %s: %w", userID, err)
	}
	if err := json.Unmarshal(effectiveness, &profile.Effectiveness); err != nil {
		return nil, fmt.Errorf("decode effectiveness %s: %w", userID, err)
	}
	return profile, nil
}

// SaveUserProfile upserts one user profile.
func (s *Store) SaveUserProfile(ctx context.Context, profile *models.UserProfile) error {
	preferences, err := json.Marshal(profile.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences %s: %w", profile.UserID, err)
	}
	effectiveness, err := json.Marshal(profile.Effectiveness)
	if err != nil {
		return fmt.Errorf("marshal effectiveness %s: %w", profile.UserID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, personality, speech_style, preferences, effectiveness, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE SET
			personality = EXCLUDED.personality,
			speech_style = EXCLUDED.speech_style,
			preferences = EXCLUDED.preferences,
			effectiveness = EXCLUDED.effectiveness,
			updated_at = now()`,
		profile.UserID, string(profile.Personality), string(profile.SpeechStyle), preferences, effectiveness,
	)
	if err != nil {
		return fmt.Errorf("save user profile %s: %w", profile.UserID, err)
	}
	return nil
}

// SpamProfile loads the reputation record for one caller fingerprint.
func (s *Store) SpamProfile(ctx context.Context, fp string) (*models.SpamProfile, error) {
	profile := &models.SpamProfile{Fingerprint: fp}
	err := s.pool.QueryRow(ctx, `
		SELECT category, risk_score, confidence, reports, blocked, bypass_attempts, last_activity
		FROM spam_profiles WHERE fingerprint = $1`, fp,
	).Scan(&profile.Category, &profile.RiskScore, &profile.Confidence,
		&profile.Reports, &profile.Blocked, &profile.BypassAttempts, &profile.LastActivity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("spam profile: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load spam profile: %w", err)
	}
	return profile, nil
}

// SaveSpamProfile upserts one reputation record.
func (s *Store) SaveSpamProfile(ctx context.Context, profile *models.SpamProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO spam_profiles (fingerprint, category, risk_score, confidence, reports, blocked, bypass_attempts, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (fingerprint) DO UPDATE SET
			category = EXCLUDED.category,
			risk_score = EXCLUDED.risk_score,
			confidence = EXCLUDED.confidence,
			reports = EXCLUDED.reports,
			blocked = EXCLUDED.blocked,
			bypass_attempts = EXCLUDED.bypass_attempts,
			last_activity = EXCLUDED.last_activity`,
		profile.Fingerprint, profile.Category, profile.RiskScore, profile.Confidence,
		profile.Reports, profile.Blocked, profile.BypassAttempts, profile.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("save spam profile: %w", err)
	}
	return nil
}
