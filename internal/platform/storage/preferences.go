package storage

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errs "cipher-server-go/internal/platform/errors"
)

// Preference keys used by the assistant.
const (
	KeyWakeDetectionEnabled = "wake_detection_enabled"
)

// PreferenceStore persists user settings across restarts.
type PreferenceStore struct {
	db *gorm.DB
}

func NewPreferenceStore(db *DB) *PreferenceStore {
	return &PreferenceStore{db: db.Gorm()}
}

// Get returns the stored value for key, or fallback when the key is unset.
func (s *PreferenceStore) Get(ctx context.Context, key, fallback string) (string, error) {
	var pref Preference
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", errs.Wrap(errs.KindStorage, "preferences.Get", key, err)
	}
	return pref.Value, nil
}

// Set stores the value for key, inserting or updating as needed.
func (s *PreferenceStore) Set(ctx context.Context, key, value string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Preference{Key: key, Value: value}).Error
	return errs.Wrap(errs.KindStorage, "preferences.Set", key, err)
}

// WakeDetectionEnabled reports the persisted wake-word toggle; unset means
// enabled.
func (s *PreferenceStore) WakeDetectionEnabled(ctx context.Context) (bool, error) {
	v, err := s.Get(ctx, KeyWakeDetectionEnabled, "true")
	if err != nil {
		return true, err
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true, nil
	}
	return enabled, nil
}

// SetWakeDetectionEnabled persists the wake-word toggle.
func (s *PreferenceStore) SetWakeDetectionEnabled(ctx context.Context, enabled bool) error {
	return s.Set(ctx, KeyWakeDetectionEnabled, strconv.FormatBool(enabled))
}
