package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	errs "cipher-server-go/internal/platform/errors"
)

// ConversationStore keeps the persisted trace of conversations for the
// status API. Best-effort: callers log and continue on write failures.
type ConversationStore struct {
	db *gorm.DB
}

func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db.Gorm()}
}

// Begin records a newly opened conversation.
func (s *ConversationStore) Begin(ctx context.Context, conversationID, wakeTranscript string, startedAt time.Time) error {
	err := s.db.WithContext(ctx).Create(&ConversationRecord{
		ConversationID: conversationID,
		WakeTranscript: wakeTranscript,
		StartedAt:      startedAt,
	}).Error
	return errs.Wrap(errs.KindStorage, "conversations.Begin", conversationID, err)
}

// Finish stamps the end of a conversation with its reason.
func (s *ConversationStore) Finish(ctx context.Context, conversationID, reason string, endedAt time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&ConversationRecord{}).
		Where("conversation_id = ?", conversationID).
		Updates(map[string]interface{}{
			"end_reason": reason,
			"ended_at":   endedAt,
		}).Error
	return errs.Wrap(errs.KindStorage, "conversations.Finish", conversationID, err)
}

// Recent returns the most recently started conversations, newest first.
func (s *ConversationStore) Recent(ctx context.Context, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []ConversationRecord
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "conversations.Recent", "query", err)
	}
	return records, nil
}

// Count returns the total number of recorded conversations.
func (s *ConversationStore) Count(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&ConversationRecord{}).Count(&total).Error
	if err != nil {
		return 0, errs.Wrap(errs.KindStorage, "conversations.Count", "count", err)
	}
	return total, nil
}
