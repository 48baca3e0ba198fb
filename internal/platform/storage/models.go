package storage

import (
	"time"

	"gorm.io/datatypes"
)

// Preference is a single persisted key/value setting.
type Preference struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"not null"                               json:"value"`
	UpdatedAt time.Time `                                              json:"updated_at"`
}

func (Preference) TableName() string {
	return "preferences"
}

// ConversationRecord is the persisted trace of one wake-to-end conversation.
type ConversationRecord struct {
	ID             uint           `gorm:"primaryKey"`
	ConversationID string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"conversation_id"`
	WakeTranscript string         `gorm:"type:text"                             json:"wake_transcript"`
	EndReason      string         `gorm:"index"                                 json:"end_reason"`
	StartedAt      time.Time      `gorm:"index"                                 json:"started_at"`
	EndedAt        *time.Time     `                                             json:"ended_at,omitempty"`
	Metadata       datatypes.JSON `                                             json:"metadata,omitempty"`
}

func (ConversationRecord) TableName() string {
	return "conversation_records"
}

// SessionCredential is the persisted form of an issued client credential.
// The session domain store maps it to its own types.
type SessionCredential struct {
	ID        uint           `gorm:"primaryKey"`
	ClientID  string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"client_id"`
	Username  string         `gorm:"not null"                               json:"username"`
	Password  string         `gorm:"not null"                               json:"password"`
	IP        string         `                                              json:"ip"`
	CreatedAt time.Time      `                                              json:"created_at"`
	ExpiresAt *time.Time     `                                              json:"expires_at,omitempty"`
	Metadata  datatypes.JSON `                                              json:"metadata,omitempty"`
}

func (SessionCredential) TableName() string {
	return "session_credentials"
}
