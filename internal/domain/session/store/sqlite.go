package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cipher-server-go/internal/domain/session/model"
	"cipher-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSQLite builds a credential store on top of the shared SQLite database.
func NewSQLite(db *storage.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires a database handle")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sqliteStore{db: db.Gorm(), ttl: ttl}, nil
}

func (s *sqliteStore) Put(ctx context.Context, cred model.Credential) error {
	if cred.ClientID == "" {
		return fmt.Errorf("client id required")
	}
	now := time.Now()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	if cred.ExpiresAt == nil && s.ttl > 0 {
		exp := cred.CreatedAt.Add(s.ttl)
		cred.ExpiresAt = &exp
	}
	meta, _ := json.Marshal(cred.Metadata)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", cred.ClientID).Delete(&storage.SessionCredential{}).Error; err != nil {
			return err
		}
		return tx.Create(&storage.SessionCredential{
			ClientID:  cred.ClientID,
			Username:  cred.Username,
			Password:  cred.Password,
			IP:        cred.IP,
			CreatedAt: cred.CreatedAt,
			ExpiresAt: cred.ExpiresAt,
			Metadata:  meta,
		}).Error
	})
}

func (s *sqliteStore) Validate(
	ctx context.Context,
	clientID string,
	username string,
	password string,
) (model.Credential, bool, error) {
	cred, err := s.fetch(ctx, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Credential{}, false, nil
		}
		return model.Credential{}, false, err
	}
	if cred.Expired(time.Now()) {
		return model.Credential{}, false, fmt.Errorf("expired credential: %s", clientID)
	}
	if cred.Username != username || cred.Password != password {
		return model.Credential{}, false, nil
	}
	return cred, true, nil
}

func (s *sqliteStore) Get(ctx context.Context, clientID string) (model.Credential, error) {
	cred, err := s.fetch(ctx, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Credential{}, fmt.Errorf("client not found: %s", clientID)
		}
		return model.Credential{}, err
	}
	if cred.Expired(time.Now()) {
		return model.Credential{}, fmt.Errorf("client expired: %s", clientID)
	}
	return cred, nil
}

func (s *sqliteStore) Remove(ctx context.Context, clientID string) error {
	return s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Delete(&storage.SessionCredential{}).Error
}

func (s *sqliteStore) List(ctx context.Context) ([]string, error) {
	var records []storage.SessionCredential
	err := s.db.WithContext(ctx).
		Select("client_id", "expires_at").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.ExpiresAt == nil || now.Before(*r.ExpiresAt) {
			ids = append(ids, r.ClientID)
		}
	}
	return ids, nil
}

func (s *sqliteStore) CleanupExpired(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&storage.SessionCredential{}).Error
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&storage.SessionCredential{}).Count(&total).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":        "sqlite",
		"total":       total,
		"ttl_seconds": int(s.ttl.Seconds()),
	}, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}

func (s *sqliteStore) fetch(ctx context.Context, clientID string) (model.Credential, error) {
	var record storage.SessionCredential
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&record).Error
	if err != nil {
		return model.Credential{}, err
	}

	cred := model.Credential{
		ClientID:  record.ClientID,
		Username:  record.Username,
		Password:  record.Password,
		IP:        record.IP,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}
	if len(record.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(record.Metadata, &meta); err == nil {
			cred.Metadata = meta
		}
	}
	return cred, nil
}
