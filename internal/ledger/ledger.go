// Package ledger persists failed sink writes so a later run can retry them.
package ledger

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/logger"
)

// Sink names the store a failed write was aimed at.
type Sink string

const (
	SinkPersistence Sink = "persistence"
	SinkSearchIndex Sink = "search-index"
)

// Key identifies the migrated item. Challenges use LegacyID, challenge types
// use ChallengeType; the other field stays zero.
type Key struct {
	LegacyID      int64
	ChallengeType string
}

// ChallengeKey returns the key of a challenge.
func ChallengeKey(legacyID int64) Key { return Key{LegacyID: legacyID} }

// TypeKey returns the key of a challenge type.
func TypeKey(name string) Key { return Key{ChallengeType: name} }

// Entry is one failed write.
type Entry struct {
	ID            uint   `gorm:"primaryKey"`
	LegacyID      int64  `gorm:"uniqueIndex:idx_ledger_key;not null;default:0"`
	ChallengeType string `gorm:"uniqueIndex:idx_ledger_key;size:191;not null;default:''"`
	Sink          Sink   `gorm:"uniqueIndex:idx_ledger_key;size:32;not null"`
	Message       string `gorm:"type:text"`
	Attempts      int    `gorm:"not null;default:1"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the table name for GORM.
func (Entry) TableName() string {
	return "migration_errors"
}

// Key returns the entry's key.
func (e Entry) Key() Key {
	return Key{LegacyID: e.LegacyID, ChallengeType: e.ChallengeType}
}

// Store reads and writes ledger entries.
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

// NewStore migrates the ledger table and returns a store on db.
func NewStore(db *gorm.DB, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, dbError(err, "auto-migrate")
	}
	return &Store{db: db, log: log}, nil
}

// Put records a failed write. Repeated failures of the same key and sink
// update the message and increment the attempt counter.
func (s *Store) Put(ctx context.Context, key Key, sink Sink, message string) error {
	now := time.Now()
	entry := &Entry{
		LegacyID:      key.LegacyID,
		ChallengeType: key.ChallengeType,
		Sink:          sink,
		Message:       message,
		Attempts:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "legacy_id"}, {Name: "challenge_type"}, {Name: "sink"}},
			DoUpdates: clause.Assignments(map[string]any{
				"message":    message,
				"attempts":   gorm.Expr("attempts + 1"),
				"updated_at": now,
			}),
		}).
		Create(entry).Error
	if err != nil {
		return dbError(err, "put", "legacy_id", key.LegacyID, "challenge_type", key.ChallengeType, "sink", string(sink))
	}
	s.log.Debug("ledger entry recorded",
		logger.Int64("legacy_id", key.LegacyID),
		logger.String("challenge_type", key.ChallengeType),
		logger.String("sink", string(sink)))
	return nil
}

// Remove deletes the entry for key and sink. Removing a missing entry is not
// an error.
func (s *Store) Remove(ctx context.Context, key Key, sink Sink) error {
	err := s.db.WithContext(ctx).
		Where("legacy_id = ? AND challenge_type = ? AND sink = ?", key.LegacyID, key.ChallengeType, sink).
		Delete(&Entry{}).Error
	if err != nil {
		return dbError(err, "remove", "legacy_id", key.LegacyID, "challenge_type", key.ChallengeType, "sink", string(sink))
	}
	return nil
}

// RemoveAll deletes every entry for key.
func (s *Store) RemoveAll(ctx context.Context, key Key) error {
	err := s.db.WithContext(ctx).
		Where("legacy_id = ? AND challenge_type = ?", key.LegacyID, key.ChallengeType).
		Delete(&Entry{}).Error
	if err != nil {
		return dbError(err, "remove-all", "legacy_id", key.LegacyID, "challenge_type", key.ChallengeType)
	}
	return nil
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&Entry{})
	if res.Error != nil {
		return 0, dbError(res.Error, "clear")
	}
	return res.RowsAffected, nil
}

// FailedLegacyIDs returns the distinct challenge ids with at least one entry,
// in ascending order.
func (s *Store) FailedLegacyIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Where("challenge_type = ''").
		Distinct("legacy_id").
		Order("legacy_id").
		Pluck("legacy_id", &ids).Error
	if err != nil {
		return nil, dbError(err, "failed-legacy-ids")
	}
	return ids, nil
}

// FailedChallengeTypes returns the distinct challenge type names with at
// least one entry.
func (s *Store) FailedChallengeTypes(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Where("challenge_type <> ''").
		Distinct("challenge_type").
		Order("challenge_type").
		Pluck("challenge_type", &names).Error
	if err != nil {
		return nil, dbError(err, "failed-challenge-types")
	}
	return names, nil
}

// List returns all entries, oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&entries).Error; err != nil {
		return nil, dbError(err, "list")
	}
	return entries, nil
}

// Count returns the number of entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Entry{}).Count(&n).Error; err != nil {
		return 0, dbError(err, "count")
	}
	return n, nil
}

func dbError(err error, op string, kv ...any) error {
	b := errors.New(err).
		Component("ledger").
		Category(errors.CategoryLedger).
		Context("operation", op)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			b = b.Context(k, kv[i+1])
		}
	}
	return b.Build()
}
