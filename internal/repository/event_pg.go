package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/VeritasFi/aegis/internal/model"
)

// PostgresEventRepo persists ledger events for the audit and tax-reporting
// consumers. Events are append-only; inserts conflict-skip on replay.
type PostgresEventRepo struct {
	db *gorm.DB
}

func NewPostgresEventRepo(db *gorm.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

func (r *PostgresEventRepo) Insert(ctx context.Context, e *model.Event) error {
	if e == nil {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(e).Error
}

// List returns events newest-first, optionally filtered by ledger and entity.
func (r *PostgresEventRepo) List(ctx context.Context, ledgerName, entity string, limit int, from, to *time.Time) ([]*model.Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Model(&model.Event{})
	if ledgerName != "" {
		q = q.Where("ledger = ?", ledgerName)
	}
	if entity != "" {
		q = q.Where("entity = ?", entity)
	}
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at <= ?", *to)
	}

	var events []*model.Event
	err := q.Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

func (r *PostgresEventRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.Event{}).Error
}
