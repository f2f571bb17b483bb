package maintenance

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/grocer-backend/pkg/logger"
)

const (
	outboxRetentionDefault = 30 * 24 * time.Hour
	cartExpiryDefault      = 30 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type deletedCounter interface {
	AddDeleted(job string, n int64)
}

type purger interface {
	DeleteStaleBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxPurger interface {
	DeleteSettledBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// PurgeParams configures a job that deletes rows older than Retention.
type PurgeParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Retention time.Duration
	Counter   deletedCounter
}

type purgeJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention time.Duration
	counter   deletedCounter
	purge     func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	now       func() time.Time
}

// NewOutboxRetentionJob deletes outbox rows that were published or given up
// on more than Retention ago.
func NewOutboxRetentionJob(params PurgeParams, repo outboxPurger) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return newPurgeJob("outbox-retention", params, outboxRetentionDefault, repo.DeleteSettledBefore)
}

// NewCartExpiryJob deletes cart lines nobody checked out within Retention.
func NewCartExpiryJob(params PurgeParams, repo purger) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return newPurgeJob("cart-expiry", params, cartExpiryDefault, repo.DeleteStaleBefore)
}

func newPurgeJob(
	name string,
	params PurgeParams,
	fallback time.Duration,
	purge func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error),
) (*purgeJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = fallback
	}
	return &purgeJob{
		name:      name,
		logg:      params.Logger,
		db:        params.DB,
		retention: retention,
		counter:   params.Counter,
		purge:     purge,
		now:       time.Now,
	}, nil
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	if j.counter != nil {
		j.counter.AddDeleted(j.name, deleted)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "purge complete")
	return nil
}
