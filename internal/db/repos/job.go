// Package repos provides access to job records in the store.
package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/batchkit/batchkit/internal/db/models"
	"github.com/batchkit/batchkit/pkg/batch"
)

// scanBatchSize is the number of rows fetched per round trip by ForEach.
const scanBatchSize = 500

// JobRepository provides access to job-related database operations
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateSchema creates the job table if it does not already exist. It is
// idempotent; an incompatible existing schema surfaces as a StoreError.
func (r *JobRepository) CreateSchema(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&models.Job{}); err != nil {
		return batch.NewStoreError("create schema", err)
	}
	return nil
}

// ResetSchema drops the job table and recreates it empty. Used by the
// generator when populating a fresh batch.
func (r *JobRepository) ResetSchema(ctx context.Context) error {
	migrator := r.db.WithContext(ctx).Migrator()
	if migrator.HasTable(&models.Job{}) {
		if err := migrator.DropTable(&models.Job{}); err != nil {
			return batch.NewStoreError("drop schema", err)
		}
	}
	return r.CreateSchema(ctx)
}

// InsertAll bulk-inserts freshly generated jobs in a single transaction. A
// duplicate id fails the whole batch; no partial batch is left committed.
func (r *JobRepository) InsertAll(ctx context.Context, jobs []*models.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(jobs, 100).Error
	})
	if err != nil {
		return batch.NewStoreError("insert", err)
	}
	return nil
}

// Get retrieves a job by its id
func (r *JobRepository) Get(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", batch.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, batch.NewStoreError("get", err)
	}
	return &job, nil
}

// Update overwrites the full row identified by the job's id. The write is a
// single UPDATE, so concurrent readers never observe partial field writes.
func (r *JobRepository) Update(ctx context.Context, job *models.Job) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where(models.JobIDField+" = ?", job.ID).
		Count(&count).Error; err != nil {
		return batch.NewStoreError("update", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: id %d", batch.ErrJobNotFound, job.ID)
	}
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return batch.NewStoreError("update", err)
	}
	return nil
}

// ForEach scans jobs matching the filter in ascending id order, invoking fn
// for each. Rows are fetched lazily in batches; an error from fn stops the
// scan and is returned.
func (r *JobRepository) ForEach(ctx context.Context, filter models.JobFilter, fn func(*models.Job) error) error {
	q := r.db.WithContext(ctx).Model(&models.Job{})
	if filter.Completed != nil {
		q = q.Where(models.JobCompletedField+" = ?", *filter.Completed)
	}
	if filter.Error != nil {
		q = q.Where(models.JobErrorField+" = ?", *filter.Error)
	}

	var fnErr error
	var jobs []models.Job
	// FindInBatches pages by ascending primary key.
	res := q.FindInBatches(&jobs, scanBatchSize, func(_ *gorm.DB, _ int) error {
		for i := range jobs {
			if err := fn(&jobs[i]); err != nil {
				fnErr = err
				return err
			}
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if res.Error != nil {
		return batch.NewStoreError("scan", res.Error)
	}
	return nil
}

// List collects jobs matching the filter in ascending id order.
func (r *JobRepository) List(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	var jobs []models.Job
	err := r.ForEach(ctx, filter, func(job *models.Job) error {
		jobs = append(jobs, *job)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Count returns the total number of jobs
func (r *JobRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Job{}).Count(&count).Error; err != nil {
		return 0, batch.NewStoreError("count", err)
	}
	return count, nil
}
