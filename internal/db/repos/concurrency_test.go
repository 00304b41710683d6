package repos

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/batchkit/batchkit/internal/db/models"
)

// Two runner processes own disjoint job ids and mutate them concurrently
// against the shared store; neither writer may interfere with the other's
// row. Uses a file-backed store since each fan-out worker opens its own
// connection in production.
func TestConcurrentDisjointRowWriters(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "jobs.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	ctx := context.Background()
	repo := NewJobRepository(gdb)
	require.NoError(t, repo.CreateSchema(ctx))
	require.NoError(t, repo.InsertAll(ctx, []*models.Job{
		{ID: 1, Params: models.Params{"tile": float64(0)}},
		{ID: 2, Params: models.Params{"tile": float64(1)}},
	}))

	const rounds = 20
	workerErrs := make([]error, 2)
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := uint(w + 1)
			for i := 0; i < rounds; i++ {
				job, err := repo.Get(ctx, id)
				if err != nil {
					workerErrs[w] = err
					return
				}
				job.Completed = i%2 == 0
				job.Error = !job.Completed
				if err := repo.Update(ctx, job); err != nil {
					workerErrs[w] = err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, workerErrs[0])
	require.NoError(t, workerErrs[1])

	// The final round (odd index) left every row errored; params must be
	// untouched by the other writer.
	for id := uint(1); id <= 2; id++ {
		job, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, job.Completed)
		assert.True(t, job.Error)
		assert.Equal(t, float64(id-1), job.Params["tile"])
	}
}
