package repos

import (
	"time"

	"github.com/batchkit/batchkit/internal/db/models"
	"github.com/batchkit/batchkit/pkg/batch"
)

func (s *JobRepositoryTestSuite) TestInsertAllAssignsSequentialIDs() {
	s.insertTestJobs(5)

	count, err := s.jobRepo.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(5), count)

	for id := uint(1); id <= 5; id++ {
		job, err := s.jobRepo.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(id, job.ID)
		s.False(job.Completed)
		s.False(job.Error)
		s.Nil(job.StartTime)
		s.Nil(job.EndTime)
	}
}

func (s *JobRepositoryTestSuite) TestInsertAllEmptyBatch() {
	err := s.jobRepo.InsertAll(s.ctx, nil)
	s.Require().NoError(err)

	count, err := s.jobRepo.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(0), count)
}

func (s *JobRepositoryTestSuite) TestInsertAllDuplicateIDFailsAtomically() {
	s.insertTestJobs(3)

	dup := []*models.Job{
		{ID: 4, Params: models.Params{"tile": float64(4)}},
		{ID: 2, Params: models.Params{"tile": float64(2)}},
	}
	err := s.jobRepo.InsertAll(s.ctx, dup)
	s.Require().Error(err)

	// The transaction rolls back the whole batch, including id 4.
	count, err := s.jobRepo.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), count)
}

func (s *JobRepositoryTestSuite) TestParamsRoundTrip() {
	params := models.Params{
		"input":   "block_042.laz",
		"bounds":  []interface{}{float64(10), float64(20)},
		"options": map[string]interface{}{"resolution": float64(0.5), "validate": true},
	}
	err := s.jobRepo.InsertAll(s.ctx, []*models.Job{{ID: 1, Params: params}})
	s.Require().NoError(err)

	job, err := s.jobRepo.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(params, job.Params)
}

func (s *JobRepositoryTestSuite) TestGetNotFound() {
	s.insertTestJobs(2)

	_, err := s.jobRepo.Get(s.ctx, 99)
	s.Require().Error(err)
	s.ErrorIs(err, batch.ErrJobNotFound)
}

func (s *JobRepositoryTestSuite) TestUpdateNotFound() {
	job := &models.Job{ID: 7, Params: models.Params{}}
	err := s.jobRepo.Update(s.ctx, job)
	s.Require().Error(err)
	s.ErrorIs(err, batch.ErrJobNotFound)
}

func (s *JobRepositoryTestSuite) TestUpdateFullRecord() {
	s.insertTestJobs(1)

	start := time.Now().UTC().Truncate(time.Second)
	end := start.Add(90 * time.Second)

	job, err := s.jobRepo.Get(s.ctx, 1)
	s.Require().NoError(err)
	job.Completed = true
	job.StartTime = s.timePtr(start)
	job.EndTime = s.timePtr(end)
	s.Require().NoError(s.jobRepo.Update(s.ctx, job))

	got, err := s.jobRepo.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.True(got.Completed)
	s.False(got.Error)
	s.Require().NotNil(got.StartTime)
	s.Require().NotNil(got.EndTime)
	d, ok := got.RunDuration()
	s.True(ok)
	s.Equal(90*time.Second, d)
}

func (s *JobRepositoryTestSuite) TestUpdateStoresErrorInfo() {
	s.insertTestJobs(1)

	job, err := s.jobRepo.Get(s.ctx, 1)
	s.Require().NoError(err)
	job.Error = true
	job.ErrorInfo = &models.ErrorInfo{
		Kind:    batch.KindProcessing,
		Message: "input file unreadable",
		Trace:   "goroutine 1 [running]",
	}
	s.Require().NoError(s.jobRepo.Update(s.ctx, job))

	got, err := s.jobRepo.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.True(got.Error)
	s.Require().NotNil(got.ErrorInfo)
	s.Equal(batch.KindProcessing, got.ErrorInfo.Kind)
	s.Equal("input file unreadable", got.ErrorInfo.Message)
}

func (s *JobRepositoryTestSuite) TestForEachFilters() {
	jobs := s.insertTestJobs(6)

	// 1,2 completed; 3 errored; 4,5,6 untouched
	for _, id := range []uint{1, 2} {
		jobs[id-1].Completed = true
		s.Require().NoError(s.jobRepo.Update(s.ctx, jobs[id-1]))
	}
	jobs[2].Error = true
	s.Require().NoError(s.jobRepo.Update(s.ctx, jobs[2]))

	var completed []uint
	err := s.jobRepo.ForEach(s.ctx, models.JobFilter{Completed: models.Bool(true)}, func(job *models.Job) error {
		completed = append(completed, job.ID)
		return nil
	})
	s.Require().NoError(err)
	s.Equal([]uint{1, 2}, completed)

	var errored []uint
	err = s.jobRepo.ForEach(s.ctx, models.JobFilter{Error: models.Bool(true)}, func(job *models.Job) error {
		errored = append(errored, job.ID)
		return nil
	})
	s.Require().NoError(err)
	s.Equal([]uint{3}, errored)

	var pending []uint
	err = s.jobRepo.ForEach(s.ctx, models.JobFilter{Completed: models.Bool(false), Error: models.Bool(false)}, func(job *models.Job) error {
		pending = append(pending, job.ID)
		return nil
	})
	s.Require().NoError(err)
	s.Equal([]uint{4, 5, 6}, pending)
}

func (s *JobRepositoryTestSuite) TestForEachVisitsInIDOrder() {
	s.insertTestJobs(10)

	var ids []uint
	err := s.jobRepo.ForEach(s.ctx, models.JobFilter{}, func(job *models.Job) error {
		ids = append(ids, job.ID)
		return nil
	})
	s.Require().NoError(err)
	s.Len(ids, 10)
	for i, id := range ids {
		s.Equal(uint(i+1), id)
	}
}

func (s *JobRepositoryTestSuite) TestListWithFilter() {
	jobs := s.insertTestJobs(4)
	jobs[0].Completed = true
	s.Require().NoError(s.jobRepo.Update(s.ctx, jobs[0]))

	all, err := s.jobRepo.List(s.ctx, models.JobFilter{})
	s.Require().NoError(err)
	s.Len(all, 4)

	done, err := s.jobRepo.List(s.ctx, models.JobFilter{Completed: models.Bool(true)})
	s.Require().NoError(err)
	s.Len(done, 1)
	s.Equal(uint(1), done[0].ID)
}
