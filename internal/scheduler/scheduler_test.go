package scheduler

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  int32
	err   error
	panic bool
}

func (j *countingJob) Run() error {
	atomic.AddInt32(&j.runs, 1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

func (j *countingJob) Name() string { return j.name }

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("@every 1h", &countingJob{name: "a"}))
	require.NoError(t, s.AddJob("", &countingJob{name: "disabled"}))
	assert.Error(t, s.AddJob("@every 1h", &countingJob{name: "a"}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{name: "b"}))

	assert.Equal(t, []string{"a"}, s.Jobs())
	assert.Equal(t, []string{"a", "disabled"}, s.Available())
}

func TestScheduler_RunsJobsAndSurvivesFailures(t *testing.T) {
	s := New(zerolog.Nop())
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("nope")}
	panicking := &countingJob{name: "panicking", panic: true}

	require.NoError(t, s.AddJob("@every 1s", ok))
	require.NoError(t, s.AddJob("@every 1s", failing))
	require.NoError(t, s.AddJob("@every 1s", panicking))

	s.Start()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&ok.runs) > 0 &&
			atomic.LoadInt32(&failing.runs) > 0 &&
			atomic.LoadInt32(&panicking.runs) > 0
	}, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "x", err: errors.New("failed")}
	assert.EqualError(t, s.RunNow(job), "failed")
	assert.Equal(t, int32(1), job.runs)
}

func TestScheduler_RunByName(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "manual"}
	require.NoError(t, s.AddJob("", job))

	require.NoError(t, s.RunByName("manual"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
	assert.ErrorIs(t, s.RunByName("missing"), ErrUnknownJob)
}

func TestCheckDatabasesJob(t *testing.T) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "history.db"),
		Profile: database.ProfileJournal,
		Name:    "history",
	})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	job := NewCheckDatabasesJob(map[string]*database.DB{"history": db, "cache": nil}, zerolog.Nop())
	assert.Equal(t, "check_databases", job.Name())
	assert.NoError(t, job.Run())
}
