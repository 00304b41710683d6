package runner

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchkit/batchkit/internal/db"
	"github.com/batchkit/batchkit/internal/db/models"
	"github.com/batchkit/batchkit/internal/db/repos"
)

// seedStore creates a file-backed store with one job and returns its path.
func seedStore(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "jobs.db")
	gdb, err := db.New(db.Options{Driver: db.DriverSQLite, Path: dbPath})
	require.NoError(t, err)

	ctx := context.Background()
	store := repos.NewJobRepository(gdb)
	require.NoError(t, store.CreateSchema(ctx))
	require.NoError(t, store.InsertAll(ctx, []*models.Job{
		{ID: 1, Params: models.Params{"input": "scene.kea"}},
	}))
	return dbPath
}

func TestCommandInlineConnectionFlags(t *testing.T) {
	dbPath := seedStore(t)

	proc := &fakeProcessor{required: []string{"input"}, outsOK: true}
	cmd := NewCommand("classify", "test workload", proc)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--driver", "sqlite", "--dbfile", dbPath, "--job", "1", "--params"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "scene.kea")
}

func TestCommandDescriptorFile(t *testing.T) {
	dbPath := seedStore(t)
	infoPath := filepath.Join(filepath.Dir(dbPath), "dbinfo.json")
	info := db.InfoFromOptions(db.Options{Driver: db.DriverSQLite, Path: dbPath})
	require.NoError(t, db.WriteInfoFile(info, infoPath))

	proc := &fakeProcessor{required: []string{"input"}, outsOK: true}
	cmd := NewCommand("classify", "test workload", proc)
	cmd.SetArgs([]string{"--dbinfo", infoPath, "--job", "1"})
	require.NoError(t, cmd.Execute())

	gdb, err := db.New(db.Options{Driver: db.DriverSQLite, Path: dbPath})
	require.NoError(t, err)
	job, err := repos.NewJobRepository(gdb).Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, job.Completed)
}

func TestCommandRequiresStoreLocation(t *testing.T) {
	proc := &fakeProcessor{}
	cmd := NewCommand("classify", "test workload", proc)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--job", "1"})
	require.Error(t, cmd.Execute())
}
