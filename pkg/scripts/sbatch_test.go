package scripts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchkit/batchkit/pkg/batch"
)

func testSpec() *Spec {
	return &Spec{
		Partition:    "htc",
		JobName:      "classify_tiles",
		LogFileOut:   "logs/out.log",
		LogFileErr:   "logs/err.log",
		Time:         "12:00:00",
		MemPerCoreMB: 4096,
		NCores:       40,
		NCoresNode:   20,
		EnvSetup:     "module load parallel",
	}
}

func TestRenderSbatchDefaults(t *testing.T) {
	script, err := RenderSbatch(testSpec(), "cmds.sh", "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash --login\n"))
	assert.Contains(t, script, "#SBATCH --partition=htc")
	assert.Contains(t, script, "#SBATCH --job-name=classify_tiles")
	assert.Contains(t, script, "#SBATCH --output=logs/out.log.%J")
	assert.Contains(t, script, "#SBATCH --error=logs/err.log.%J")
	assert.Contains(t, script, "#SBATCH --time=12:00:00")
	assert.Contains(t, script, "#SBATCH --ntasks=40")
	assert.Contains(t, script, "#SBATCH --mem-per-cpu=4096")
	assert.Contains(t, script, "#SBATCH --ntasks-per-node=20")
	assert.Contains(t, script, "module load parallel")
	assert.Contains(t, script, "parallel -N 1 --delay .2 -j $SLURM_NTASKS < cmds.sh")
	assert.NotContains(t, script, "--mail-type")
}

func TestRenderSbatchEmailBlock(t *testing.T) {
	spec := testSpec()
	spec.EmailAddress = "ops@example.org"
	spec.EmailType = EmailEnd

	script, err := RenderSbatch(spec, "cmds.sh", "")
	require.NoError(t, err)
	assert.Contains(t, script, "#SBATCH --mail-type=END")
	assert.Contains(t, script, "#SBATCH --mail-user=ops@example.org")
}

func TestRenderSbatchSanitisesJobName(t *testing.T) {
	spec := testSpec()
	spec.JobName = "my job!(v2)"

	script, err := RenderSbatch(spec, "cmds.sh", "")
	require.NoError(t, err)
	assert.Contains(t, script, "#SBATCH --job-name=myjobv2")
}

func TestRenderCommandSbatch(t *testing.T) {
	script, err := RenderCommandSbatch(testSpec(), "train --epochs 10", "")
	require.NoError(t, err)
	assert.Contains(t, script, "train --epochs 10")
	assert.NotContains(t, script, "ntasks-per-node")
	assert.NotContains(t, script, "parallel")
}

func TestRenderSbatchCustomTemplateMissingPlaceholder(t *testing.T) {
	dir := t.TempDir()
	// Drops NCores, keeps everything else.
	tmpl := `#!/bin/bash --login
#SBATCH --job-name={{.JobName}}
#SBATCH --output={{.LogFileOut}}
#SBATCH --error={{.LogFileErr}}
#SBATCH --time={{.Time}}
#SBATCH --mem-per-cpu={{.MemPerCoreMB}}
#SBATCH --ntasks-per-node={{.NCoresNode}}
{{.EnvSetup}}
parallel < {{.CmdsFile}}
`
	tmplPath := filepath.Join(dir, "custom.tmpl")
	require.NoError(t, os.WriteFile(tmplPath, []byte(tmpl), 0o644))

	_, err := RenderSbatch(testSpec(), "cmds.sh", tmplPath)
	require.Error(t, err)
	var cfgErr *batch.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Msg, "NCores")
}

func TestGenerateSbatchRejectsBadTemplateBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.sh")
	require.NoError(t, WriteLines([]string{"run --job 1"}, input))

	tmplPath := filepath.Join(dir, "bad.tmpl")
	require.NoError(t, os.WriteFile(tmplPath, []byte("#!/bin/bash\n"), 0o644))

	outCmds := filepath.Join(dir, "out_cmds.sh")
	outSbatch := filepath.Join(dir, "out.sbatch")
	err := GenerateSbatch(testSpec(), input, outCmds, outSbatch, tmplPath, "")
	require.Error(t, err)

	_, statErr := os.Stat(outCmds)
	assert.True(t, os.IsNotExist(statErr), "commands file written despite template error")
	_, statErr = os.Stat(outSbatch)
	assert.True(t, os.IsNotExist(statErr), "sbatch file written despite template error")
}

func TestSrunWrapper(t *testing.T) {
	got := SrunWrapper([]string{"run --job 1", "run --job 2"})
	require.Len(t, got, 2)
	assert.Equal(t, "srun -n1 -N1 --exclusive run --job 1", got[0])
	assert.Equal(t, "srun -n1 -N1 --exclusive run --job 2", got[1])
}

func TestGenerateSbatchWritesWrappedCommands(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.sh")
	require.NoError(t, WriteLines([]string{"run --job 1", "run --job 2"}, input))

	outCmds := filepath.Join(dir, "out_cmds.sh")
	outSbatch := filepath.Join(dir, "out.sbatch")
	require.NoError(t, GenerateSbatch(testSpec(), input, outCmds, outSbatch, "", "singularity exec img.sif"))

	cmds, err := ReadLines(outCmds)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "srun -n1 -N1 --exclusive singularity exec img.sif run --job 1", cmds[0])

	script, err := os.ReadFile(outSbatch)
	require.NoError(t, err)
	assert.Contains(t, string(script), "< "+outCmds)
}

func TestGenerateSbatchMulti(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for i := 1; i <= 3; i++ {
		path := filepath.Join(dir, "in_"+string(rune('0'+i))+".sh")
		require.NoError(t, WriteLines([]string{"run"}, path))
		inputs = append(inputs, path)
	}

	outCmds := filepath.Join(dir, "cmds.sh")
	outSbatch := filepath.Join(dir, "sub.sbatch")
	require.NoError(t, GenerateSbatchMulti(testSpec(), inputs, outCmds, outSbatch, "", ""))

	runAll, err := ReadLines(filepath.Join(dir, "sub_runall.sbatch"))
	require.NoError(t, err)
	require.Len(t, runAll, 3)
	assert.Equal(t, "sbatch "+filepath.Join(dir, "sub_1.sbatch"), runAll[0])

	for i := 1; i <= 3; i++ {
		_, err := os.Stat(filepath.Join(dir, "sub_"+string(rune('0'+i))+".sbatch"))
		assert.NoError(t, err)
	}
}

func TestLoadSpecMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sbatch": {"jobname": "x", "time": "1:00:00"}}`), 0o644))

	_, err := LoadSpec(path)
	require.Error(t, err)
	var cfgErr *batch.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	// Missing keys are reported sorted.
	assert.Contains(t, cfgErr.Msg, "env_setup, logfileerr, logfileout, mem_per_core_mb, ncores, ncores_node")
}

func TestLoadSpecDefaultsPartition(t *testing.T) {
	dir := t.TempDir()
	cfg := `{"sbatch": {
		"jobname": "x", "logfileout": "o", "logfileerr": "e", "time": "1:00:00",
		"mem_per_core_mb": 1024, "ncores": 4, "ncores_node": 2, "env_setup": "true"
	}}`
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	spec, err := LoadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPartition, spec.Partition)
}

func TestValidateEmailSettings(t *testing.T) {
	spec := testSpec()
	spec.EmailAddress = "ops@example.org"

	err := spec.Validate()
	require.Error(t, err)

	spec.EmailType = "WEEKLY"
	require.Error(t, spec.Validate())

	spec.EmailType = EmailAll
	require.NoError(t, spec.Validate())
}
