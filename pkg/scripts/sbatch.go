package scripts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/batchkit/batchkit/pkg/batch"
)

// defaultParallelTemplate renders an sbatch script that fans a command file
// out with GNU parallel, bounded by the allocated task count.
const defaultParallelTemplate = `#!/bin/bash --login

#SBATCH --partition={{.Partition}}
#SBATCH --job-name={{.JobName}}
#SBATCH --output={{.LogFileOut}}.%J
#SBATCH --error={{.LogFileErr}}.%J
#SBATCH --time={{.Time}}
#SBATCH --ntasks={{.NCores}}
#SBATCH --mem-per-cpu={{.MemPerCoreMB}}
#SBATCH --ntasks-per-node={{.NCoresNode}}
{{- if .EmailAddress}}
#SBATCH --mail-type={{.EmailType}}
#SBATCH --mail-user={{.EmailAddress}}
{{- end}}

{{.EnvSetup}}

parallel -N 1 --delay .2 -j $SLURM_NTASKS < {{.CmdsFile}}
`

// defaultCommandTemplate renders an sbatch script executing one command.
const defaultCommandTemplate = `#!/bin/bash --login

#SBATCH --partition={{.Partition}}
#SBATCH --job-name={{.JobName}}
#SBATCH --output={{.LogFileOut}}.%J
#SBATCH --error={{.LogFileErr}}.%J
#SBATCH --time={{.Time}}
#SBATCH --ntasks={{.NCores}}
#SBATCH --mem-per-cpu={{.MemPerCoreMB}}
{{- if .EmailAddress}}
#SBATCH --mail-type={{.EmailType}}
#SBATCH --mail-user={{.EmailAddress}}
{{- end}}

{{.EnvSetup}}

{{.Cmd}}
`

// sbatchContext is the substitution context handed to the templates.
type sbatchContext struct {
	Partition    string
	JobName      string
	LogFileOut   string
	LogFileErr   string
	Time         string
	NCores       int
	MemPerCoreMB int
	NCoresNode   int
	EnvSetup     string
	EmailAddress string
	EmailType    string
	CmdsFile     string
	Cmd          string
}

// Placeholders that every parallel-style template must reference.
var parallelPlaceholders = []string{
	"JobName", "LogFileOut", "LogFileErr", "Time",
	"NCores", "MemPerCoreMB", "NCoresNode", "EnvSetup", "CmdsFile",
}

// Placeholders that every single-command template must reference.
var commandPlaceholders = []string{
	"JobName", "LogFileOut", "LogFileErr", "Time",
	"NCores", "MemPerCoreMB", "EnvSetup", "Cmd",
}

// checkPlaceholders verifies that each required placeholder appears in the
// template text. A custom template missing one is a configuration error, not
// a silent no-op.
func checkPlaceholders(text string, required []string) error {
	var missing []string
	for _, name := range required {
		re := regexp.MustCompile(`\.` + name + `\b`)
		if !re.MatchString(text) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return batch.NewConfigError("template missing required placeholder(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

func render(ctx sbatchContext, templatePath, defaultText string, required []string) (string, error) {
	text := defaultText
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return "", batch.NewConfigError("failed to read template %s: %v", templatePath, err)
		}
		text = string(data)
	}
	if err := checkPlaceholders(text, required); err != nil {
		return "", err
	}

	tmpl, err := template.New("sbatch").Parse(text)
	if err != nil {
		return "", batch.NewConfigError("failed to parse template: %v", err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, ctx); err != nil {
		return "", batch.NewConfigError("failed to render template: %v", err)
	}
	out := b.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out, nil
}

func contextFromSpec(spec *Spec) sbatchContext {
	return sbatchContext{
		Partition:    spec.Partition,
		JobName:      CheckJobName(spec.JobName),
		LogFileOut:   spec.LogFileOut,
		LogFileErr:   spec.LogFileErr,
		Time:         spec.Time,
		NCores:       spec.NCores,
		MemPerCoreMB: spec.MemPerCoreMB,
		NCoresNode:   spec.NCoresNode,
		EnvSetup:     spec.EnvSetup,
		EmailAddress: spec.EmailAddress,
		EmailType:    spec.EmailType,
	}
}

// RenderSbatch renders an sbatch submission script whose payload runs the
// commands in cmdsFile through GNU parallel. A non-empty templatePath
// overrides the built-in template and is validated for the required
// placeholders before anything is written.
func RenderSbatch(spec *Spec, cmdsFile, templatePath string) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	ctx := contextFromSpec(spec)
	ctx.CmdsFile = cmdsFile
	return render(ctx, templatePath, defaultParallelTemplate, parallelPlaceholders)
}

// RenderCommandSbatch renders an sbatch submission script executing a single
// command.
func RenderCommandSbatch(spec *Spec, cmd, templatePath string) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	ctx := contextFromSpec(spec)
	ctx.Cmd = cmd
	return render(ctx, templatePath, defaultCommandTemplate, commandPlaceholders)
}

// SrunWrapper rewrites each command as an exclusive single-task, single-node
// srun invocation, preserving order.
func SrunWrapper(cmds []string) []string {
	out := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, fmt.Sprintf("srun -n1 -N1 --exclusive %s", cmd))
	}
	return out
}

// GenerateSbatch reads a command list, writes its srun-wrapped commands file
// and the sbatch script submitting it. An optional prefix, such as a
// container-exec wrapper, is applied to every command first.
func GenerateSbatch(spec *Spec, inputFile, outCmdsFile, outSbatchFile, templatePath, prefix string) error {
	cmds, err := ReadLines(inputFile)
	if err != nil {
		return err
	}
	wrapped := SrunWrapper(Prefix(cmds, prefix))

	script, err := RenderSbatch(spec, outCmdsFile, templatePath)
	if err != nil {
		return err
	}

	if err := WriteLines(wrapped, outCmdsFile); err != nil {
		return err
	}
	if err := os.WriteFile(outSbatchFile, []byte(script), 0o644); err != nil {
		return fmt.Errorf("failed to write sbatch script %s: %w", outSbatchFile, err)
	}
	return nil
}

// GenerateSbatchMulti runs GenerateSbatch for each input file, numbering the
// command and sbatch outputs, and writes a <base>_runall script of sbatch
// submissions covering them all.
func GenerateSbatchMulti(spec *Spec, inputFiles []string, outCmdsBase, outSbatchBase, templatePath, prefix string) error {
	cmdsExt := filepath.Ext(outCmdsBase)
	cmdsBase := strings.TrimSuffix(outCmdsBase, cmdsExt)
	sbatchExt := filepath.Ext(outSbatchBase)
	sbatchBase := strings.TrimSuffix(outSbatchBase, sbatchExt)

	var sbatchCmds []string
	for i, inputFile := range inputFiles {
		outCmdsFile := fmt.Sprintf("%s_%d%s", cmdsBase, i+1, cmdsExt)
		outSbatchFile := fmt.Sprintf("%s_%d%s", sbatchBase, i+1, sbatchExt)
		if err := GenerateSbatch(spec, inputFile, outCmdsFile, outSbatchFile, templatePath, prefix); err != nil {
			return err
		}
		sbatchCmds = append(sbatchCmds, fmt.Sprintf("sbatch %s", outSbatchFile))
	}

	runAllFile := fmt.Sprintf("%s_runall%s", sbatchBase, sbatchExt)
	return WriteLines(sbatchCmds, runAllFile)
}
