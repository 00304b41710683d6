package scripts

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/batchkit/batchkit/pkg/batch"
)

// Email notification types accepted in the sbatch configuration.
const (
	// EmailAll requests notification for all job state changes
	EmailAll = "ALL"
	// EmailEnd requests notification only when the job ends
	EmailEnd = "END"
)

// DefaultPartition is used when the configuration does not name one.
const DefaultPartition = "compute"

// Spec is the configuration consumed when rendering sbatch submission
// scripts. It is external configuration, validated at load time before any
// script is rendered.
type Spec struct {
	Partition    string `json:"partition,omitempty"`
	JobName      string `json:"jobname"`
	LogFileOut   string `json:"logfileout"`
	LogFileErr   string `json:"logfileerr"`
	Time         string `json:"time"`
	MemPerCoreMB int    `json:"mem_per_core_mb"`
	NCores       int    `json:"ncores"`
	NCoresNode   int    `json:"ncores_node"`
	EnvSetup     string `json:"env_setup"`
	EmailAddress string `json:"email_address,omitempty"`
	EmailType    string `json:"email_type,omitempty"`
}

// specFile is the on-disk layout of the configuration document.
type specFile struct {
	Sbatch *Spec `json:"sbatch"`
}

// LoadSpec reads and validates a JSON configuration file of the form
// {"sbatch": {...}}.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, batch.NewConfigError("failed to read config file %s: %v", path, err)
	}

	var doc specFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, batch.NewConfigError("failed to parse config file %s: %v", path, err)
	}
	if doc.Sbatch == nil {
		return nil, batch.NewConfigError("config file %s has no 'sbatch' section", path)
	}

	spec := doc.Sbatch
	if spec.Partition == "" {
		spec.Partition = DefaultPartition
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks the required configuration keys are present and the email
// settings are consistent.
func (s *Spec) Validate() error {
	var missing []string
	for key, ok := range map[string]bool{
		"jobname":         s.JobName != "",
		"logfileout":      s.LogFileOut != "",
		"logfileerr":      s.LogFileErr != "",
		"time":            s.Time != "",
		"mem_per_core_mb": s.MemPerCoreMB > 0,
		"ncores":          s.NCores > 0,
		"ncores_node":     s.NCoresNode > 0,
		"env_setup":       s.EnvSetup != "",
	} {
		if !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		// Map iteration order is not stable; sort for a deterministic message.
		sort.Strings(missing)
		return batch.NewConfigError("sbatch config missing required key(s): %s", strings.Join(missing, ", "))
	}

	if s.EmailAddress != "" {
		switch s.EmailType {
		case EmailAll, EmailEnd:
		case "":
			return batch.NewConfigError("email_type is required when email_address is set")
		default:
			return batch.NewConfigError("invalid email_type %q: must be %s or %s", s.EmailType, EmailAll, EmailEnd)
		}
	}
	return nil
}

// CheckJobName strips characters that SLURM job names cannot carry.
func CheckJobName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "job"
	}
	return b.String()
}
