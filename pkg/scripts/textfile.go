// Package scripts turns flat shell command lists into executable artifacts:
// split command files, GNU parallel wrappers and SLURM sbatch submission
// scripts. It performs pure text transformation and touches no database.
package scripts

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadLines reads a command-list file into a slice, one command per line.
// Blank lines are not significant input and are filtered.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open commands file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commands file %s: %w", path, err)
	}
	return lines, nil
}

// WriteLines writes a slice to a text file, one line per item.
func WriteLines(lines []string, path string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
