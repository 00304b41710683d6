package scripts

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/batchkit/batchkit/pkg/batch"
)

// SplitMode selects how the target size of a command split is interpreted.
type SplitMode int

// Split modes
const (
	// ByCount splits into files of n commands each
	ByCount SplitMode = iota
	// ByFiles splits into n files
	ByFiles
)

// Split divides commands into chunks. With ByCount, n is the number of
// commands per chunk and ceil(len(cmds)/n) chunks are produced; with
// ByFiles, n is the target chunk count. When deal is true the commands are
// distributed round-robin across the chunks, as cards would be dealt, so
// long- and short-running jobs spread evenly across the output files instead
// of clustering in submission order. The chunk contents always total the
// input exactly.
func Split(cmds []string, mode SplitMode, n int, deal bool) ([][]string, error) {
	if n <= 0 {
		return nil, batch.NewConfigError("split size must be greater than zero, got %d", n)
	}
	if len(cmds) == 0 {
		return nil, nil
	}

	perChunk := n
	if mode == ByFiles {
		perChunk = (len(cmds) + n - 1) / n
	}
	nChunks := (len(cmds) + perChunk - 1) / perChunk

	chunks := make([][]string, nChunks)
	if deal {
		for i, cmd := range cmds {
			chunks[i%nChunks] = append(chunks[i%nChunks], cmd)
		}
		return chunks, nil
	}

	for i := range chunks {
		low := i * perChunk
		high := low + perChunk
		if high > len(cmds) {
			high = len(cmds)
		}
		chunks[i] = append([]string(nil), cmds[low:high]...)
	}
	return chunks, nil
}

// SplitFiles splits commands and writes each chunk to <base>_<i><ext>
// derived from outPath, numbering from 1, plus a <base>_filelst<ext> file
// listing the chunk files. The chunk file paths are returned.
func SplitFiles(cmds []string, outPath string, mode SplitMode, n int, deal bool) ([]string, error) {
	chunks, err := Split(cmds, mode, n, deal)
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(outPath)
	base := strings.TrimSuffix(outPath, ext)

	outFiles := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		name := fmt.Sprintf("%s_%d%s", base, i+1, ext)
		if err := WriteLines(chunk, name); err != nil {
			return nil, err
		}
		outFiles = append(outFiles, name)
	}

	listFile := fmt.Sprintf("%s_filelst%s", base, ext)
	if err := WriteLines(outFiles, listFile); err != nil {
		return nil, err
	}
	return outFiles, nil
}

// Prefix prepends a fixed string, such as a container-exec invocation, to
// every command. The input is passed through unchanged when prefix is empty.
func Prefix(cmds []string, prefix string) []string {
	if prefix == "" {
		return cmds
	}
	out := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, fmt.Sprintf("%s %s", prefix, cmd))
	}
	return out
}

// FilterComments drops blank lines and lines containing a shell comment.
func FilterComments(cmds []string) []string {
	out := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		if cmd == "" || strings.Contains(cmd, "#") {
			continue
		}
		out = append(out, cmd)
	}
	return out
}
