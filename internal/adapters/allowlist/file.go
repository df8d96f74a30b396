package allowlist

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// FileSource reads one address per line. Blank lines and lines starting with '#' are skipped,
// and a trailing "# comment" is stripped.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Load(ctx context.Context) ([]string, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open allow-list file: %w", err)
	}
	defer file.Close()

	var entries []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read allow-list file: %w", err)
	}
	return entries, nil
}

func (f *FileSource) Name() string { return "file" }
