package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
)

// writeReport renders report as two-space indented JSON to path, creating parent directories, or to
// stdout when path is empty.
func writeReport(path string, report domain.DigestReport, stdout io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	path = strings.TrimSpace(path)
	if path == "" {
		if stdout == nil {
			stdout = os.Stdout
		}
		_, err := stdout.Write(data)
		return err
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
