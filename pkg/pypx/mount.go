package pypx

import (
	"path/filepath"
	"strings"
)

// Translate re-roots a path recorded by the archive writer, which sees the
// data directory mounted at writerRoot, onto readerRoot where this process
// sees it. It returns false when writerPath is not strictly inside writerRoot.
func Translate(writerPath, writerRoot, readerRoot string) (string, bool) {
	rel, err := filepath.Rel(filepath.Clean(writerRoot), filepath.Clean(writerPath))
	if err != nil {
		return "", false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(readerRoot, rel), true
}
