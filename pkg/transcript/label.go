package transcript

import (
	"path/filepath"
	"strings"
)

// ProjectLabel derives the human project name for an event: the base of the
// working directory when the event carries one, else a best effort from the
// encoded project directory the transcript lives in, else "unknown".
func (e *Event) ProjectLabel() string {
	if e.Cwd != "" {
		base := filepath.Base(e.Cwd)
		if base != "" && base != "." && base != string(filepath.Separator) {
			return base
		}
	}
	if label := labelFromProjectDir(e.SourcePath); label != "" {
		return label
	}
	return "unknown"
}

// labelFromProjectDir recovers a label from the directory naming scheme
// under ~/.claude/projects: the absolute path with separators replaced by
// dashes ("-Users-x-dev-myproj"). Dashes inside a path segment are
// indistinguishable from separators, so only the trailing segment is kept.
func labelFromProjectDir(sourcePath string) string {
	if sourcePath == "" {
		return ""
	}
	dir := filepath.Base(filepath.Dir(sourcePath))
	dir = strings.TrimPrefix(dir, "-")
	if dir == "" || dir == "." {
		return ""
	}
	parts := strings.Split(dir, "-")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}
