package storage

import (
	"path/filepath"
	"time"
	"unicode/utf8"
)

const (
	// TimestampLayout prefixes stored names; microseconds keep back-to-back
	// uploads of the same basename apart.
	TimestampLayout = "20060102_150405.000000"

	// MaxStoredNameLength is the common filesystem NAME_MAX.
	MaxStoredNameLength = 255

	// extensions longer than this are cut along with the stem
	maxKeptExtension = 32
)

// TimestampNamer derives stored names as "<timestamp>_<basename>".
type TimestampNamer struct {
	Clock func() time.Time
}

func (n TimestampNamer) now() time.Time {
	if n.Clock == nil {
		return time.Now()
	}
	return n.Clock()
}

// Name returns the stored name for basename at t, at most
// MaxStoredNameLength bytes. A long basename loses the end of its stem;
// its extension is kept.
func (n TimestampNamer) Name(basename string, t time.Time) string {
	prefix := t.Format(TimestampLayout) + "_"
	return prefix + fitBasename(basename, MaxStoredNameLength-len(prefix))
}

// Candidates yields stored names starting at the current clock reading,
// advancing one microsecond per attempt.
func (n TimestampNamer) Candidates(basename string, attempts int) []string {
	t := n.now()
	out := make([]string, 0, attempts)
	for i := 0; i < attempts; i++ {
		out = append(out, n.Name(basename, t.Add(time.Duration(i)*time.Microsecond)))
	}
	return out
}

func fitBasename(base string, budget int) string {
	if len(base) <= budget {
		return base
	}
	ext := filepath.Ext(base)
	if len(ext) > maxKeptExtension || len(ext) >= budget {
		ext = ""
	}
	stem := base[:len(base)-len(ext)]
	keep := budget - len(ext)
	for keep > 0 && !utf8.RuneStart(stem[keep]) {
		keep--
	}
	return stem[:keep] + ext
}
