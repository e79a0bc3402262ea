package covdata

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/tools/cover"
)

// ErrBadProfile signals a text profile that `go tool covdata textfmt` could not have written.
var ErrBadProfile = errors.New("covdata: malformed profile")

// ProfileLine is one block of a text coverage profile.
type ProfileLine struct {
	Location   string // "<file>:<startline>.<col>,<endline>.<col>"
	Statements int
	Hits       int64
}

// Covered reports whether the block executed at least once.
func (l ProfileLine) Covered() bool {
	return l.Hits > 0
}

// ParseProfile parses a text profile as rendered by `go tool covdata textfmt`: a `mode:` line
// followed by one block per line. Blocks come back ordered by file, then position.
func ParseProfile(report []byte) ([]ProfileLine, error) {
	profiles, err := cover.ParseProfilesFromReader(bytes.NewReader(report))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadProfile, err)
	}
	var lines []ProfileLine
	for _, p := range profiles {
		for _, b := range p.Blocks {
			lines = append(lines, ProfileLine{
				Location:   fmt.Sprintf("%s:%d.%d,%d.%d", p.FileName, b.StartLine, b.StartCol, b.EndLine, b.EndCol),
				Statements: b.NumStmt,
				Hits:       int64(b.Count),
			})
		}
	}
	return lines, nil
}
