package models

import "fmt"

// EditOpKind enumerates playlist edit operations.
type EditOpKind int

const (
	// OpClear empties the remote playlist (overwrite mode).
	OpClear EditOpKind = iota
	// OpAppend adds a track at the end.
	OpAppend
	// OpRemove deletes the track at Pos (position in the pre-edit list).
	OpRemove
	// OpInsert places a track at Pos (position in the post-edit list).
	OpInsert
)

func (k EditOpKind) String() string {
	switch k {
	case OpClear:
		return "clear"
	case OpAppend:
		return "append"
	case OpRemove:
		return "remove"
	case OpInsert:
		return "insert"
	default:
		return "unknown"
	}
}

// EditOp is one step of an edit script.
type EditOp struct {
	Kind EditOpKind
	URI  string // empty for clear
	Pos  int    // meaningful for remove/insert
}

func (o EditOp) String() string {
	switch o.Kind {
	case OpClear:
		return "clear"
	case OpAppend:
		return fmt.Sprintf("append %s", o.URI)
	case OpRemove:
		return fmt.Sprintf("remove %s @%d", o.URI, o.Pos)
	case OpInsert:
		return fmt.Sprintf("insert %s @%d", o.URI, o.Pos)
	default:
		return "unknown"
	}
}

// EditScript transforms a remote playlist's track list into the desired local
// order. Target carries the full desired order so collaborators that cannot
// express positional edits can fall back to a verbatim rebuild.
type EditScript struct {
	PlaylistName string
	Ops          []EditOp
	Target       []string
}

// Empty reports whether the script changes anything.
func (s EditScript) Empty() bool { return len(s.Ops) == 0 }

// String renders the script one operation per line, stable across runs: the
// dry-run report and the pre-apply log print identical text for identical
// inputs.
func (s EditScript) String() string {
	if s.Empty() {
		return fmt.Sprintf("%s: no changes", s.PlaylistName)
	}
	out := s.PlaylistName + ":"
	for _, op := range s.Ops {
		out += "\n  " + op.String()
	}
	return out
}
