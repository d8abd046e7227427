package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"cratesync/internal/matcher"
	"cratesync/internal/shared"
)

var _ list.Item = candidateItem{}

// candidateItem wraps a scored candidate to implement [list.Item].
type candidateItem struct {
	scored matcher.Scored
}

func (i candidateItem) FilterValue() string { return i.scored.Candidate.Title }

func (i candidateItem) Title() string {
	return fmt.Sprintf("%.3f  %s", i.scored.Score, i.scored.Candidate.Title)
}

func (i candidateItem) Description() string {
	c := i.scored.Candidate
	desc := c.Artist
	if c.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, c.Album)
	}
	if c.Duration > 0 {
		desc = fmt.Sprintf("%s • %s", desc, shared.FormatDuration(c.Duration))
	}
	if !i.scored.DurationOK {
		desc = fmt.Sprintf("%s • duration mismatch", desc)
	}
	return desc
}
