package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"cratesync/internal/matcher"
	"cratesync/internal/models"
	"cratesync/internal/services"
	"cratesync/internal/shared"
)

var _ services.Resolver = (*InteractiveResolver)(nil)

// InteractiveResolver resolves uncertain matches by running a candidate
// picker in the terminal, one track at a time.
type InteractiveResolver struct{}

func NewInteractiveResolver() *InteractiveResolver {
	return &InteractiveResolver{}
}

// Resolve blocks until the user decides what to do with the track. A
// cancelled context skips the remaining tracks.
func (r *InteractiveResolver) Resolve(ctx context.Context, track models.LocalTrack, ranked []matcher.Scored) (services.Resolution, error) {
	m := newPickerModel(track, ranked)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || ctx.Err() != nil {
			return services.Resolution{Kind: services.ResolutionSkipRemaining}, nil
		}
		return services.Resolution{}, fmt.Errorf("candidate picker failed: %w", err)
	}

	pm, ok := final.(*pickerModel)
	if !ok {
		return services.Resolution{Kind: services.ResolutionSkip}, nil
	}
	return pm.resolution, nil
}

// pickerModel is the bubbletea model for one track's candidate list.
type pickerModel struct {
	track      models.LocalTrack
	candidates list.Model
	resolution services.Resolution
	done       bool
	width      int
	height     int
	help       help.Model
	keys       keyMap
}

func newPickerModel(track models.LocalTrack, ranked []matcher.Scored) *pickerModel {
	items := make([]list.Item, len(ranked))
	for i, scored := range ranked {
		items[i] = candidateItem{scored: scored}
	}

	candidates := list.New(items, list.NewDefaultDelegate(), 0, 0)
	candidates.Title = fmt.Sprintf("Candidates for %s - %s", track.Artist, track.Title)
	candidates.SetShowHelp(false)

	return &pickerModel{
		track:      track,
		candidates: candidates,
		resolution: services.Resolution{Kind: services.ResolutionSkip},
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

func (m *pickerModel) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.candidates.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.choose):
			if selected, ok := m.candidates.SelectedItem().(candidateItem); ok {
				m.resolution = services.Resolution{
					Kind: services.ResolutionChoose,
					URI:  selected.scored.Candidate.URI,
				}
				m.done = true
				return m, tea.Quit
			}

		case key.Matches(msg, m.keys.notAvailable):
			m.resolution = services.Resolution{Kind: services.ResolutionNotAvailable}
			m.done = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.skip):
			m.resolution = services.Resolution{Kind: services.ResolutionSkip}
			m.done = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.skipAll), key.Matches(msg, m.keys.quit):
			m.resolution = services.Resolution{Kind: services.ResolutionSkipRemaining}
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.candidates, cmd = m.candidates.Update(msg)
	return m, cmd
}

// View renders the track header, the candidate list, and contextual help.
func (m *pickerModel) View() string {
	if m.done {
		return ""
	}

	duration := ""
	if m.track.Duration > 0 {
		duration = fmt.Sprintf(" [%s]", shared.FormatDuration(m.track.Duration))
	}
	header := styles.title.Render(fmt.Sprintf("%s - %s%s", m.track.Artist, m.track.Title, duration))
	helpView := styles.help.Render(m.help.ShortHelpView(m.keys.ShortHelp()))

	return fmt.Sprintf("%s\n%s\n\n%s", header, m.candidates.View(), helpView)
}
