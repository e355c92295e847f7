package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/blacktop/sonos-say/internal/sonos"
)

var (
	listHeaderStyle = lipgloss.NewStyle().Bold(true)
	listCoordStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	listMemberStyle = lipgloss.NewStyle().Faint(true)
)

// deviceGroups maps each coordinator's room name to the names of the
// speakers it fronts, matching how the speakers present themselves to the
// user's controller app. A speaker whose topology cannot be read is shown
// standalone.
func deviceGroups(speakers []sonos.Speaker) map[string][]string {
	groups := make(map[string][]string)
	for _, sp := range speakers {
		name := sp.Info().Name
		coord, err := sonos.GroupCoordinator(sp, speakers)
		if err != nil {
			groups[name] = append(groups[name], name)
			continue
		}
		groups[coord.Info().Name] = append(groups[coord.Info().Name], name)
	}
	return groups
}

// renderDeviceList renders one line per group: a coordinator with its
// members, or a standalone speaker.
func renderDeviceList(speakers []sonos.Speaker) string {
	groups := deviceGroups(speakers)

	var b strings.Builder
	b.WriteString(listHeaderStyle.Render(
		fmt.Sprintf("Found %d device(s) in %d group(s):", len(speakers), len(groups))))
	b.WriteString("\n")

	for _, coord := range slices.Sorted(maps.Keys(groups)) {
		members := groups[coord]
		slices.Sort(members)
		if len(members) > 1 {
			b.WriteString(fmt.Sprintf("  - %s: %s\n",
				listCoordStyle.Render(coord+" (coordinator)"),
				listMemberStyle.Render(strings.Join(members, ", "))))
		} else {
			b.WriteString(fmt.Sprintf("  - %s\n", listCoordStyle.Render(coord+" (standalone)")))
		}
	}
	return b.String()
}
