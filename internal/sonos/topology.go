package sonos

import (
	"encoding/xml"
	"fmt"
	"slices"
)

// Group is one Sonos zone group: a coordinator plus every member, including
// bonded satellites that the controller UI hides.
type Group struct {
	ID          string
	Coordinator string // coordinator player UUID
	Members     []Member
}

// Member is a single player inside a zone group.
type Member struct {
	UUID      string
	ZoneName  string
	Location  string
	Invisible bool
}

// VisibleNames returns the unique zone names of the group's visible members,
// sorted. Bonded satellites and hidden units are excluded.
func (g *Group) VisibleNames() []string {
	seen := make(map[string]bool, len(g.Members))
	var names []string
	for _, m := range g.Members {
		if m.Invisible || m.ZoneName == "" || seen[m.ZoneName] {
			continue
		}
		seen[m.ZoneName] = true
		names = append(names, m.ZoneName)
	}
	slices.Sort(names)
	return names
}

// HasMember reports whether a zone name appears among the visible members.
func (g *Group) HasMember(zoneName string) bool {
	return slices.Contains(g.VisibleNames(), zoneName)
}

type zoneMemberXML struct {
	UUID       string          `xml:"UUID,attr"`
	ZoneName   string          `xml:"ZoneName,attr"`
	Location   string          `xml:"Location,attr"`
	Invisible  string          `xml:"Invisible,attr"`
	Satellites []zoneMemberXML `xml:"Satellite"`
}

type zoneGroupXML struct {
	Coordinator string          `xml:"Coordinator,attr"`
	ID          string          `xml:"ID,attr"`
	Members     []zoneMemberXML `xml:"ZoneGroupMember"`
}

// ParseZoneGroupState decodes the XML document returned by the
// ZoneGroupTopology GetZoneGroupState action. Recent firmware wraps the
// groups in a <ZoneGroupState> element, older firmware returns the
// <ZoneGroups> element directly; both forms are accepted.
func ParseZoneGroupState(doc string) ([]Group, error) {
	var wrapped struct {
		Groups []zoneGroupXML `xml:"ZoneGroups>ZoneGroup"`
	}
	if err := xml.Unmarshal([]byte(doc), &wrapped); err == nil && len(wrapped.Groups) > 0 {
		return convertGroups(wrapped.Groups), nil
	}

	var bare struct {
		Groups []zoneGroupXML `xml:"ZoneGroup"`
	}
	if err := xml.Unmarshal([]byte(doc), &bare); err != nil {
		return nil, fmt.Errorf("parse zone group state: %w", err)
	}
	return convertGroups(bare.Groups), nil
}

func convertGroups(raw []zoneGroupXML) []Group {
	groups := make([]Group, 0, len(raw))
	for _, zg := range raw {
		g := Group{ID: zg.ID, Coordinator: zg.Coordinator}
		for _, m := range zg.Members {
			g.Members = append(g.Members, Member{
				UUID:      m.UUID,
				ZoneName:  m.ZoneName,
				Location:  m.Location,
				Invisible: m.Invisible == "1",
			})
			// Satellites are bonded units (surrounds, sub); they count as
			// members but are never visible.
			for _, sat := range m.Satellites {
				g.Members = append(g.Members, Member{
					UUID:      sat.UUID,
					ZoneName:  sat.ZoneName,
					Location:  sat.Location,
					Invisible: true,
				})
			}
		}
		groups = append(groups, g)
	}
	return groups
}
