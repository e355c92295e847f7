// Package sonos discovers and controls Sonos zone players on the local
// network. Protocol plumbing (SSDP discovery, SOAP control) is delegated to
// goupnp; this package layers the grouping and announcement semantics on top.
package sonos

// Transport states reported by a player's AVTransport service.
const (
	StatePlaying       = "PLAYING"
	StatePaused        = "PAUSED_PLAYBACK"
	StateStopped       = "STOPPED"
	StateTransitioning = "TRANSITIONING"
)

// Info identifies a zone player on the network.
type Info struct {
	Name    string // room name, e.g. "Kitchen"
	Address string // IP address
	UID     string // player UUID, e.g. "RINCON_000E58..."
}

// Speaker is the capability surface an announcement needs from a zone
// player. The UPnP backend implements it against real hardware; tests
// substitute fakes.
type Speaker interface {
	Info() Info

	Volume() (int, error)
	SetVolume(v int) error

	StatusLight() (bool, error)
	SetStatusLight(on bool) error

	TransportInfo() (TransportInfo, error)
	PositionInfo() (PositionInfo, error)

	PlayURI(uri string) error
	Pause() error
	Seek(position string) error

	// Join makes this player a member of the group coordinated by uid.
	Join(coordinatorUID string) error
	// Unjoin makes this player the coordinator of its own standalone group.
	Unjoin() error

	// Group returns the zone group this player currently belongs to.
	Group() (*Group, error)
}

// TransportInfo mirrors the AVTransport GetTransportInfo response.
type TransportInfo struct {
	State  string
	Status string
	Speed  string
}

// PositionInfo carries the AVTransport GetPositionInfo fields used for state
// capture. RelTime is a "H:MM:SS" offset, or "NOT_IMPLEMENTED" for
// non-seekable sources such as radio streams.
type PositionInfo struct {
	TrackURI string
	RelTime  string
	Duration string
}

// GroupCoordinator resolves a speaker to the coordinator of its current
// group. An ungrouped speaker resolves to itself, as does a speaker whose
// coordinator was not among the discovered set.
func GroupCoordinator(sp Speaker, all []Speaker) (Speaker, error) {
	g, err := sp.Group()
	if err != nil {
		return sp, err
	}
	if g.Coordinator == sp.Info().UID {
		return sp, nil
	}
	for _, other := range all {
		if other.Info().UID == g.Coordinator {
			return other, nil
		}
	}
	return sp, nil
}

// IsHomeTheater reports whether the speaker coordinates a bonded set of more
// than one unit (soundbar plus sub or surrounds). Such devices often cannot
// act as plain group members, so grouping prefers them as coordinator.
func IsHomeTheater(sp Speaker) bool {
	g, err := sp.Group()
	if err != nil {
		return false
	}
	return g.Coordinator == sp.Info().UID && len(g.Members) > 1
}
