package sonos

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Grouper forms and dissolves temporary playback groups. The settle
// durations exist because joining is asynchronous on real hardware; the
// defaults are empirically chosen and tests shrink them.
type Grouper struct {
	JoinSettle  time.Duration // wait after each join request
	GroupSettle time.Duration // wait before verifying membership
}

// NewGrouper returns a Grouper with hardware-friendly settle times.
func NewGrouper() *Grouper {
	return &Grouper{
		JoinSettle:  500 * time.Millisecond,
		GroupSettle: time.Second,
	}
}

// CheckIfGrouped returns the shared coordinator when every speaker already
// resolves to the same group coordinator, so an existing user-created group
// can be reused instead of rebuilt and torn down. It returns nil for mixed
// coordinators or empty input; a single speaker is trivially its own group.
func CheckIfGrouped(speakers []Speaker) Speaker {
	if len(speakers) == 0 {
		return nil
	}
	if len(speakers) == 1 {
		return speakers[0]
	}

	first, err := GroupCoordinator(speakers[0], speakers)
	if err != nil {
		return nil
	}
	for _, sp := range speakers[1:] {
		coord, err := GroupCoordinator(sp, speakers)
		if err != nil {
			return nil
		}
		if coord.Info().Name != first.Info().Name {
			return nil
		}
	}
	return first
}

// CreateGroup joins the given speakers into one group and returns its
// coordinator. A home-theater device is preferred as coordinator when
// present, otherwise the first speaker. Because joins are eventually
// consistent, membership is verified by re-reading the coordinator's group
// after the settle period; targets missing from the result are logged, not
// retried.
func (g *Grouper) CreateGroup(speakers []Speaker) Speaker {
	if len(speakers) == 0 {
		return nil
	}
	if len(speakers) == 1 {
		return speakers[0]
	}

	var coordinator Speaker
	for _, sp := range speakers {
		if IsHomeTheater(sp) {
			coordinator = sp
			log.Info("Using home theater device as coordinator", "name", sp.Info().Name)
			break
		}
	}
	if coordinator == nil {
		coordinator = speakers[0]
		log.Info("Using first device as coordinator", "name", coordinator.Info().Name)
	}

	for _, sp := range speakers {
		if sp.Info().Name == coordinator.Info().Name {
			continue
		}
		log.Info("Joining device to group", "name", sp.Info().Name)
		if err := sp.Join(coordinator.Info().UID); err != nil {
			log.Error("Could not join device to group", "name", sp.Info().Name, "error", err)
			continue
		}
		time.Sleep(g.JoinSettle)
	}

	time.Sleep(g.GroupSettle)

	group, err := coordinator.Group()
	if err != nil {
		log.Warn("Could not verify group membership", "error", err)
		return coordinator
	}
	visible := group.VisibleNames()
	log.Info("Group formed", "devices", strings.Join(visible, ", "))

	joined := make(map[string]bool, len(visible))
	for _, name := range visible {
		joined[name] = true
	}
	for _, sp := range speakers {
		if !joined[sp.Info().Name] {
			log.Warn("Device did not join group", "name", sp.Info().Name)
		}
	}
	return coordinator
}

// UngroupAll makes every speaker a standalone group again, restoring the
// topology that existed before a temporary group was formed. Failures are
// logged and skipped; an already-standalone speaker is not worth surfacing.
func (g *Grouper) UngroupAll(speakers []Speaker) {
	var eg errgroup.Group
	for _, sp := range speakers {
		eg.Go(func() error {
			if err := sp.Unjoin(); err != nil {
				log.Debug("Unjoin failed", "name", sp.Info().Name, "error", err)
			}
			return nil
		})
	}
	eg.Wait()
}
