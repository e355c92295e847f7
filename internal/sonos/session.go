package sonos

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// PlaybackState is a snapshot of what a speaker was doing before an
// announcement. It is captured once and consumed once by RestoreState.
type PlaybackState struct {
	TransportState string
	TrackURI       string
	Position       string
	Volume         int
	StatusLight    bool
}

// Empty reports whether the snapshot carries nothing to restore. A
// successful capture always records a transport state.
func (s PlaybackState) Empty() bool { return s.TransportState == "" }

// Session plays an announcement on a speaker and puts the speaker back the
// way it was. The intervals are empirically chosen defaults; tests shrink
// them.
type Session struct {
	PollInterval time.Duration // transport poll step while waiting for the announcement to finish
	MaxWait      time.Duration // ceiling on waiting for the announcement to finish
	RestoreDelay time.Duration // pause before state restoration
}

// NewSession returns a Session with hardware-friendly timing.
func NewSession() *Session {
	return &Session{
		PollInterval: 500 * time.Millisecond,
		MaxWait:      30 * time.Second,
		RestoreDelay: 500 * time.Millisecond,
	}
}

// CaptureState snapshots the speaker's transport state, current track,
// volume and status light. Any read failure yields an empty state, which
// turns the later restore into a no-op rather than failing the announcement.
func (s *Session) CaptureState(sp Speaker) PlaybackState {
	ti, err := sp.TransportInfo()
	if err != nil {
		log.Warn("Could not capture transport state", "name", sp.Info().Name, "error", err)
		return PlaybackState{}
	}
	pi, err := sp.PositionInfo()
	if err != nil {
		log.Warn("Could not capture track position", "name", sp.Info().Name, "error", err)
		return PlaybackState{}
	}
	vol, err := sp.Volume()
	if err != nil {
		log.Warn("Could not capture volume", "name", sp.Info().Name, "error", err)
		return PlaybackState{}
	}
	led, err := sp.StatusLight()
	if err != nil {
		log.Warn("Could not capture status light", "name", sp.Info().Name, "error", err)
		return PlaybackState{}
	}

	state := PlaybackState{
		TransportState: ti.State,
		TrackURI:       pi.TrackURI,
		Position:       pi.RelTime,
		Volume:         vol,
		StatusLight:    led,
	}
	log.Debug("Captured state", "name", sp.Info().Name, "transport", state.TransportState)
	return state
}

// Play announces audioURL on the speaker, waits for playback to finish, and
// restores the prior state. Restoration happens on the error path too, and
// when ctx is cancelled mid-announcement: cancellation only cuts the
// completion wait short. A negative volume leaves the speaker's current
// volume untouched.
func (s *Session) Play(ctx context.Context, sp Speaker, audioURL string, volume int) error {
	previous := s.CaptureState(sp)

	err := s.announce(ctx, sp, audioURL, volume)

	time.Sleep(s.RestoreDelay)
	s.RestoreState(sp, previous)
	return err
}

func (s *Session) announce(ctx context.Context, sp Speaker, audioURL string, volume int) error {
	// Keep the LED from flashing when the stream starts.
	if err := sp.SetStatusLight(false); err != nil {
		log.Debug("Could not disable status light", "name", sp.Info().Name, "error", err)
	}

	if volume >= 0 {
		log.Info("Setting volume", "name", sp.Info().Name, "volume", volume)
		if err := sp.SetVolume(volume); err != nil {
			return fmt.Errorf("set volume: %w", err)
		}
	}

	if err := sp.PlayURI(audioURL); err != nil {
		return fmt.Errorf("play announcement: %w", err)
	}

	s.waitForStop(ctx, sp)
	return nil
}

// waitForStop polls the transport until the announcement finishes, the
// ceiling elapses, or ctx is cancelled. Poll errors are tolerated; players
// can be briefly unresponsive right after a transport change.
func (s *Session) waitForStop(ctx context.Context, sp Speaker) {
	deadline := time.Now().Add(s.MaxWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			log.Debug("Interrupted while waiting for playback", "name", sp.Info().Name)
			return
		case <-time.After(s.PollInterval):
		}
		ti, err := sp.TransportInfo()
		if err != nil {
			continue
		}
		if ti.State == StateStopped {
			log.Debug("Playback completed", "name", sp.Info().Name)
			return
		}
	}
	log.Debug("Gave up waiting for playback to finish", "name", sp.Info().Name)
}

// RestoreState puts the speaker back into its captured state. Volume and
// status light are restored unconditionally; the previous track is re-issued
// only when something was actually playing or paused, never for a stopped
// transport. Every failure here is a warning: the announcement already
// happened and must not fail retroactively.
func (s *Session) RestoreState(sp Speaker, state PlaybackState) bool {
	if state.Empty() {
		return false
	}

	if err := sp.SetVolume(state.Volume); err != nil {
		log.Warn("Could not restore volume", "name", sp.Info().Name, "error", err)
	}
	if err := sp.SetStatusLight(state.StatusLight); err != nil {
		log.Warn("Could not restore status light", "name", sp.Info().Name, "error", err)
	}

	if state.TrackURI == "" {
		return true
	}
	if state.TransportState != StatePlaying && state.TransportState != StatePaused {
		return true
	}

	if err := sp.PlayURI(state.TrackURI); err != nil {
		log.Warn("Could not restore previous track", "name", sp.Info().Name, "error", err)
		return false
	}

	// "0:00:00" means nothing to seek back to; radio streams report
	// NOT_IMPLEMENTED and reject seeks.
	if state.Position != "" && state.Position != "0:00:00" && state.Position != "NOT_IMPLEMENTED" {
		if err := sp.Seek(state.Position); err != nil {
			log.Debug("Skipping seek", "name", sp.Info().Name, "position", state.Position, "error", err)
		}
	}

	if state.TransportState == StatePaused {
		if err := sp.Pause(); err != nil {
			log.Warn("Could not re-pause", "name", sp.Info().Name, "error", err)
		}
	}

	log.Debug("Restored previous playback", "name", sp.Info().Name)
	return true
}
