package sonos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureState(t *testing.T) {
	t.Run("records transport, track, volume and light", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		sp.transports = []TransportInfo{{State: StatePlaying}}
		sp.position = PositionInfo{TrackURI: "x-sonos-spotify:track", RelTime: "0:02:13"}
		sp.volume = 42
		sp.led = true

		state := testSession().CaptureState(sp)

		require.False(t, state.Empty())
		assert.Equal(t, StatePlaying, state.TransportState)
		assert.Equal(t, "x-sonos-spotify:track", state.TrackURI)
		assert.Equal(t, "0:02:13", state.Position)
		assert.Equal(t, 42, state.Volume)
		assert.True(t, state.StatusLight)
	})

	t.Run("any read failure yields an empty state", func(t *testing.T) {
		for name, mutate := range map[string]func(*fakeSpeaker){
			"transport": func(f *fakeSpeaker) { f.transportErr = errors.New("down") },
			"position":  func(f *fakeSpeaker) { f.positionErr = errors.New("down") },
			"volume":    func(f *fakeSpeaker) { f.volumeErr = errors.New("down") },
			"light":     func(f *fakeSpeaker) { f.ledErr = errors.New("down") },
		} {
			t.Run(name, func(t *testing.T) {
				sp := newFakeSpeaker("Kitchen", "RINCON_K")
				mutate(sp)
				assert.True(t, testSession().CaptureState(sp).Empty())
			})
		}
	})
}

func TestRestoreState(t *testing.T) {
	t.Run("empty state is a no-op", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		ok := testSession().RestoreState(sp, PlaybackState{})
		assert.False(t, ok)
		assert.Empty(t, sp.setVolumes)
		assert.Empty(t, sp.setLEDs)
		assert.Empty(t, sp.played)
	})

	t.Run("stopped transport is never replayed", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		ok := testSession().RestoreState(sp, PlaybackState{
			TransportState: StateStopped,
			TrackURI:       "x-sonos-spotify:track",
			Volume:         30,
			StatusLight:    true,
		})
		assert.True(t, ok)
		assert.Equal(t, []int{30}, sp.setVolumes)
		assert.Equal(t, []bool{true}, sp.setLEDs)
		assert.Empty(t, sp.played)
	})

	t.Run("playing track resumes with seek", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		ok := testSession().RestoreState(sp, PlaybackState{
			TransportState: StatePlaying,
			TrackURI:       "x-sonos-spotify:track",
			Position:       "0:01:30",
			Volume:         30,
		})
		assert.True(t, ok)
		assert.Equal(t, []string{"x-sonos-spotify:track"}, sp.played)
		assert.Equal(t, []string{"0:01:30"}, sp.seeks)
		assert.Zero(t, sp.pauses)
	})

	t.Run("paused track is re-paused", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		ok := testSession().RestoreState(sp, PlaybackState{
			TransportState: StatePaused,
			TrackURI:       "x-sonos-spotify:track",
			Position:       "0:01:30",
		})
		assert.True(t, ok)
		assert.Equal(t, 1, sp.pauses)
	})

	t.Run("sentinel positions are not seeked", func(t *testing.T) {
		for _, position := range []string{"", "0:00:00", "NOT_IMPLEMENTED"} {
			sp := newFakeSpeaker("Kitchen", "RINCON_K")
			testSession().RestoreState(sp, PlaybackState{
				TransportState: StatePlaying,
				TrackURI:       "x-rincon-mp3radio://stream",
				Position:       position,
			})
			assert.Empty(t, sp.seeks, "position %q", position)
		}
	})

	t.Run("seek failure is swallowed", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		sp.seekErr = errors.New("not seekable")
		ok := testSession().RestoreState(sp, PlaybackState{
			TransportState: StatePlaying,
			TrackURI:       "x-rincon-mp3radio://stream",
			Position:       "0:10:00",
		})
		assert.True(t, ok)
	})
}

func TestPlay(t *testing.T) {
	t.Run("announces then restores", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		sp.transports = []TransportInfo{
			{State: StatePlaying}, // capture
			{State: StatePlaying}, // first poll
			{State: StateStopped}, // announcement finished
		}
		sp.position = PositionInfo{TrackURI: "x-sonos-spotify:prev", RelTime: "0:00:42"}
		sp.volume = 30
		sp.led = true

		err := testSession().Play(t.Context(), sp, "http://192.0.2.1:8042/audio.mp3", 60)
		require.NoError(t, err)

		assert.Equal(t, []string{"http://192.0.2.1:8042/audio.mp3", "x-sonos-spotify:prev"}, sp.played)
		assert.Equal(t, []int{60, 30}, sp.setVolumes, "announcement volume, then restored volume")
		assert.Equal(t, []bool{false, true}, sp.setLEDs, "light off for announcement, then restored")
		assert.Equal(t, []string{"0:00:42"}, sp.seeks)
	})

	t.Run("negative volume leaves volume untouched", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		err := testSession().Play(t.Context(), sp, "http://192.0.2.1:8042/audio.mp3", -1)
		require.NoError(t, err)
		assert.Equal(t, []int{25}, sp.setVolumes, "only the restore touches the volume")
	})

	t.Run("restore still happens when play fails", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		sp.transports = []TransportInfo{{State: StatePlaying}}
		sp.position = PositionInfo{TrackURI: "x-sonos-spotify:prev", RelTime: "0:00:42"}
		sp.volume = 30
		sp.playErr = errors.New("upnp 714")

		err := testSession().Play(t.Context(), sp, "http://192.0.2.1:8042/audio.mp3", 60)
		require.Error(t, err)
		assert.Equal(t, []int{60, 30}, sp.setVolumes, "volume restored despite the failure")
	})

	t.Run("poll ceiling is advisory", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		sp.transports = []TransportInfo{{State: StatePlaying}} // never stops

		session := &Session{PollInterval: time.Millisecond, MaxWait: 10 * time.Millisecond}
		start := time.Now()
		err := session.Play(t.Context(), sp, "http://192.0.2.1:8042/audio.mp3", -1)
		require.NoError(t, err, "expiry falls through instead of failing")
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("cancellation stops the wait but still restores", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		sp.transports = []TransportInfo{{State: StatePlaying}} // never stops
		sp.position = PositionInfo{TrackURI: "x-sonos-spotify:prev", RelTime: "0:00:42"}
		sp.volume = 30
		sp.led = true

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		session := &Session{PollInterval: time.Millisecond, MaxWait: time.Hour}
		start := time.Now()
		err := session.Play(ctx, sp, "http://192.0.2.1:8042/audio.mp3", 60)
		require.NoError(t, err)

		assert.Less(t, time.Since(start), time.Second, "cancellation must not sit out the ceiling")
		assert.Equal(t, []string{"http://192.0.2.1:8042/audio.mp3", "x-sonos-spotify:prev"}, sp.played)
		assert.Equal(t, []int{60, 30}, sp.setVolumes, "volume restored after the interrupt")
		assert.Equal(t, []bool{false, true}, sp.setLEDs)
	})

	t.Run("poll errors are tolerated", func(t *testing.T) {
		sp := newFakeSpeaker("Kitchen", "RINCON_K")
		sp.transportErr = errors.New("busy")

		session := &Session{PollInterval: time.Millisecond, MaxWait: 10 * time.Millisecond}
		err := session.Play(t.Context(), sp, "http://192.0.2.1:8042/audio.mp3", -1)
		require.NoError(t, err)
	})
}
