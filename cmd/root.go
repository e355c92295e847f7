/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/ctrlc"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/blacktop/sonos-say/internal/audioserver"
	"github.com/blacktop/sonos-say/internal/sonos"
	"github.com/blacktop/sonos-say/internal/tts"
)

// Version is set via ldflags at release time.
var Version = "1.0.0"

var (
	volume      int
	lang        string
	timeout     int
	deviceName  string
	listDevices bool
	playLocal   bool
	noWait      bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "sonos-say [message]",
	Short: "Play text-to-speech announcements on Sonos speakers",
	Long: `sonos-say discovers Sonos speakers on your network, synthesizes speech
from a text message and plays it on one or more speakers, putting their
volume, status light, playback and grouping back the way they were.

Examples:
  sonos-say --list-devices                  # list available devices
  sonos-say "Hello world"                   # play on all devices (synchronized)
  sonos-say "Welcome home" --volume 50      # all devices at volume 50
  sonos-say "Good morning" --device Kitchen # play on a specific device
  sonos-say "Bonjour" --lang fr --device Bedroom`,
	Args:          cobra.MaximumNArgs(1),
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		if cmd.Flags().Changed("volume") && (volume < 0 || volume > 100) {
			return fmt.Errorf("volume must be between 0 and 100, got %d", volume)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		done := make(chan error, 1)
		err := ctrlc.Default.Run(ctx, func() error {
			err := run(ctx, args)
			done <- err
			return err
		})

		// On Ctrl-C the handler returns before the task does. Cancel the
		// context and wait for run to unwind its deferred cleanup (state
		// restore, server shutdown, artifact removal, lock release).
		var interrupted ctrlc.ErrorCtrlC
		if errors.As(err, &interrupted) {
			log.Warn("Interrupted, cleaning up")
			cancel()
			<-done
		}
		return err
	},
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().IntVarP(&volume, "volume", "v", -1, "Volume level (0-100), defaults to current volume")
	rootCmd.Flags().StringVarP(&lang, "lang", "l", "en", "Language code (e.g. en, en-gb, es, fr, de)")
	rootCmd.Flags().IntVarP(&timeout, "timeout", "t", 5, "Device discovery timeout in seconds")
	rootCmd.Flags().StringVarP(&deviceName, "device", "d", "", "Play on a specific device by name (case-insensitive)")
	rootCmd.Flags().BoolVar(&listDevices, "list-devices", false, "List available Sonos devices and exit")
	rootCmd.Flags().BoolVar(&playLocal, "play-local", false, "Play the announcement on this machine instead of a Sonos device")
	rootCmd.Flags().BoolVar(&noWait, "no-wait", false, "Do not wait for other sonos-say announcements to finish")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

// Seams for tests: discovery hits the network and the default session and
// grouper carry real-world settle times.
var (
	discoverSpeakers = sonos.Discover
	newSession       = sonos.NewSession
	newGrouper       = sonos.NewGrouper
)

func run(ctx context.Context, args []string) error {
	log.Info("Discovering Sonos devices", "timeout", timeout)
	speakers, err := discoverSpeakers(ctx, time.Duration(timeout)*time.Second)
	if err != nil {
		return fmt.Errorf("device discovery: %w", err)
	}
	if len(speakers) == 0 {
		return errors.New("no Sonos devices found; make sure you are on the same network")
	}

	fmt.Print(renderDeviceList(speakers))
	if listDevices {
		return nil
	}

	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New("message is required (unless using --list-devices)")
	}
	message := args[0]

	targets := speakers
	if deviceName != "" {
		targets = filterByName(speakers, deviceName)
		if len(targets) == 0 {
			return fmt.Errorf("device %q not found; available: %s",
				deviceName, strings.Join(speakerNames(speakers), ", "))
		}
		log.Info("Selected device", "name", targets[0].Info().Name)
	} else {
		log.Info("Playing on all devices", "count", len(targets))
	}

	// Only announcements are serialized; listing above never takes the lock.
	if !noWait {
		release, err := acquireAnnounceLock(ctx)
		if err != nil {
			return fmt.Errorf("waiting for other announcements: %w", err)
		}
		defer release()
	}

	log.Info("Generating speech", "message", message, "lang", lang)
	synth := &tts.Google{}
	audioFile, err := synth.Synthesize(ctx, message, lang)
	if err != nil {
		return fmt.Errorf("speech synthesis: %w", err)
	}
	defer func() {
		if err := os.Remove(audioFile); err != nil {
			log.Warn("Could not delete temp audio file", "path", audioFile, "error", err)
		}
	}()

	if playLocal {
		return playLocalFile(audioFile)
	}

	srv := audioserver.New(audioFile)
	audioURL, err := srv.Start()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Audio server shutdown", "error", err)
		}
	}()

	announce(ctx, targets, audioURL)
	return ctx.Err()
}

// announce plays the served audio on the targets. Multiple targets play
// synchronized through a group coordinator: an existing all-encompassing
// group is reused untouched, otherwise a temporary group is formed and torn
// down afterward regardless of playback outcome. Playback failures are
// warnings; cleanup must still run.
func announce(ctx context.Context, targets []sonos.Speaker, audioURL string) {
	session := newSession()
	grouper := newGrouper()

	if len(targets) > 1 && deviceName == "" {
		if coordinator := sonos.CheckIfGrouped(targets); coordinator != nil {
			log.Info("Using existing group", "coordinator", coordinator.Info().Name)
			if err := session.Play(ctx, coordinator, audioURL, volume); err != nil {
				log.Warn("Playback failed", "name", coordinator.Info().Name, "error", err)
			}
			return
		}

		log.Info("Creating temporary group for synchronized playback")
		coordinator := grouper.CreateGroup(targets)
		err := session.Play(ctx, coordinator, audioURL, volume)

		log.Info("Restoring original speaker groups")
		grouper.UngroupAll(targets)

		if err != nil {
			log.Warn("Playback failed", "name", coordinator.Info().Name, "error", err)
		}
		return
	}

	for _, sp := range targets {
		if ctx.Err() != nil {
			return
		}
		if err := session.Play(ctx, sp, audioURL, volume); err != nil {
			log.Warn("Playback failed", "name", sp.Info().Name, "error", err)
		}
	}
}

// filterByName returns the speakers whose room name matches name,
// case-insensitively.
func filterByName(speakers []sonos.Speaker, name string) []sonos.Speaker {
	var out []sonos.Speaker
	for _, sp := range speakers {
		if strings.EqualFold(sp.Info().Name, name) {
			out = append(out, sp)
		}
	}
	return out
}

func speakerNames(speakers []sonos.Speaker) []string {
	names := make([]string, 0, len(speakers))
	for _, sp := range speakers {
		names = append(names, sp.Info().Name)
	}
	return names
}
