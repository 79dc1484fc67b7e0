// ABOUTME: Run command: the live daemon joining feeds, publisher, and map
// ABOUTME: Streams position fixes in and friend changes out until interrupted

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fightbackff-oss/trackmate/internal/engine"
	"github.com/fightbackff-oss/trackmate/internal/feed"
	"github.com/fightbackff-oss/trackmate/internal/geo"
	"github.com/fightbackff-oss/trackmate/internal/mapview"
	"github.com/fightbackff-oss/trackmate/internal/models"
	"github.com/fightbackff-oss/trackmate/internal/view"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the live map",
	Long: `Connect to the backend, stream your position, and watch friends move.

Position fixes come from stdin as "lat,lng" lines, or from a replay file
with --replay. Press Ctrl-C to stop.

Examples:
  trackmate run
  trackmate run --replay walk.jsonl --replay-interval 2s
  trackmate run --arrive "home,52.5200,13.4050,150"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		session, err := resumeSession(ctx)
		if err != nil {
			return err
		}

		if !cfg.Onboarded {
			fmt.Println("Welcome to trackmate. Type \"lat,lng\" lines to move yourself,")
			fmt.Println("or restart with --replay <file>. Ctrl-C stops and marks you offline.")
			cfg.Onboarded = true
			if err := cfg.Save(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not save config: %v\n", err)
			}
		}

		presenceFeed, err := feed.OpenPresenceFeed(ctx, combined.Presence.Client())
		if err != nil {
			return fmt.Errorf("opening presence feed: %w", err)
		}
		defer presenceFeed.Close()

		socialFeed, err := feed.OpenSocialFeed(ctx, combined.Postgres.Pool(), session.UserID)
		if err != nil {
			return fmt.Errorf("opening social feed: %w", err)
		}
		defer socialFeed.Close()

		interval, _ := cmd.Flags().GetDuration("publish-interval")
		pub := geo.NewPublisher(combined, session.UserID, eng.SharingEnabled, readBattery, interval)
		defer pub.MarkOffline(context.Background())

		detectors, err := parseDetectors(cmd)
		if err != nil {
			return err
		}

		onSample := func(s geo.Sample) {
			eng.SetOwnLocation(s.Location())
			pub.Offer(ctx, s)
			for _, det := range detectors {
				switch det.Update(s.Lat, s.Lng) {
				case geo.Arrived:
					eng.PushAlert(*models.NewAlert(models.AlertArrival,
						fmt.Sprintf("You arrived at %s", det.Name), uuid.Nil))
					eng.AnnounceArrival(ctx, det.Name)
				case geo.Departed:
					eng.PushAlert(*models.NewAlert(models.AlertGeofence,
						fmt.Sprintf("You left %s", det.Name), uuid.Nil))
				}
			}
		}
		onError := func(e geo.WatchError) {
			fmt.Fprintf(os.Stderr, "position watch: %v\n", e)
		}

		source, err := openSource(cmd)
		if err != nil {
			return err
		}
		stopWatch, err := source.Start(ctx, onSample, onError, geo.WatchOptions{})
		if err != nil {
			return fmt.Errorf("starting position watch: %w", err)
		}
		defer stopWatch()

		go pumpFeeds(ctx, eng, presenceFeed, socialFeed)

		return renderLoop(ctx, cmd)
	},
}

// pumpFeeds forwards feed events into the engine until both feeds close.
func pumpFeeds(ctx context.Context, e *engine.Engine, pf *feed.PresenceAdapter, sf *feed.SocialAdapter) {
	presence := pf.Events()
	social := sf.Events()
	for presence != nil || social != nil {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-presence:
			if !ok {
				presence = nil
				continue
			}
			e.ApplyPresenceEvent(ev)
		case ev, ok := <-social:
			if !ok {
				social = nil
				continue
			}
			e.ApplySocialEvent(ctx, ev)
		}
	}
}

// renderLoop redraws the map on snapshot changes, rate-limited so bursts of
// presence events do not flood the terminal.
func renderLoop(ctx context.Context, cmd *cobra.Command) error {
	cols, _ := cmd.Flags().GetInt("cols")
	rows, _ := cmd.Flags().GetInt("rows")
	term := mapview.NewTerminal(os.Stdout, cols, rows)

	ticks, stopTicks := eng.Watch()
	defer stopTicks()
	throttle := time.NewTicker(500 * time.Millisecond)
	defer throttle.Stop()

	dirty := true
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping.")
			return nil
		case <-ticks:
			dirty = true
		case <-throttle.C:
			if !dirty {
				continue
			}
			dirty = false
			snap := eng.Snapshot()
			if snap.Self != nil && snap.Self.Location != nil {
				term.SetCenter(snap.Self.Location.Lat, snap.Self.Location.Lng)
			}
			term.SetMarkers(view.Markers(snap))
			fmt.Print("\033[H\033[2J")
			if err := term.Render(); err != nil {
				return err
			}
			fmt.Printf("friends %d  pending %d  unread %d\n",
				len(snap.Friends), len(snap.PendingRequests), view.UnreadCount(snap))
		}
	}
}

// openSource picks the position source: a replay file, or stdin lines.
func openSource(cmd *cobra.Command) (geo.Source, error) {
	replayPath, _ := cmd.Flags().GetString("replay")
	if replayPath != "" {
		f, err := os.Open(replayPath)
		if err != nil {
			return nil, fmt.Errorf("opening replay file: %w", err)
		}
		replayInterval, _ := cmd.Flags().GetDuration("replay-interval")
		return geo.NewReplaySource(f, replayInterval), nil
	}

	manual := geo.NewManualSource()
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lat, lng, err := parseLatLng(scanner.Text())
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				continue
			}
			manual.Push(geo.Sample{Lat: lat, Lng: lng, CapturedAt: time.Now()})
		}
	}()
	return manual, nil
}

func parseLatLng(line string) (float64, float64, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected \"lat,lng\", got %q", line)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}
	return lat, lng, nil
}

// parseDetectors builds arrival detectors from repeated --arrive flags of
// the form "name,lat,lng,radius-meters".
func parseDetectors(cmd *cobra.Command) ([]*geo.ArrivalDetector, error) {
	specs, _ := cmd.Flags().GetStringArray("arrive")
	var out []*geo.ArrivalDetector
	for _, spec := range specs {
		parts := strings.Split(spec, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid --arrive %q, expected name,lat,lng,radius", spec)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --arrive latitude in %q: %w", spec, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --arrive longitude in %q: %w", spec, err)
		}
		radius, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || radius <= 0 {
			return nil, fmt.Errorf("invalid --arrive radius in %q", spec)
		}
		out = append(out, geo.NewArrivalDetector(strings.TrimSpace(parts[0]), lat, lng, radius))
	}
	return out, nil
}

// readBattery reports the battery percentage from sysfs, -1 when absent.
func readBattery() int {
	data, err := os.ReadFile("/sys/class/power_supply/BAT0/capacity")
	if err != nil {
		return -1
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return -1
	}
	return level
}

func init() {
	runCmd.Flags().String("replay", "", "Replay position fixes from a JSON-lines file")
	runCmd.Flags().Duration("replay-interval", time.Second, "Delay between replayed fixes")
	runCmd.Flags().Duration("publish-interval", geo.DefaultPublishInterval, "Minimum time between published fixes")
	runCmd.Flags().StringArray("arrive", nil, "Arrival region as name,lat,lng,radius-meters (repeatable)")
	runCmd.Flags().Int("cols", 72, "Map width in characters")
	runCmd.Flags().Int("rows", 18, "Map height in characters")
	rootCmd.AddCommand(runCmd)
}
