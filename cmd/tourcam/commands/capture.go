package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bowerhall/tourcam/internal/assembly"
	"github.com/bowerhall/tourcam/internal/capture"
	"github.com/bowerhall/tourcam/internal/device"
	"github.com/bowerhall/tourcam/internal/orientation"
	"github.com/bowerhall/tourcam/internal/review"
	"github.com/bowerhall/tourcam/internal/vision"
	"github.com/bowerhall/tourcam/internal/workflow"
)

func captureCmd() *cobra.Command {
	var (
		listing   string
		tracePath string
		framesDir string
		sweepRate float64
		loop      bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run a guided 360° capture for a listing, then review it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.startJanitor(); err != nil {
				return err
			}

			p := cfg.Profile

			var source capture.OrientationSource
			if tracePath != "" {
				trace, err := orientation.LoadTrace(tracePath)
				if err != nil {
					return err
				}
				source = orientation.NewReplay(trace, p.SampleInterval)
			} else {
				source = orientation.Sweep{
					Rate:     sweepRate * math.Pi / 180,
					Interval: p.SampleInterval,
				}
			}

			bracket := 1
			if p.HDR.Enabled {
				bracket = 3
			}
			camera, err := device.NewDirCamera(device.DirConfig{
				Dir:         framesDir,
				BracketSize: bracket,
				Loop:        loop,
			})
			if err != nil {
				return err
			}

			deps := capture.Deps{
				Camera:    camera,
				Evaluator: vision.NewSharpness(),
				Assembler: assembly.New(vision.NewStitcher(stitchConfig(p)), assembly.Config{
					MinFreeBytes: cfg.Assembly.MinFreeMB << 20,
				}),
				Source: source,
			}
			if bracket > 1 {
				deps.Fuser = vision.NewMertensFuser(p.Stitcher.JPEGQuality)
			}

			runner, err := workflow.NewRunner(workflow.Config{
				Settings: captureSettings(p),
				Devices:  deps,
				Store:    svc.store,
				Review:   svc.reviewOptions(),
				Alerter:  svc.alerter,
				Listener: progressPrinter(cmd.OutOrStdout(), p.ExpectedShots),
			})
			if err != nil {
				return err
			}

			return reviewLoop(ctx, runner, listing, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&listing, "listing", "", "listing identifier (required)")
	cmd.Flags().StringVar(&tracePath, "trace", "", "YAML yaw trace to replay (default: simulated sweep)")
	cmd.Flags().StringVar(&framesDir, "frames", "", "directory of captured frames, three exposures per frame when hdr is enabled (required)")
	cmd.Flags().Float64Var(&sweepRate, "sweep-rate", 10, "simulated turn rate in degrees per second")
	cmd.Flags().BoolVar(&loop, "loop-frames", true, "reuse frames when the directory runs out")
	cmd.MarkFlagRequired("listing")
	cmd.MarkFlagRequired("frames")

	return cmd
}

// reviewLoop captures, then prompts until the panorama is published or the
// operator quits. Retry captures the listing again from scratch.
func reviewLoop(ctx context.Context, runner *workflow.Runner, listing string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprintf(out, "capturing listing %s, turn slowly to each target\n", listing)

		coord, err := runner.Capture(ctx, listing)
		if err != nil {
			return err
		}

		artifact, _ := coord.Artifact()
		fmt.Fprintf(out, "panorama ready: %d shots, %d KB\n", artifact.ShotCount, len(artifact.Image)/1024)

		recapture, err := prompt(ctx, coord, scanner, out)
		coord.Close()
		if err != nil || !recapture {
			return err
		}
	}
}

func prompt(ctx context.Context, coord *review.Coordinator, scanner *bufio.Scanner, out io.Writer) (bool, error) {
	for {
		fmt.Fprint(out, "[p]ublish, [r]etry capture, [q]uit: ")
		if !scanner.Scan() {
			return false, scanner.Err()
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "p", "publish":
			url, err := coord.Publish(ctx)
			if err != nil {
				if errors.Is(err, review.ErrInvalidAction) {
					return false, err
				}
				fmt.Fprintf(out, "publish failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "published: %s\n", url)
			return false, nil
		case "r", "retry":
			if err := coord.Retry(); err != nil {
				fmt.Fprintf(out, "cannot retry: %v\n", err)
				continue
			}
			return true, nil
		case "q", "quit":
			if coord.State() == review.StatePublishFailed {
				fmt.Fprintln(out, "leaving without publishing; the panorama is discarded")
			}
			return false, nil
		default:
			fmt.Fprintln(out, "unknown action")
		}
	}
}

func progressPrinter(out io.Writer, shots int) capture.Listener {
	return func(e capture.Event) {
		switch e.Kind {
		case capture.EventShotAccepted:
			fmt.Fprintf(out, "  shot %d/%d\n", e.Collected, shots)
		case capture.EventShotRejected:
			fmt.Fprintf(out, "  blurry, hold still (retry %d)\n", e.Request.Retry)
		case capture.EventShotDiscarded:
			fmt.Fprintln(out, "  gave up on this target, moving on")
		case capture.EventSensorUnavailable:
			fmt.Fprintf(out, "  orientation unavailable: %v (Ctrl-C to abort)\n", e.Err)
		case capture.EventStalled:
			fmt.Fprintln(out, "  keep turning toward the next target")
		case capture.EventAssemblyStarted:
			fmt.Fprintln(out, "  assembling panorama...")
		case capture.EventAssemblyFailed:
			fmt.Fprintf(out, "  assembly failed: %v\n", e.Err)
		}
	}
}
