package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/plant-identifier/internal/display"
	"github.com/shehryarbajwa/plant-identifier/internal/media"
)

func (c *cli) cameraCmd() *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Capture a frame from a live camera feed and identify it",
		Long: `camera connects to a websocket frame feed (one JPEG or PNG image per
binary message). Press Enter to capture and identify, or type q and Enter to
cancel.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if device == "" {
				device = c.cfg.CameraURL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sink := display.NewSink(cmd.OutOrStdout())
			a, err := c.newApp(cmd, media.NewWebSocketCamera(device, nil, c.logger), sink)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Init(ctx); err != nil {
				return err
			}
			if err := a.StartCamera(ctx); err != nil {
				return err
			}

			// An interrupt releases the camera like a page being hidden
			go func() {
				<-ctx.Done()
				a.VisibilityHidden()
			}()

			in := c.input(cmd)
			for {
				fmt.Fprint(cmd.ErrOrStderr(), "Press Enter to capture, q to cancel: ")

				// One read per turn so nothing is reading while a capture
				// may be prompting for a key on the same input
				lines := make(chan readResult, 1)
				go func() {
					line, err := in.ReadString('\n')
					lines <- readResult{line: line, err: err}
				}()

				select {
				case <-ctx.Done():
					return ctx.Err()
				case r := <-lines:
					if (r.err != nil && r.line == "") || strings.EqualFold(strings.TrimSpace(r.line), "q") {
						a.CancelCamera()
						fmt.Fprintln(cmd.ErrOrStderr(), "Camera cancelled")
						return nil
					}

					_, err := a.Capture(ctx)
					if err != nil && a.Acquirer().State() == media.StateCameraLive {
						// Snapshot failed but the session is still live; try again
						continue
					}
					return err
				}
			}
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "websocket URL of the camera feed (default CAMERA_URL)")
	return cmd
}

type readResult struct {
	line string
	err  error
}
