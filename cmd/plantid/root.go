package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/plant-identifier/internal/app"
	"github.com/shehryarbajwa/plant-identifier/internal/config"
	"github.com/shehryarbajwa/plant-identifier/internal/credential"
	"github.com/shehryarbajwa/plant-identifier/internal/display"
	"github.com/shehryarbajwa/plant-identifier/internal/identify"
	"github.com/shehryarbajwa/plant-identifier/internal/logging"
	"github.com/shehryarbajwa/plant-identifier/internal/media"
)

// cli carries state shared by all subcommands
type cli struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger

	// stdin is the only reader of the command's input; the key prompt and
	// the camera loop both take lines from it
	stdin *bufio.Reader
}

func (c *cli) input(cmd *cobra.Command) *bufio.Reader {
	if c.stdin == nil {
		c.stdin = bufio.NewReader(cmd.InOrStdin())
	}
	return c.stdin
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "plantid",
		Short: "Identify plants from a photo or a live camera",
		Long: `plantid sends a photo to a multimodal model and prints the plant's
names, care attributes and key facts.

Requests go either straight to Gemini (ENDPOINT_TARGET=direct) or through a
plant identifier server that holds the API key (ENDPOINT_TARGET=proxy).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML config file (overrides PLANTID_CONFIG)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(c.identifyCmd(), c.cameraCmd(), c.keyCmd())
	return root
}

func (c *cli) setup() error {
	if c.configPath != "" {
		if err := os.Setenv("PLANTID_CONFIG", c.configPath); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg

	// Logs go to stderr; keep them quiet unless asked so they do not
	// interleave with the rendered result
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	c.logger, err = logging.New(level)
	return err
}

// provider builds the credential provider for the configured strategy
func (c *cli) provider(in *bufio.Reader, out io.Writer) (*credential.Provider, error) {
	opts := credential.Options{
		Strategy:    c.cfg.CredentialStrategy,
		EndpointURL: c.cfg.CredentialURL,
		Logger:      c.logger,
	}

	if c.cfg.CredentialStrategy == config.StrategyClient {
		store, err := credential.NewFileStore(c.cfg.StorePath)
		if err != nil {
			return nil, err
		}
		opts.Store = store
		if c.cfg.Interactive {
			opts.Prompter = &credential.TerminalPrompter{In: in, Out: out}
		}
	}

	return credential.NewProvider(opts), nil
}

// newApp wires the acquirer, the identification client and the sink
func (c *cli) newApp(cmd *cobra.Command, camera media.Camera, sink *display.Sink) (*app.App, error) {
	opts := app.Options{
		Camera: camera,
		Sink:   sink,
		Logger: c.logger,
	}

	var backend identify.Backend
	switch c.cfg.EndpointTarget {
	case config.TargetDirect:
		provider, err := c.provider(c.input(cmd), cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		backend = identify.NewGeminiBackend(identify.GeminiConfig{
			Model:   c.cfg.GeminiModel,
			BaseURL: c.cfg.GeminiBaseURL,
			Token:   provider.Token,
		})
		opts.Credentials = provider
	default:
		// The server holds the key; nothing to resolve here
		backend = identify.NewProxyBackend(c.cfg.ProxyURL, nil)
	}

	opts.Client = identify.NewClient(backend, c.cfg.RequestTimeout, c.logger)
	return app.New(opts), nil
}

func (c *cli) identifyCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "identify FILE",
		Short: "Identify the plant in an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			sink := display.NewSink(out)
			if asJSON {
				sink = display.NewSink(cmd.ErrOrStderr())
			}

			a, err := c.newApp(cmd, nil, sink)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Init(cmd.Context()); err != nil {
				return err
			}

			record, err := a.IdentifyFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(record)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parsed record as JSON")
	return cmd
}

func (c *cli) keyCmd() *cobra.Command {
	key := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored API key",
	}

	key.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the stored API key and resolve a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := c.provider(c.input(cmd), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cred, err := provider.Reset(cmd.Context())
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key ready (source: %s)\n", cred.Source)
			return nil
		},
	})

	return key
}
