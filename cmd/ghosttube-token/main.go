// ghosttube-token prints a signed host token for a GhostTube bridge.
//
//	ghosttube-token --config /etc/ghosttube/config.yaml --ttl 720h
//
// The playback host presents the token when it opens the agent WebSocket
// (?token=...). The secret comes from agent.auth.secret in the bridge's
// configuration, or GHOSTTUBE_AGENT_SECRET.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/ghosttube/internal/agent"
	"github.com/nerrad567/ghosttube/internal/infrastructure/config"
)

const defaultConfigPath = "configs/config.yaml"

type options struct {
	configPath string
	ttl        time.Duration
}

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func execute(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return err
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "ghosttube-token",
		Short:         "Issue a playback host token for the GhostTube agent",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return issue(stdout, opts, cmd.Flags().Changed("ttl"))
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", configPathFromEnv(), "bridge configuration file")
	f.DurationVar(&opts.ttl, "ttl", 0, "token lifetime (default agent.auth.token_ttl, 0 = no expiry)")

	return cmd
}

func issue(stdout io.Writer, opts *options, ttlSet bool) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Agent.Auth.Secret == "" {
		return errors.New("agent.auth.secret is not set; host authentication is disabled")
	}

	ttl := cfg.GetHostTokenTTL()
	if ttlSet {
		if opts.ttl < 0 {
			return fmt.Errorf("--ttl must not be negative")
		}
		ttl = opts.ttl
	}

	token, err := agent.IssueHostToken(cfg.Agent.Auth.Secret, cfg.Device.ID, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func configPathFromEnv() string {
	if path := os.Getenv("GHOSTTUBE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
