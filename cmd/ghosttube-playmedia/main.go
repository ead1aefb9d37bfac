// ghosttube-playmedia sends a playmedia command to a GhostTube bridge.
//
//	ghosttube-playmedia living-room-tv dQw4w9WgXcQ --broker mqtt.local
//
// Exit codes: 0 on acknowledged publish, 1 when the broker cannot be
// reached (or the arguments are invalid), 2 when the publish fails or is
// not acknowledged in time.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nerrad567/ghosttube/internal/hass"
	"github.com/nerrad567/ghosttube/internal/infrastructure/mqtt"
)

// Exit codes.
const (
	exitOK           = 0
	exitConnectError = 1
	exitPublishError = 2
)

// Defaults matching the bridge's own configuration defaults.
const (
	defaultPrefix  = "ghost-tube"
	defaultAppName = "ghost-tube"
)

// publisher is the part of *mqtt.Client the command uses.
type publisher interface {
	PublishWithTimeout(topic string, payload []byte, qos byte, retained bool, timeout time.Duration) error
	Close() error
}

// connectFunc opens a broker connection.
type connectFunc func(opts mqtt.Options) (publisher, error)

func connectMQTT(opts mqtt.Options) (publisher, error) {
	client, err := mqtt.Connect(opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// exitError carries the process exit code of a failed run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type options struct {
	broker    string
	port      int
	username  string
	password  string
	retain    bool
	qos       int
	plain     bool
	transport string
	wsPath    string
	timeout   time.Duration
	prefix    string
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr, connectMQTT))
}

// execute runs the command and maps its outcome to an exit code.
func execute(args []string, stdout, stderr io.Writer, connect connectFunc) int {
	cmd := newRootCmd(stdout, connect)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitConnectError
}

func newRootCmd(stdout io.Writer, connect connectFunc) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "ghosttube-playmedia DEVICE VIDEO_ID",
		Short: "Send a playmedia command to a GhostTube bridge",
		Long: "Publishes a playmedia command on {prefix}/media_player/{DEVICE}/playmedia\n" +
			"and waits for the broker to acknowledge it.",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return publishPlayMedia(stdout, connect, opts, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.broker, "broker", "localhost", "MQTT broker host")
	f.IntVar(&opts.port, "port", 1883, "MQTT broker port")
	f.StringVar(&opts.username, "username", "", "optional broker username")
	f.StringVar(&opts.password, "password", "", "optional broker password")
	f.BoolVar(&opts.retain, "retain", false, "retain the playmedia command on the broker")
	f.IntVar(&opts.qos, "qos", 1, "quality of service level (0, 1 or 2)")
	f.BoolVar(&opts.plain, "plain", false, "send the raw video ID instead of a JSON payload")
	f.StringVar(&opts.transport, "transport", mqtt.TransportTCP, "MQTT transport (tcp or websockets)")
	f.StringVar(&opts.wsPath, "ws-path", "/", "websocket path when using the websockets transport")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Second, "time to wait for the publish acknowledgment")
	f.StringVar(&opts.prefix, "prefix", defaultPrefix, "state topic prefix configured on the bridge")

	return cmd
}

// publishPlayMedia connects, publishes and waits for the acknowledgment.
func publishPlayMedia(out io.Writer, connect connectFunc, opts *options, device, videoID string) error {
	if opts.qos < 0 || opts.qos > 2 {
		return &exitError{code: exitConnectError, err: fmt.Errorf("--qos must be 0, 1 or 2")}
	}
	if opts.transport != mqtt.TransportTCP && opts.transport != mqtt.TransportWebsockets {
		return &exitError{code: exitConnectError, err: fmt.Errorf("--transport must be tcp or websockets")}
	}
	if videoID == "" {
		return &exitError{code: exitConnectError, err: fmt.Errorf("video ID is required")}
	}

	topics, err := hass.BuildTopics(opts.prefix, device, defaultAppName)
	if err != nil {
		return &exitError{code: exitConnectError, err: err}
	}
	payload, err := buildPayload(videoID, opts.plain)
	if err != nil {
		return &exitError{code: exitPublishError, err: err}
	}

	fmt.Fprintf(out, "Connecting to %s:%d via %s...\n", opts.broker, opts.port, opts.transport)
	client, err := connect(mqtt.Options{
		Host:           opts.broker,
		Port:           opts.port,
		Transport:      opts.transport,
		Path:           opts.wsPath,
		ClientID:       "ghosttube-playmedia-" + uuid.NewString(),
		Username:       opts.username,
		Password:       opts.password,
		ConnectTimeout: opts.timeout,
	})
	if err != nil {
		return &exitError{code: exitConnectError, err: fmt.Errorf("connection failed: %w", err)}
	}
	defer client.Close()

	fmt.Fprintf(out, "Publishing to %s (qos=%d, retain=%t)...\n", topics.PlayMedia, opts.qos, opts.retain)
	//nolint:gosec // qos validated above
	if err := client.PublishWithTimeout(topics.PlayMedia, payload, byte(opts.qos), opts.retain, opts.timeout); err != nil {
		return &exitError{code: exitPublishError, err: err}
	}

	fmt.Fprintln(out, "Publish acknowledged.")
	return nil
}

// buildPayload renders the playmedia payload the bridge accepts.
func buildPayload(videoID string, plain bool) ([]byte, error) {
	if plain {
		return []byte(videoID), nil
	}
	return json.Marshal(map[string]string{"media_content_id": videoID})
}
