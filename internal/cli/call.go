package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/voicecall-backend/internal/app"
	"github.com/Ananth-NQI/voicecall-backend/internal/config"
)

var callTimeout time.Duration

var callCmd = &cobra.Command{
	Use:   "call <message>",
	Short: "Call the target number, speak message and print the answer",
	Long: `Starts the webhook server in the background, places one call and
waits for the callee's answer (or the poll timeout). The server must be
reachable at CALL_SERVER_HOST for the provider's callbacks to arrive.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 0, "How long to wait for an answer (default from CALL_POLL_TIMEOUT)")
}

func runCall(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if callTimeout > 0 {
		cfg.Polling.Timeout = callTimeout
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen()
	}()
	defer func() {
		if err := server.Shutdown(shutdownTimeout); err != nil {
			log.Printf("❌ Shutdown error: %v", err)
		}
	}()

	// Give the listener a moment to fail fast, e.g. when the port is taken.
	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-time.After(200 * time.Millisecond):
	}

	result := server.Tools.MakeCallAndWait(ctx, strings.Join(args, " "))
	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}
