package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/voicecall-backend/internal/app"
	"github.com/Ananth-NQI/voicecall-backend/internal/config"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook and call API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	server, err := app.New(context.Background(), cfg)
	if err != nil {
		return err
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("🛑 Gracefully shutting down...")
		if err := server.Shutdown(shutdownTimeout); err != nil {
			log.Printf("❌ Shutdown error: %v", err)
		}
	}()

	return server.Listen()
}
