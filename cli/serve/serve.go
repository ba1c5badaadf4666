package serve

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zvonler/wallspider/configuration"
)

const shutdownGrace = 10 * time.Second

var listen string

func NewCommand() *cobra.Command {
	serveCommand := &cobra.Command{
		Use:   "serve [--listen ADDR]",
		Short: "Serves crawls as JSON over HTTP",
		Args:  cobra.NoArgs,
		Example: "  # GET /nodes/post/123_456?since_days_ago=2\n" +
			"  " + os.Args[0] + " serve --listen 127.0.0.1:8080",
		Run: runServeCommand,
	}

	serveCommand.Flags().StringVar(&listen, "listen", "", "Address to listen on (default "+configuration.DefaultListen+")")
	viper.BindPFlag("listen", serveCommand.Flags().Lookup("listen"))

	return serveCommand
}

func runServeCommand(cmd *cobra.Command, args []string) {
	cfg, err := configuration.Current()
	if err != nil {
		log.Fatal(err)
	}

	logger := cfg.NewLogger(os.Stderr)
	crawler, err := cfg.NewCrawler(logger)
	if err != nil {
		log.Fatal(err)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(crawler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on %s", cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
