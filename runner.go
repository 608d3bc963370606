package relay

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
)

// Run parses command line options, starts the relay and serves until
// interrupted.
func Run(args []string) error {
	options := &Options{}
	_, err := flags.ParseArgs(options, args)
	if err != nil {
		return err
	}
	ctx := context.Background()
	config, err := loadOrBuildConfig(ctx, options)
	if err != nil {
		return err
	}
	service, err := New(ctx, config)
	if err != nil {
		return err
	}
	httpServer := service.HTTP(ctx, options.Addr)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[relay] listening on %v", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-signals:
		log.Printf("[relay] received %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// Drain sessions and release the upstream first: closing each session
	// unblocks its stream handler, so the HTTP shutdown below can complete.
	if err := service.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return httpServer.Shutdown(shutdownCtx)
}

func loadOrBuildConfig(ctx context.Context, options *Options) (*Config, error) {
	if options.ConfigURL != "" {
		return LoadConfig(ctx, options.ConfigURL)
	}
	if options.URL == "" {
		return nil, errors.New("either --config or --url is required")
	}
	return &Config{
		Products: []Product{
			{Upstream: Upstream{URL: options.URL}},
		},
	}, nil
}
