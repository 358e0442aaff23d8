package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scadform/scadform/internal/config"
	"github.com/scadform/scadform/internal/logging"
	"github.com/scadform/scadform/internal/server"
	"github.com/scadform/scadform/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Start the compile server",
	Long: `Start the compile server. The server exposes the compile websocket
channel on /ws, a parameter-set event stream on /ws/events, and a JSON API
under /api.

When a directory is given its .scad files are registered and watched for
changes; the default is the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8742, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("no-watch", false, "Disable the file watcher")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	noWatch, _ := cmd.Flags().GetBool("no-watch")
	if noWatch {
		cfg.Watch.Enabled = false
	}

	logger := newLogger(cfg)
	srv := server.New(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "Shutting down...")
		cancel()
	}()

	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	if cfg.Watch.Enabled {
		if err := startWatcher(ctx, cfg, srv, root, logger); err != nil {
			return err
		}
	}

	fmt.Printf("Scadform listening at http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	return srv.Start(ctx)
}

func startWatcher(ctx context.Context, cfg *config.Config, srv *server.Server, root string, logger logging.Logger) error {
	sync := watcher.NewRegistrySync(srv.Registry(), logger)
	if err := sync.Seed(root); err != nil {
		return err
	}

	fw, err := watcher.New(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	fw.AddFilter(watcher.SourceFilter)
	fw.AddHandler(sync.Handle)
	if err := fw.AddRecursive(root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}

	fw.Start(ctx)
	go func() {
		<-ctx.Done()
		fw.Stop()
	}()
	return nil
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}
