package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/conneroisu/ssrgate/internal/config"
	"github.com/conneroisu/ssrgate/internal/document"
	"github.com/conneroisu/ssrgate/internal/locale"
	"github.com/conneroisu/ssrgate/internal/logging"
	"github.com/conneroisu/ssrgate/internal/monitoring"
	"github.com/conneroisu/ssrgate/internal/pages"
	"github.com/conneroisu/ssrgate/internal/renderer"
	"github.com/conneroisu/ssrgate/internal/server"
	"github.com/conneroisu/ssrgate/internal/version"
	"github.com/conneroisu/ssrgate/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the rendering server",
	Long: `Start the HTTP server. The process runs until it receives SIGINT or
SIGTERM, then stops accepting connections, waits for in-flight requests and
releases the renderer and watchers before exiting.

Examples:
  ssrgate serve
  ssrgate serve --port 8080 --locales ru,en --default-locale ru
  SSRGATE_LOCALES_SUPPORTED=ru,en ssrgate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("locales", "", "Comma-separated supported locales")
	serveCmd.Flags().String("default-locale", "", "Default locale")
	serveCmd.Flags().String("shell", "", "HTML shell produced by the client build")
	serveCmd.Flags().String("manifest", "", "Client build manifest")
	serveCmd.Flags().String("content", "", "Content directory")
	serveCmd.Flags().Bool("dev", false, "Run in development mode and reload the shell on change")

	AddFlagValidation(serveCmd, "port", ValidatePort)

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("locales.supported", serveCmd.Flags().Lookup("locales"))
	_ = viper.BindPFlag("locales.default", serveCmd.Flags().Lookup("default-locale"))
	_ = viper.BindPFlag("document.shell", serveCmd.Flags().Lookup("shell"))
	_ = viper.BindPFlag("document.manifest", serveCmd.Flags().Lookup("manifest"))
	_ = viper.BindPFlag("pages.content_dir", serveCmd.Flags().Lookup("content"))
}

func runServe(cmd *cobra.Command, args []string) error {
	if dev, _ := cmd.Flags().GetBool("dev"); dev {
		viper.Set("server.environment", "development")
		viper.Set("development.watch_shell", true)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info(ctx, "Starting ssrgate",
		"version", version.GetShortVersion(),
		"addr", cfg.Server.Addr(),
		"locales", cfg.Locales.Supported,
		"default_locale", cfg.Locales.Default,
		"environment", cfg.Server.Environment)

	return srv.Run(ctx)
}

// fallbackLocale returns the supported spelling of the configured page
// fallback locale, or the registry default when it is unset or unsupported.
func fallbackLocale(ctx context.Context, registry *locale.Registry, configured string, logger logging.Logger) string {
	if configured == "" {
		return registry.Default()
	}
	if code, ok := registry.Lookup(configured); ok {
		return code
	}
	logger.Warn(ctx, nil, "Fallback locale is not supported, using the default locale",
		"configured", configured, "default", registry.Default())
	return registry.Default()
}

// buildServer assembles every component from cfg. Watchers it starts are
// handed to the server, which stops them on shutdown.
func buildServer(ctx context.Context, cfg *config.Config, logger logging.Logger) (*server.Server, error) {
	registry, err := locale.NewRegistry(cfg.Locales.Supported, cfg.Locales.Default)
	if err != nil {
		return nil, fmt.Errorf("configuring locales: %w", err)
	}
	if registry.Default() != cfg.Locales.Default && cfg.Locales.Default != "" {
		logger.Warn(ctx, nil, "Default locale is not supported, using the first supported locale",
			"configured", cfg.Locales.Default, "default", registry.Default())
	}

	resolver := locale.NewResolver(registry, locale.ResolverOptions{
		APIPrefixes:    cfg.Locales.APIPrefixes,
		BypassPrefixes: cfg.Locales.BypassPrefixes,
	})

	shell, err := document.LoadShell(cfg.Document.Shell)
	if err != nil {
		return nil, err
	}

	var manifest *document.Manifest
	if cfg.Document.Manifest != "" {
		manifest, err = document.LoadManifest(cfg.Document.Manifest, cfg.Document.AssetBase)
		if err != nil {
			return nil, err
		}
		if _, err := manifest.Require(cfg.Document.DefaultEntry); err != nil {
			logger.Warn(ctx, err, "Default client entry missing from manifest", "entry", cfg.Document.DefaultEntry)
		}
	}

	pageRenderer := renderer.NewPageRenderer(pages.NewFileSource(cfg.Pages.ContentDir), renderer.PageOptions{
		FallbackLocale: fallbackLocale(ctx, registry, cfg.Pages.FallbackLocale, logger),
		DefaultEntry:   cfg.Document.DefaultEntry,
		SiteName:       cfg.Pages.SiteName,
	})

	var metrics *monitoring.Metrics
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewMetrics(monitoring.MetricsConfig{
			Namespace: cfg.Metrics.Namespace,
			Runtime:   cfg.Metrics.Runtime,
		})
	}

	info := version.GetBuildInfo()
	health := monitoring.NewHealthMonitor(logger, info.Version, info.GitCommit)
	health.RegisterCheck(monitoring.FileHealthChecker("shell", cfg.Document.Shell, true))
	health.RegisterCheck(monitoring.FileHealthChecker("content", cfg.Pages.ContentDir, false))
	health.RegisterCheck(monitoring.GoroutineHealthChecker())

	var closers []io.Closer
	if cfg.IsDevelopment() && cfg.Development.WatchShell {
		w, err := watchShell(ctx, shell, cfg, logger)
		if err != nil {
			return nil, err
		}
		closers = append(closers, w)
	}

	return server.New(server.Deps{
		Config:   cfg,
		Logger:   logger,
		Resolver: resolver,
		Renderer: pageRenderer,
		Engine:   document.NewEngine(document.Options{StateVariable: cfg.Document.StateVariable}),
		Shell:    shell,
		Manifest: manifest,
		Metrics:  metrics,
		Health:   health,
		Closers:  closers,
	})
}

func watchShell(ctx context.Context, shell *document.Shell, cfg *config.Config, logger logging.Logger) (*watcher.FileWatcher, error) {
	w, err := watcher.NewFileWatcher(cfg.Development.Debounce, logger)
	if err != nil {
		return nil, err
	}
	if err := w.WatchFile(shell.Path()); err != nil {
		_ = w.Close()
		return nil, err
	}
	w.AddHandler(watcher.ReloadHandler(shell, logger))

	if err := w.Start(context.WithoutCancel(ctx)); err != nil {
		_ = w.Close()
		return nil, err
	}
	logger.Info(ctx, "Watching shell for changes", "path", shell.Path())
	return w, nil
}
