package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/webcam/cmd"
	"github.com/smazurov/webcam/internal/api"
	"github.com/smazurov/webcam/internal/capture"
	"github.com/smazurov/webcam/internal/config"
	"github.com/smazurov/webcam/internal/devices"
	"github.com/smazurov/webcam/internal/events"
	"github.com/smazurov/webcam/internal/logging"
	"github.com/smazurov/webcam/internal/metrics/exporters"
	"github.com/smazurov/webcam/internal/systemd"
	"github.com/smazurov/webcam/internal/version"
)

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically; flags set on the command line win
		if loadErr := config.Load(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		var (
			registry *logging.Registry
			service  *capture.Service
			server   *api.Server
			watcher  *config.Watcher[runtimeConfig]
			detector devices.Detector
			stats    *exporters.SSEExporter
			notifier *systemd.Notifier
			cancel   context.CancelFunc = func() {}
		)

		hooks.OnStart(func() {
			registry = logging.New(opts.loggingConfig())
			slog.SetDefault(registry.Default())
			logger := registry.Logger("main")
			logger.Info("Starting webcam", "version", version.String(), "config", opts.Config)

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			eventBus := events.New()
			registry.SetCallback(func(entry logging.LogEntry) {
				eventBus.Publish(events.LogEntryEvent{
					Seq:        entry.Seq,
					Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
					Level:      entry.Level,
					Module:     entry.Module,
					Message:    entry.Message,
					Attributes: entry.Attributes,
				})
			})

			settings, err := opts.captureSettings()
			if err != nil {
				logger.Error("Invalid camera configuration", "error", err)
				os.Exit(1)
			}
			service, err = capture.New(settings,
				capture.WithLogger(registry.Logger("capture")),
				capture.WithBus(eventBus),
				capture.WithRetryDelay(opts.retryDelay()))
			if err != nil {
				logger.Error("Invalid camera configuration", "error", err)
				os.Exit(1)
			}

			detector = devices.NewDetector(registry.Logger("devices"))
			if monErr := detector.StartMonitoring(ctx, eventBus); monErr != nil {
				logger.Warn("Hotplug monitoring unavailable", "error", monErr)
			}

			notifier = systemd.NewNotifier(registry.Logger("systemd"))
			watcher = config.NewWatcher(opts.Config, reloader(*opts, cli.Root()), registry.Logger("config"))
			watcher.OnReload(func(rc runtimeConfig) {
				notifier.Reloading()
				registry.Apply(rc.Logging)
				if err := service.Reconfigure(rc.Capture); err != nil {
					logger.Warn("Rejected camera configuration", "error", err)
				}
				notifier.Ready()
			})
			if _, statErr := os.Stat(opts.Config); statErr == nil {
				if wErr := watcher.Start(ctx); wErr != nil {
					logger.Warn("Config hot reload unavailable", "error", wErr)
				}
			}

			apiOpts := &api.Options{
				AuthUsername: opts.AuthUsername,
				AuthPassword: opts.AuthPassword,
				CORSOrigin:   opts.CORSOrigin,
				Capture:      service,
				Devices:      detector,
				Logs:         registry,
				EventBus:     eventBus,
				Logger:       registry.Logger("api"),
				HTTPLogger:   registry.Logger("http"),
			}
			if opts.MetricsPrometheus {
				apiOpts.PrometheusHandler = exporters.HTTPHandler()
			}
			server = api.NewServer(apiOpts)

			if opts.MetricsSSE {
				stats = exporters.NewSSEExporter(eventBus)
				stats.Start(ctx)
			}

			if startErr := service.Start(ctx); startErr != nil {
				logger.Error("Failed to start capture", "error", startErr)
				os.Exit(1)
			}

			go notifier.RunWatchdog(ctx, func() bool { return healthy(service, time.Now()) })
			notifier.Status(fmt.Sprintf("serving %s on %s", settings.Device, opts.Port))
			notifier.Ready()

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if registry == nil {
				return
			}
			logger := registry.Logger("main")
			logger.Info("Shutting down server")
			notifier.Stopping()

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			// releases the device before the process exits
			service.Stop()
			detector.StopMonitoring()
			if stats != nil {
				stats.Stop()
			}
			cancel()
			registry.Close()
		})
	})

	root := cli.Root()
	root.Use = "webcam"
	root.Short = "V4L2 webcam capture service"
	root.Version = version.String()

	root.AddCommand(cmd.CreateCaptureCmd(cmd.Deps{}))
	root.AddCommand(cmd.CreateProbeCmd(cmd.Deps{}))
	root.AddCommand(cmd.CreateDevicesCmd(devices.NewDetector(nil)))

	cli.Run()
}
