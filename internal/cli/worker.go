package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/personakit/personakit/internal/feedback"
	"github.com/personakit/personakit/internal/metrics"
	"github.com/personakit/personakit/internal/mindscape"
	"github.com/personakit/personakit/internal/outbox"
	"github.com/personakit/personakit/internal/persona"
	"github.com/personakit/personakit/internal/retry"
	"github.com/personakit/personakit/internal/staleness"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background task worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	printHeader("⚙️ PersonaKit Worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	bus := staleness.NewBus()
	var publisher staleness.Publisher = bus
	if a.cfg.Staleness.KafkaEnabled {
		kp := staleness.NewKafkaPublisher(
			splitBrokers(a.cfg.Staleness.Brokers), a.cfg.Staleness.Topic, logger)
		defer kp.Close()
		publisher = staleness.Fanout{bus, kp}
	}

	// The registry watches staleness events so cached personas are evicted
	// as soon as a mindscape changes or a weight adjustment publishes.
	registry := persona.NewRegistry(logger)
	go registry.Watch(ctx, bus.Subscribe())

	retryCfg := retry.Config{
		MaxAttempts: a.cfg.Mindscape.MaxRetries,
		BaseDelay:   a.cfg.Mindscape.RetryBase,
		MaxDelay:    a.cfg.Mindscape.RetryCap,
	}

	updater := mindscape.NewUpdater(a.observations, a.mindscapes, publisher, retryCfg, logger)
	adjuster := feedback.NewAdjuster(a.feedback, a.mappers, retryCfg, registry, logger)

	dispatcher := outbox.NewDispatcher(a.tasks, outbox.DispatcherConfig{
		Workers:      a.cfg.Worker.Dispatchers,
		PollInterval: a.cfg.Worker.PollInterval,
		MaxAttempts:  a.cfg.Worker.MaxAttempts,
		BackoffBase:  a.cfg.Worker.BackoffBase,
		BackoffCap:   a.cfg.Worker.BackoffCap,
		Retention:    a.cfg.Worker.TaskRetention,
	}, logger)
	dispatcher.Register(outbox.TaskProcessObservation, updater.HandleTask)
	dispatcher.Register(outbox.TaskProcessFeedback, adjuster.HandleTask)

	if a.cfg.Metrics.Enabled {
		go serveMetrics(ctx, a.cfg.Metrics.Addr, logger)
	}

	fmt.Printf("Worker running (dispatchers=%d, db=%s). Ctrl-C to stop.\n",
		a.cfg.Worker.Dispatchers, a.cfg.Paths.DatabasePath)
	dispatcher.Run(ctx)
	return nil
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logger.Info("Metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics server stopped", "error", err)
	}
}
