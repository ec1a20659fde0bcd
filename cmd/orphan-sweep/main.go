// orphan-sweep однократно удаляет позиции, чей заказ уже удалён.
// Использует ту же конфигурацию, что и ehn-server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/ejjahanieklu/ehn/internal/app"
	"github.com/ejjahanieklu/ehn/internal/service/cleanup"
	"github.com/ejjahanieklu/ehn/internal/service/ordering"
)

type options struct {
	configFile string
	batchSize  int
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		fail("%v", err)
	}

	v, err := app.NewViper(opts.configFile)
	if err != nil {
		fail("%v", err)
	}
	cfg, warnings := app.LoadConfig(v)
	for _, warning := range warnings {
		log.Warn(warning)
	}
	if opts.batchSize > 0 {
		cfg.CleanupBatchSize = opts.batchSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pruned, err := run(ctx, cfg, log.WithField("component", "orphan-sweep"))
	if err != nil {
		fail("orphan sweep failed: %v", err)
	}
	fmt.Printf("orphan sweep ok: pruned=%d\n", pruned)
}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("orphan-sweep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configFile, "config", "", "path to config file")
	fs.IntVar(&opts.batchSize, "batch-size", 0, "items removed per pass (0 = cleanup.batch_size)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.batchSize < 0 {
		return options{}, fmt.Errorf("batch-size must be >= 0")
	}
	return opts, nil
}

// run открывает хранилище и выполняет проходы очистки, пока они что-то удаляют.
func run(ctx context.Context, cfg app.Config, logger *log.Entry) (int, error) {
	gateway, err := app.OpenGateway(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := gateway.Close(context.WithoutCancel(ctx)); err != nil {
			logger.WithError(err).Warn("failed to close document store")
		}
	}()

	items := ordering.NewItemRepository(gateway, ordering.WithOpTimeout(cfg.StoreOpTimeout))
	worker := cleanup.NewOrphanWorker(items,
		cleanup.WithLogger(logger),
		cleanup.WithBatchSize(cfg.CleanupBatchSize),
	)
	return worker.Sweep(ctx)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
