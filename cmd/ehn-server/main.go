package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/ejjahanieklu/ehn/internal/app"
	"github.com/ejjahanieklu/ehn/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

// readConfig читает конфигурацию из файла и переменных окружения EHN_*.
func readConfig(args []string, stderr io.Writer) (app.Config, bool, error) {
	fs := flag.NewFlagSet("ehn-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "path to config file (default: ./ehn.yaml or /etc/ehn/ehn.yaml)")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return app.Config{}, false, err
	}
	if *showVersion {
		return app.Config{}, true, nil
	}

	v, err := app.NewViper(*configFile)
	if err != nil {
		return app.Config{}, false, err
	}

	cfg, warnings := app.LoadConfig(v)
	for _, warning := range warnings {
		log.Warn(warning)
	}
	return cfg, false, nil
}

func main() {
	cfg, showVersion, err := readConfig(os.Args[1:], os.Stderr)
	if err != nil {
		log.WithError(err).Fatal("не удалось прочитать конфигурацию")
	}
	if showVersion {
		fmt.Println(version.GetVersion(), version.GetCommit(), version.GetDate())
		return
	}
	setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем ehn-server")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("ehn-server остановлен")
}
