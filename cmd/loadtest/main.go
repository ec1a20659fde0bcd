// loadtest нагружает HTTP API групповых заказов: открывает заказы,
// добавляет в них позиции и при необходимости закрывает их.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

type loadMode string

const (
	modeOpen           loadMode = "open"
	modeOpenItems      loadMode = "open-items"
	modeOpenItemsClose loadMode = "open-items-close"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	items       int
	priceCents  int64
	restaurant  string
	authorTag   string
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	cfg := config{}
	var mode string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "url", "http://localhost:3000", "HTTP API base URL")
	fs.IntVar(&cfg.total, "total", 400, "number of scenarios; with -duration acts as an upper bound when set")
	fs.DurationVar(&cfg.duration, "duration", 0, "run for a fixed time instead of a fixed count")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "parallel workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "timeout of a single HTTP call")
	fs.StringVar(&mode, "mode", string(modeOpenItems), "open | open-items | open-items-close")
	fs.IntVar(&cfg.items, "items", 3, "items per order")
	fs.Int64Var(&cfg.priceCents, "price-cents", 1250, "price of every item in cents")
	fs.StringVar(&cfg.restaurant, "restaurant", "Load Bistro", "restaurant of every order")
	fs.StringVar(&cfg.authorTag, "author-tag", "load", "prefix of generated author names")
	fs.StringVar(&cfg.outputPath, "output", "", "write JSON report to this file")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	fs.Visit(func(f *flag.Flag) { cfg.totalSet = cfg.totalSet || f.Name == "total" })

	cfg.mode = loadMode(strings.TrimSpace(mode))
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	return cfg, cfg.validate()
}

func (c config) validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.mode {
	case modeOpen, modeOpenItems, modeOpenItemsClose:
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.mode))
	}
	check(c.baseURL != "", "url is required")
	check(c.duration >= 0, "duration cannot be negative")
	check(c.duration > 0 || c.total > 0, "total must be positive without duration")
	check(!(c.duration > 0 && c.totalSet) || c.total > 0, "explicit total must be positive")
	check(c.concurrency > 0, "concurrency must be positive")
	check(c.timeout > 0, "timeout must be positive")
	check(c.mode == modeOpen || c.items > 0, "items must be positive")
	check(c.priceCents >= 0, "price-cents cannot be negative")
	check(strings.TrimSpace(c.restaurant) != "", "restaurant is required")
	check(strings.TrimSpace(c.authorTag) != "", "author-tag is required")
	return errors.Join(errs...)
}

// target описывает условие остановки прогона.
func (c config) target() string {
	switch {
	case c.duration <= 0:
		return fmt.Sprintf("count:%d", c.total)
	case c.totalSet:
		return fmt.Sprintf("duration:%s,max-total:%d", c.duration, c.total)
	default:
		return fmt.Sprintf("duration:%s", c.duration)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = cfg.concurrency

	result, err := run(ctx, &http.Client{Transport: transport}, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
			os.Exit(1)
		}
	}
	if result.Scenarios.Failed > 0 {
		os.Exit(1)
	}
}
