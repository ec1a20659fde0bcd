package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// run раздаёт номера сценариев пулу воркеров и ждёт их завершения.
func run(ctx context.Context, client *http.Client, cfg config) (report, error) {
	started := time.Now()
	rec := newRecorder()
	sc := scenario{
		cfg:   cfg,
		runID: fmt.Sprintf("%x-%d", started.UnixNano(), os.Getpid()),
		price: decimal.New(cfg.priceCents, -2),
		api:   &apiClient{client: client, baseURL: cfg.baseURL, timeout: cfg.timeout, rec: rec},
		rec:   rec,
	}

	queue := make(chan int, cfg.concurrency)
	var wg sync.WaitGroup
	for range cfg.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range queue {
				sc.run(ctx, n)
			}
		}()
	}

	feed(ctx, queue, cfg)
	wg.Wait()
	return rec.report(started, time.Since(started))
}

// feed закрывает queue, когда исчерпан total, истекла duration или
// отменён ctx.
func feed(ctx context.Context, queue chan<- int, cfg config) {
	defer close(queue)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}
	bounded := cfg.duration <= 0 || cfg.totalSet

	for n := 0; !bounded || n < cfg.total; n++ {
		select {
		case queue <- n:
		case <-deadline:
			return
		case <-ctx.Done():
			return
		}
	}
}

type scenario struct {
	cfg   config
	runID string
	price decimal.Decimal
	api   *apiClient
	rec   *recorder
}

func (s scenario) run(ctx context.Context, n int) {
	started := time.Now()
	status := statusOK
	if err := s.steps(ctx, n); err != nil {
		status = statusFailed
	}
	s.rec.observeLabel(stepScenario, status, time.Since(started))
}

func (s scenario) steps(ctx context.Context, n int) error {
	author := fmt.Sprintf("%s-%s-%d", s.cfg.authorTag, s.runID, n)
	orderID, err := s.api.openOrder(ctx, author, s.cfg.restaurant)
	if err != nil || s.cfg.mode == modeOpen {
		return err
	}

	for i := range s.cfg.items {
		eater := fmt.Sprintf("%s-eater-%d", author, i)
		if err := s.api.addItem(ctx, orderID, eater, fmt.Sprintf("dish-%d", i), s.price); err != nil {
			return err
		}
	}

	if s.cfg.mode == modeOpenItemsClose {
		return s.api.closeOrder(ctx, orderID)
	}
	return nil
}

// apiClient вызывает HTTP API и отдаёт каждый вызов в recorder.
type apiClient struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	rec     *recorder
}

func (a *apiClient) openOrder(ctx context.Context, author, restaurant string) (string, error) {
	body := map[string]any{
		"from":   map[string]any{"name": restaurant},
		"author": author,
		"email":  author + "@load.test",
	}
	var created struct {
		ID string `json:"_id"`
	}
	if err := a.call(ctx, "OpenOrder", http.MethodPost, "/order", body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("open order: response has no _id")
	}
	return created.ID, nil
}

func (a *apiClient) addItem(ctx context.Context, orderID, author, name string, price decimal.Decimal) error {
	body := map[string]any{
		"name":   name,
		"author": author,
		"price":  price.StringFixed(2),
		"_order": orderID,
	}
	return a.call(ctx, "AddItem", http.MethodPost, "/item", body, nil)
}

func (a *apiClient) closeOrder(ctx context.Context, orderID string) error {
	return a.call(ctx, "CloseOrder", http.MethodDelete, "/order/"+orderID, nil, nil)
}

func (a *apiClient) call(ctx context.Context, step, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		a.rec.observe(step, 0, time.Since(started))
		return err
	}
	defer resp.Body.Close()
	a.rec.observe(step, resp.StatusCode, time.Since(started))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
