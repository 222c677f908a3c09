// Package worker runs the background refresh of the remote data feeds.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trafficviewer/pkg/cache"
	"trafficviewer/pkg/vatsim"
)

// Fetcher performs a GET and returns the body.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Config holds the feed endpoints and self-check intervals.
type Config struct {
	DataURL       string
	MetarURL      string
	DataInterval  time.Duration
	MetarInterval time.Duration
}

// Command is a unit of work for the worker goroutine.
type Command int

const (
	RefreshWeather Command = iota
	RefreshData
	Stop
)

func (c Command) String() string {
	switch c {
	case RefreshWeather:
		return "RefreshWeather"
	case RefreshData:
		return "RefreshData"
	case Stop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// Stats is a snapshot of the worker's refresh history.
type Stats struct {
	WeatherRefreshes int       `json:"weather_refreshes"`
	WeatherFailures  int       `json:"weather_failures"`
	LastWeather      time.Time `json:"last_weather,omitzero"`
	Stations         int       `json:"stations"`
	DataRefreshes    int       `json:"data_refreshes"`
	DataFailures     int       `json:"data_failures"`
	LastData         time.Time `json:"last_data,omitzero"`
	Flights          int       `json:"flights"`
	Pending          int       `json:"pending"`
}

// Worker owns the refresh goroutine. Commands are processed strictly in
// the order they were requested; repeated requests are not merged.
type Worker struct {
	cfg    Config
	fetch  Fetcher
	cache  *cache.Cache
	ctx    context.Context
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	queue  []Command
	closed bool
	notify chan struct{}

	// Owned by the caller of Tick and the Request methods.
	reqMu         sync.Mutex
	lastWeatherAt time.Time
	lastDataAt    time.Time

	statsMu sync.Mutex
	stats   Stats

	done      chan struct{}
	closeOnce sync.Once
}

// Start creates the worker, starts its goroutine and requests an initial
// refresh of both feeds.
func Start(ctx context.Context, cfg Config, f Fetcher, c *cache.Cache) *Worker {
	return start(ctx, cfg, f, c, time.Now)
}

func start(ctx context.Context, cfg Config, f Fetcher, c *cache.Cache, now func() time.Time) *Worker {
	w := &Worker{
		cfg:    cfg,
		fetch:  f,
		cache:  c,
		ctx:    ctx,
		now:    now,
		logger: slog.With("component", "worker"),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.run()

	w.RequestWeatherRefresh()
	w.RequestDataRefresh()
	return w
}

// RequestWeatherRefresh enqueues a METAR feed refresh and returns immediately.
func (w *Worker) RequestWeatherRefresh() {
	w.reqMu.Lock()
	w.lastWeatherAt = w.now()
	w.reqMu.Unlock()
	w.enqueue(RefreshWeather)
}

// RequestDataRefresh enqueues a data feed refresh and returns immediately.
func (w *Worker) RequestDataRefresh() {
	w.reqMu.Lock()
	w.lastDataAt = w.now()
	w.reqMu.Unlock()
	w.enqueue(RefreshData)
}

// Stop enqueues a stop command. Commands queued before it still run.
func (w *Worker) Stop() {
	w.enqueue(Stop)
}

// Tick requests a refresh of every feed whose interval has elapsed since
// its last request.
func (w *Worker) Tick() {
	now := w.now()

	w.reqMu.Lock()
	weatherDue := now.Sub(w.lastWeatherAt) > w.cfg.MetarInterval
	dataDue := now.Sub(w.lastDataAt) > w.cfg.DataInterval
	w.reqMu.Unlock()

	if weatherDue {
		w.RequestWeatherRefresh()
	}
	if dataDue {
		w.RequestDataRefresh()
	}
}

// Close stops the worker and waits for its goroutine to exit.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		w.Stop()
		<-w.done
		w.mu.Lock()
		w.closed = true
		w.queue = nil
		w.mu.Unlock()
	})
}

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stats returns a snapshot of the refresh history.
func (w *Worker) Stats() Stats {
	w.statsMu.Lock()
	s := w.stats
	w.statsMu.Unlock()

	w.mu.Lock()
	s.Pending = len(w.queue)
	w.mu.Unlock()

	s.Stations = w.cache.Weather.Len()
	s.Flights = w.cache.Flights.Len()
	return s
}

func (w *Worker) enqueue(cmd Command) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.queue = append(w.queue, cmd)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// next pops the oldest command, or returns false if the queue is empty.
func (w *Worker) next() (Command, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return 0, false
	}
	cmd := w.queue[0]
	w.queue[0] = 0
	w.queue = w.queue[1:]
	return cmd, true
}

func (w *Worker) run() {
	defer close(w.done)
	w.logger.Debug("Worker started")

	for {
		cmd, ok := w.next()
		if !ok {
			select {
			case <-w.notify:
				continue
			case <-w.ctx.Done():
				w.logger.Debug("Worker cancelled")
				return
			}
		}

		switch cmd {
		case RefreshWeather:
			w.refreshWeather()
		case RefreshData:
			w.refreshData()
		case Stop:
			w.logger.Debug("Worker stopped")
			return
		}
	}
}

func (w *Worker) refreshWeather() {
	body, err := w.fetch.Get(w.ctx, w.cfg.MetarURL)
	if err != nil {
		w.logger.Warn("Unable to retrieve METARs", "error", err)
		w.recordWeather(false)
		return
	}

	reports := vatsim.ParseMETARs(body)
	for _, r := range reports {
		w.cache.Weather.Set(r.Station, r.Raw)
	}
	w.recordWeather(true)
	w.logger.Info("METARs fetched", "count", len(reports))
}

func (w *Worker) refreshData() {
	body, err := w.fetch.Get(w.ctx, w.cfg.DataURL)
	if err != nil {
		w.logger.Warn("Unable to retrieve network data", "error", err)
		w.recordData(false)
		return
	}

	pilots, skipped, err := vatsim.DecodePilots(body)
	if err != nil {
		w.logger.Warn("Network data rejected, keeping cached flights", "error", err)
		w.recordData(false)
		return
	}

	added := 0
	for _, p := range pilots {
		if w.cache.Flights.Merge(p) {
			added++
		}
	}
	w.recordData(true)
	w.logger.Info("Fetched aircraft details", "count", len(pilots), "new", added, "skipped", skipped)
}

func (w *Worker) recordWeather(ok bool) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	if ok {
		w.stats.WeatherRefreshes++
		w.stats.LastWeather = w.now()
	} else {
		w.stats.WeatherFailures++
	}
}

func (w *Worker) recordData(ok bool) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	if ok {
		w.stats.DataRefreshes++
		w.stats.LastData = w.now()
	} else {
		w.stats.DataFailures++
	}
}
