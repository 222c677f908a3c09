package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficviewer/pkg/cache"
)

const (
	dataURL  = "http://feeds.test/data.json"
	metarURL = "http://feeds.test/metar"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	data  []byte
	metar []byte
	err   error
	gate  chan struct{} // when set, every Get waits on it
}

func (f *fakeFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	if url == metarURL {
		return f.metar, nil
	}
	return f.data, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	return Config{
		DataURL:       dataURL,
		MetarURL:      metarURL,
		DataInterval:  20 * time.Second,
		MetarInterval: 10 * time.Minute,
	}
}

const feed = `{"pilots":[
 {"cid":1,"callsign":"BAW123","transponder":"4521","flight_plan":{"flight_rules":"I","revision_id":1}},
 {"cid":2,"callsign":"EZY45AB","transponder":"7000","flight_plan":null},
 {"cid":"bad","callsign":"BROKEN"}
]}`

func waitInitial(t *testing.T, w *Worker) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := w.Stats()
		return s.WeatherRefreshes+s.WeatherFailures == 1 && s.DataRefreshes+s.DataFailures == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStart_InitialRefresh(t *testing.T) {
	f := &fakeFetcher{
		data:  []byte(feed),
		metar: []byte("EGLL 121250Z 24012KT 9999 FEW030 14/08 Q1012\nXX junk\nKJFK 121251Z 31015KT 10SM A3004\n"),
	}
	c := cache.New()

	w := Start(context.Background(), testConfig(), f, c)
	w.Close()

	assert.Equal(t, []string{metarURL, dataURL}, f.Calls())

	line, ok := c.Weather.Get("egll")
	require.True(t, ok)
	assert.Contains(t, line, "Q1012")
	assert.Equal(t, 2, c.Weather.Len())

	assert.Equal(t, 2, c.Flights.Len())
	e, ok := c.Flights.Peek("BAW123")
	require.True(t, ok)
	assert.True(t, e.Dirty)

	s := w.Stats()
	assert.Equal(t, 1, s.WeatherRefreshes)
	assert.Equal(t, 1, s.DataRefreshes)
	assert.Equal(t, 2, s.Flights)
}

func TestWorker_NoCoalescing(t *testing.T) {
	f := &fakeFetcher{data: []byte(`{"pilots":[]}`), gate: make(chan struct{})}
	w := Start(context.Background(), testConfig(), f, cache.New())

	w.RequestDataRefresh()
	w.RequestDataRefresh()
	w.RequestWeatherRefresh()
	w.RequestDataRefresh()

	close(f.gate)
	w.Close()

	assert.Equal(t, []string{metarURL, dataURL, dataURL, dataURL, metarURL, dataURL}, f.Calls())
}

func TestWorker_TickIntervals(t *testing.T) {
	clk := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	f := &fakeFetcher{data: []byte(`{"pilots":[]}`)}
	w := start(context.Background(), testConfig(), f, cache.New(), clk.Now)

	// Nothing is due right after start
	w.Tick()

	clk.Advance(21 * time.Second)
	w.Tick() // data due
	w.Tick() // timer was reset by the request above

	clk.Advance(10 * time.Minute)
	w.Tick() // both due

	w.Close()
	assert.Equal(t, []string{metarURL, dataURL, dataURL, metarURL, dataURL}, f.Calls())
}

func TestWorker_FetchFailureKeepsCache(t *testing.T) {
	f := &fakeFetcher{data: []byte(feed), metar: []byte("EGLL 121250Z Q1012\n")}
	c := cache.New()
	w := Start(context.Background(), testConfig(), f, c)
	waitInitial(t, w)

	f.mu.Lock()
	f.err = errors.New("connection reset")
	f.mu.Unlock()
	w.RequestDataRefresh()
	w.RequestWeatherRefresh()
	w.Close()

	assert.Equal(t, 2, c.Flights.Len())
	assert.Equal(t, 1, c.Weather.Len())
	s := w.Stats()
	assert.Equal(t, 1, s.DataFailures)
	assert.Equal(t, 1, s.WeatherFailures)
}

func TestWorker_BadTopLevelKeepsCache(t *testing.T) {
	f := &fakeFetcher{data: []byte(feed)}
	c := cache.New()
	w := Start(context.Background(), testConfig(), f, c)
	waitInitial(t, w)

	f.mu.Lock()
	f.data = []byte(`{"controllers":[]}`)
	f.mu.Unlock()
	w.RequestDataRefresh()
	w.Close()

	assert.Equal(t, 2, c.Flights.Len())
	assert.Equal(t, 1, w.Stats().DataFailures)
}

func TestWorker_CloseIdempotent(t *testing.T) {
	w := Start(context.Background(), testConfig(), &fakeFetcher{data: []byte(`{"pilots":[]}`)}, cache.New())
	w.Close()
	w.Close()

	// Requests after close are dropped
	w.RequestDataRefresh()
	assert.Zero(t, w.Stats().Pending)

	select {
	case <-w.Done():
	default:
		t.Fatal("worker goroutine still running")
	}
}

func TestWorker_ContextCancel(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	w := Start(ctx, testConfig(), f, cache.New())

	cancel()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit on cancel")
	}
	w.Close()
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "RefreshWeather", RefreshWeather.String())
	assert.Equal(t, "RefreshData", RefreshData.String())
	assert.Equal(t, "Stop", Stop.String())
	assert.Equal(t, "Unknown", Command(42).String())
}

func TestStats_JSONOmitsUnsetTimes(t *testing.T) {
	b, err := json.Marshal(Stats{})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "last_weather")
	assert.NotContains(t, string(b), "last_data")

	at := time.Date(2026, 3, 2, 14, 5, 0, 0, time.UTC)
	b, err = json.Marshal(Stats{LastWeather: at})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"last_weather":"2026-03-02T14:05:00Z"`)
	assert.NotContains(t, string(b), "last_data")
}
