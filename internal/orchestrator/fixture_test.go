package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/checkpoint"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/config"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/database"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/export"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/fetch"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/metrics"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const accordPage = `<html><body>
<div class="panel">
  <h3 class="panel-title">RADIATOR</h3>
  <div class="part-row">
    <span class="part-number">3951</span>
    <span class="part-name">Radiator</span>
    <img src="/images/3951.jpg" alt="3951">
    <ul class="specs"><li>Core Rows: 1</li></ul>
    <span class="price">$249.99</span>
    <span class="stock">In Stock</span>
    <a class="detail-link" href="/items/3951">Details</a>
  </div>
  <div class="part-row">
    <span class="part-number">3951</span>
    <span class="part-name">Radiator</span>
    <img src="/images/3951.jpg" alt="3951">
    <ul class="specs"><li>Core Rows: 1</li></ul>
    <span class="price">$249.99</span>
    <span class="stock">In Stock</span>
    <a class="detail-link" href="/items/3951">Details</a>
  </div>
  <div class="part-row"><span class="part-name">No part number</span></div>
</div>
<div class="panel">
  <h3 class="panel-title">INVERTER COOLER</h3>
  <div class="part-row">
    <span class="part-number">3985</span>
    <span class="part-name">Inverter Cooler</span>
    <span class="engine">2.0L L4</span>
    <span class="fuel-type">Hybrid</span>
    <span class="price">$129.00</span>
  </div>
</div>
</body></html>`

const civicPage = `<html><body>
<div class="panel">
  <h3 class="panel-title">RADIATOR</h3>
  <div class="part-row">
    <span class="part-number">3951</span>
    <span class="part-name">Radiator</span>
    <img src="/images/3951.jpg" alt="3951">
    <ul class="specs"><li>Core Rows: 1</li></ul>
    <span class="price">$249.99</span>
    <span class="stock">In Stock</span>
    <a class="detail-link" href="/items/3951">Details</a>
  </div>
</div>
</body></html>`

const pilotPage = `<html><body>
<div class="panel">
  <h3 class="panel-title">CONDENSER</h3>
  <div class="part-row">
    <span class="part-number">10650</span>
    <span class="part-name">A/C Condenser</span>
  </div>
</div>
</body></html>`

const detail3951 = `<html><body>
<h1 class="product-title">3951 Radiator</h1>
<div class="product-price">$239.50</div>
<div class="product-description">Direct-fit replacement radiator.</div>
<table class="specifications">
  <tr><th>Core Thickness</th><td>16mm</td></tr>
</table>
<div class="product-gallery">
  <img src="/images/3951-a.jpg" alt="front">
  <img src="/images/3951-b.jpg" alt="back">
</div>
<table class="interchange"><tbody>
  <tr><td>OEM</td><td>19010-6A0-A01</td></tr>
</tbody></table>
</body></html>`

const detail3985 = `<html><body>
<h1 class="product-title">3985 Inverter Cooler</h1>
<div class="product-description">Hybrid inverter cooler.</div>
</body></html>`

func yearsScript(years ...int) string {
	var sb strings.Builder
	for _, y := range years {
		sb.WriteString(`<a data-id=\"` + strconv.Itoa(y-1948) + `\">` + strconv.Itoa(y) + `<\/a>`)
	}
	return `$("#year-list").html("` + sb.String() + `");`
}

func modelsScript(models map[string]int, order ...string) string {
	var sb strings.Builder
	for _, name := range order {
		sb.WriteString(`<a href=\"/applications/` + strconv.Itoa(models[name]) + `\">` + name + `<\/a>`)
	}
	return `$("#model-list").html("` + sb.String() + `");`
}

// fixtureSite is a fake catalog host. Routes can be changed between runs.
type fixtureSite struct {
	mu     sync.Mutex
	pages  map[string]string
	status map[string]int
	hits   map[string]int
}

// newFixtureSite serves Honda 2025 with the Accord (application 100) and
// Civic (application 200) pages.
func newFixtureSite() *fixtureSite {
	return &fixtureSite{
		pages: map[string]string{
			"/ajax/years?make_id=1":   yearsScript(2025),
			"/ajax/models?year_id=77": modelsScript(map[string]int{"Accord": 100, "Civic": 200}, "Accord", "Civic"),
			"/applications/100":       accordPage,
			"/applications/200":       civicPage,
			"/items/3951":             detail3951,
			"/items/3985":             detail3985,
		},
		status: map[string]int{},
		hits:   map[string]int{},
	}
}

func (s *fixtureSite) set(uri, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[uri] = body
}

func (s *fixtureSite) fail(uri string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[uri] = status
}

func (s *fixtureSite) hitCount(uri string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[uri]
}

func (s *fixtureSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	uri := r.URL.RequestURI()
	s.hits[uri]++
	status, failing := s.status[uri]
	body, ok := s.pages[uri]
	s.mu.Unlock()

	switch {
	case failing:
		w.WriteHeader(status)
	case !ok:
		http.NotFound(w, r)
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

// testEnv wires an orchestrator to a fixture site and a private data dir.
type testEnv struct {
	t       *testing.T
	server  *httptest.Server
	dataDir string
	outDir  string
	db      *database.CatalogDB
	store   *checkpoint.FileStore
	metrics *metrics.Collector
	runs    int
}

func newTestEnv(t *testing.T, server *httptest.Server) *testEnv {
	t.Helper()

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	db, err := database.Open(dataDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &testEnv{
		t:       t,
		server:  server,
		dataDir: dataDir,
		outDir:  filepath.Join(dir, "exports"),
		db:      db,
		store:   checkpoint.NewFileStore(filepath.Join(dataDir, "checkpoint.json")),
		metrics: metrics.NewCollector(),
	}
}

func startFixture(t *testing.T) (*fixtureSite, *httptest.Server) {
	t.Helper()

	site := newFixtureSite()
	server := httptest.NewServer(site)
	t.Cleanup(server.Close)
	return site, server
}

func (e *testEnv) siteConfig(makes ...config.MakeRef) config.Site {
	site := config.DefaultFile().Site
	site.BaseURL = e.server.URL
	site.Makes = makes
	if len(makes) == 0 {
		site.Makes = []config.MakeRef{{Name: "Honda", ID: 1}}
	}
	return site
}

func newTestFetcher() *fetch.RateLimitedFetcher {
	return fetch.New(
		fetch.WithDelay(0, 0),
		fetch.WithRequestsPerMinute(0),
		fetch.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
}

func (e *testEnv) orchestrator(fetcher Fetcher, site config.Site) *Orchestrator {
	e.t.Helper()

	o, err := New(Deps{
		Site:      site,
		Selectors: config.DefaultSelectors(),
		Fetcher:   fetcher,
		Store:     e.store,
		Catalog:   e.db,
		Exporter:  export.NewExporter(e.outDir, export.WithClock(func() time.Time { return fixedNow })),
	},
		WithClock(func() time.Time { return fixedNow }),
		WithRunID(func() string {
			e.runs++
			return "run-" + strconv.Itoa(e.runs)
		}),
		WithMetrics(e.metrics),
	)
	if err != nil {
		e.t.Fatalf("New() error = %v", err)
	}
	return o
}

func (e *testEnv) run(opts Options) (*model.RunStats, error) {
	e.t.Helper()
	return e.orchestrator(newTestFetcher(), e.siteConfig()).Run(context.Background(), opts)
}

func (e *testEnv) readFile(name string) []byte {
	e.t.Helper()

	data, err := os.ReadFile(filepath.Join(e.outDir, name))
	if err != nil {
		e.t.Fatalf("failed to read %s: %v", name, err)
	}
	return data
}

func (e *testEnv) checkpoint() *model.Checkpoint {
	e.t.Helper()

	cp, err := e.store.Load(context.Background())
	if err != nil {
		e.t.Fatalf("failed to load checkpoint: %v", err)
	}
	if cp == nil {
		e.t.Fatal("no checkpoint written")
	}
	return cp
}

// cancelingFetcher cancels the run when it is asked for a matching URL.
type cancelingFetcher struct {
	next   Fetcher
	match  string
	cancel context.CancelFunc
}

func (f *cancelingFetcher) Fetch(ctx context.Context, url string, render bool) (*fetch.Document, error) {
	if strings.Contains(url, f.match) {
		f.cancel()
	}
	return f.next.Fetch(ctx, url, render)
}
