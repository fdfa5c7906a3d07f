package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const listingPageOne = `<html><body>
<div class="risultato">
  <a href="/atti/199">LEGGE 20 gennaio 2026, n. 199</a>
  <span>Pubblicata il 20 gennaio 2026</span>
</div>
<div class="risultato">
  <a href="/atti/12">Decreto-Legge 18 gennaio 2026, n. 12</a>
  <span>Pubblicato il 18 gennaio 2026</span>
</div>
</body></html>`

const listingPageTwo = `<html><body>
<div class="risultato">
  <a href="/atti/7">Circolare 10 dicembre 2025, n. 7</a>
  <span>Pubblicata il 10 dicembre 2025</span>
</div>
</body></html>`

func listingServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Query().Get("page")]
		if !ok {
			body = "<html><body><p>nessun risultato</p></body></html>"
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestWalker(t *testing.T, cfg WalkerConfig) *Walker {
	t.Helper()
	f, _ := newTestFetcher(t, FetcherConfig{MaxRetries: 1}, nil)
	return NewWalker(f, cfg, zaptest.NewLogger(t))
}

func TestListPageParsesItems(t *testing.T) {
	t.Parallel()

	server := listingServer(t, map[string]string{"1": listingPageOne})
	walker := newTestWalker(t, WalkerConfig{})
	target := Target{SourceID: "gazzetta", ListURL: server.URL + "/elenco?page={page}"}

	items, err := walker.ListPage(context.Background(), target, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "LEGGE 20 gennaio 2026, n. 199", items[0].Title)
	assert.Equal(t, "199", items[0].ExternalID)
	assert.Equal(t, "legge", items[0].DocumentType)
	assert.Equal(t, time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC), items[0].Published)
	assert.Equal(t, server.URL+"/atti/199", items[0].DetailURL, "relative hrefs resolve against the listing URL")

	assert.Equal(t, "12", items[1].ExternalID)
	assert.Equal(t, "decreto_legge", items[1].DocumentType)
}

func TestListPageFallsBackThroughSelectors(t *testing.T) {
	t.Parallel()

	page := `<html><body><ul>
<li class="elenco_risultati"><a href="/atti/3">Provvedimento 5 marzo 2026, n. 3</a></li>
</ul></body></html>`
	server := listingServer(t, map[string]string{"1": page})
	walker := newTestWalker(t, WalkerConfig{})
	target := Target{SourceID: "entrate", ListURL: server.URL + "/elenco?page={page}"}

	items, err := walker.ListPage(context.Background(), target, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "3", items[0].ExternalID)
}

func TestListPageSkipsItemsWithoutLinkOrTitle(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<div class="risultato"><span>senza collegamento</span></div>
<div class="risultato"><a href="/atti/9">   </a></div>
<div class="risultato"><a href="/atti/8">Decreto 2 febbraio 2026, n. 8</a></div>
</body></html>`
	server := listingServer(t, map[string]string{"1": page})
	walker := newTestWalker(t, WalkerConfig{})
	target := Target{SourceID: "gazzetta", ListURL: server.URL + "/elenco?page={page}"}

	items, err := walker.ListPage(context.Background(), target, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "8", items[0].ExternalID)
}

func TestWalkSinceStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	server := listingServer(t, map[string]string{"1": listingPageOne, "2": listingPageTwo})
	walker := newTestWalker(t, WalkerConfig{MaxPages: 10})
	target := Target{SourceID: "gazzetta", ListURL: server.URL + "/elenco?page={page}"}

	since := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	items, err := walker.WalkSince(context.Background(), target, since)
	require.NoError(t, err)
	assert.Len(t, items, 3, "pages one and two collected, page three is empty")
}

func TestWalkSinceStopsWhenPagePredatesWindow(t *testing.T) {
	t.Parallel()

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, listingPageOne)
		default:
			fmt.Fprint(w, listingPageTwo)
		}
	}))
	t.Cleanup(server.Close)

	walker := newTestWalker(t, WalkerConfig{MaxPages: 10})
	target := Target{SourceID: "gazzetta", ListURL: server.URL + "/elenco?page={page}"}

	since := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	items, err := walker.WalkSince(context.Background(), target, since)
	require.NoError(t, err)
	assert.Len(t, items, 2, "the December item predates the window")
	assert.Equal(t, 2, requests, "walk stops after the first all-older page")
}

func TestWalkSinceHonorsPageCeiling(t *testing.T) {
	t.Parallel()

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		fmt.Fprint(w, listingPageOne)
	}))
	t.Cleanup(server.Close)

	walker := newTestWalker(t, WalkerConfig{MaxPages: 3})
	target := Target{SourceID: "gazzetta", ListURL: server.URL + "/elenco?page={page}"}

	items, err := walker.WalkSince(context.Background(), target, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, requests)
	assert.Len(t, items, 6)
}

func TestWalkSinceKeepsUndatedItems(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<div class="risultato"><a href="/atti/x">Comunicato stampa n. 4</a></div>
</body></html>`
	server := listingServer(t, map[string]string{"1": page})
	walker := newTestWalker(t, WalkerConfig{MaxPages: 5})
	target := Target{SourceID: "gazzetta", ListURL: server.URL + "/elenco?page={page}"}

	since := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	items, err := walker.WalkSince(context.Background(), target, since)
	require.NoError(t, err)
	require.Len(t, items, 1, "items without a parsable date defer to the detail pass")
	assert.True(t, items[0].Published.IsZero())
}

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://x.it/elenco?page=4", buildPageURL("https://x.it/elenco?page={page}", 4))
	assert.Equal(t, "https://x.it/elenco?page=2", buildPageURL("https://x.it/elenco", 2))
	assert.Equal(t, "https://x.it/elenco?s=1&page=2", buildPageURL("https://x.it/elenco?s=1", 2))
}
