package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const detailPage = `<html><head><title>Portale Normativo</title></head><body>
<h1 class="titolo_atto">LEGGE 30 dicembre 2025, n. 199</h1>
<div class="testo_atto">
Disposizioni urgenti in materia di riscossione presso l'agenzia delle entrate.
La presente legge disciplina la definizione agevolata dei carichi affidati
all'agente della riscossione e introduce misure di semplificazione fiscale.
</div>
</body></html>`

func newTestDetailFetcher(t *testing.T, cfg DetailFetcherConfig) *DetailFetcher {
	t.Helper()
	f, _ := newTestFetcher(t, FetcherConfig{MaxRetries: 1}, nil)
	return NewDetailFetcher(f, cfg, zaptest.NewLogger(t))
}

func serveDetail(t *testing.T, contentType string, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchDetailExtractsDocument(t *testing.T) {
	t.Parallel()

	server := serveDetail(t, "text/html; charset=utf-8", map[string]string{"/atti/199": detailPage})
	d := newTestDetailFetcher(t, DetailFetcherConfig{MinBodyLength: 40})
	target := Target{SourceID: "gazzetta"}

	doc, err := d.FetchDetail(context.Background(), target, ListingItem{DetailURL: server.URL + "/atti/199"})
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "gazzetta", doc.Source)
	assert.Equal(t, "199", doc.ExternalID)
	assert.Equal(t, "LEGGE 30 dicembre 2025, n. 199", doc.Title)
	assert.Equal(t, time.Date(2025, time.December, 30, 0, 0, 0, 0, time.UTC), doc.Published)
	assert.Equal(t, "legge", doc.DocumentType)
	assert.Contains(t, doc.Content, "definizione agevolata")
	assert.Equal(t, "tributario", doc.Section)
	assert.Len(t, doc.Fingerprint, 64)
}

func TestFetchDetailRejectsIncompleteDocument(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<h1>Nota informativa</h1>
<div class="testo_atto">Avviso generico privo di estremi identificativi, senza numero e senza alcuna data utile per la catalogazione del documento.</div>
</body></html>`
	server := serveDetail(t, "text/html", map[string]string{"/atti/x": page})
	d := newTestDetailFetcher(t, DetailFetcherConfig{MinBodyLength: 40})

	doc, err := d.FetchDetail(context.Background(), Target{SourceID: "gazzetta"}, ListingItem{DetailURL: server.URL + "/atti/x"})
	require.NoError(t, err)
	assert.Nil(t, doc, "documents missing id or date are discarded, not partially stored")
}

func TestFetchDetailFallsBackToListingMetadata(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<h1>Testo coordinato</h1>
<div class="testo_atto">Il testo coordinato raccoglie le modifiche apportate dagli interventi successivi alla pubblicazione originaria della norma.</div>
</body></html>`
	server := serveDetail(t, "text/html", map[string]string{"/atti/55": page})
	d := newTestDetailFetcher(t, DetailFetcherConfig{MinBodyLength: 40})

	item := ListingItem{
		DetailURL:  server.URL + "/atti/55",
		ExternalID: "55",
		Published:  time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC),
	}
	doc, err := d.FetchDetail(context.Background(), Target{SourceID: "gazzetta"}, item)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "55", doc.ExternalID)
	assert.Equal(t, item.Published, doc.Published)
}

func TestFetchDetailSkipsNonHTML(t *testing.T) {
	t.Parallel()

	server := serveDetail(t, "application/pdf", map[string]string{"/atti/199.pdf": "%PDF-1.4"})
	d := newTestDetailFetcher(t, DetailFetcherConfig{})

	doc, err := d.FetchDetail(context.Background(), Target{SourceID: "gazzetta"}, ListingItem{DetailURL: server.URL + "/atti/199.pdf"})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestFetchDetailUsesURLTemplate(t *testing.T) {
	t.Parallel()

	server := serveDetail(t, "text/html", map[string]string{"/dettaglio/199": detailPage})
	d := newTestDetailFetcher(t, DetailFetcherConfig{MinBodyLength: 40})
	target := Target{
		SourceID:          "gazzetta",
		DetailURLTemplate: server.URL + "/dettaglio/{id}",
	}

	doc, err := d.FetchDetail(context.Background(), target, ListingItem{ExternalID: "199"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "199", doc.ExternalID)
}

func TestFetchDetailWithoutAnyURLIsDiscarded(t *testing.T) {
	t.Parallel()

	d := newTestDetailFetcher(t, DetailFetcherConfig{})
	doc, err := d.FetchDetail(context.Background(), Target{SourceID: "gazzetta"}, ListingItem{Title: "senza link"})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestExtractBodyRanksSelectors(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<h1>DECRETO 5 marzo 2026, n. 31</h1>
<div class="testo_atto">troppo corto</div>
<div id="testo">Il presente decreto stabilisce le modalita operative per la trasmissione telematica delle istanze e ne definisce i termini.</div>
</body></html>`
	server := serveDetail(t, "text/html", map[string]string{"/atti/31": page})
	d := newTestDetailFetcher(t, DetailFetcherConfig{MinBodyLength: 40})

	doc, err := d.FetchDetail(context.Background(), Target{SourceID: "gazzetta"}, ListingItem{DetailURL: server.URL + "/atti/31"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Contains(t, doc.Content, "trasmissione telematica")
	assert.NotContains(t, doc.Content, "troppo corto")
}

func TestFetchBatchFiltersFailuresAndRejections(t *testing.T) {
	t.Parallel()

	rejected := `<html><body><h1>Senza estremi</h1>
<div class="testo_atto">Contenuto descrittivo sufficiente per superare la soglia minima ma privo degli estremi richiesti.</div></body></html>`
	server := serveDetail(t, "text/html", map[string]string{
		"/atti/199": detailPage,
		"/atti/bad": rejected,
	})
	d := newTestDetailFetcher(t, DetailFetcherConfig{MinBodyLength: 40, MaxConcurrent: 2})

	items := []ListingItem{
		{DetailURL: server.URL + "/atti/199"},
		{DetailURL: server.URL + "/atti/bad"},
		{DetailURL: server.URL + "/atti/missing"},
	}
	docs := d.FetchBatch(context.Background(), Target{SourceID: "gazzetta"}, items)
	require.Len(t, docs, 1)
	assert.Equal(t, "199", docs[0].ExternalID)
}

func TestFetchBatchRespectsCancelledContext(t *testing.T) {
	t.Parallel()

	server := serveDetail(t, "text/html", map[string]string{"/atti/199": detailPage})
	d := newTestDetailFetcher(t, DetailFetcherConfig{MinBodyLength: 40, MaxConcurrent: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []ListingItem{{DetailURL: server.URL + "/atti/199"}}
	docs := d.FetchBatch(ctx, Target{SourceID: "gazzetta"}, items)
	assert.Empty(t, docs)
}

func TestCollectTextJoinsHeadings(t *testing.T) {
	t.Parallel()

	page := `<html><body><h1>Primo</h1><h2>Secondo</h2><h3>   </h3></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	joined := collectText(doc, "h1, h2, h3")
	assert.Equal(t, "Primo\nSecondo", joined)
}
