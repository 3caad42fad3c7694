package e2e

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hyperengineering/estimator/content"
	"github.com/hyperengineering/estimator/internal/api"
	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/localize"
	"github.com/hyperengineering/estimator/internal/reconcile"
	"github.com/hyperengineering/estimator/internal/search"
	"github.com/hyperengineering/estimator/internal/snapshot"
	"github.com/hyperengineering/estimator/internal/store"
	"github.com/hyperengineering/estimator/pkg/client"
)

const testAPIKey = "e2e-admin-key"

// testServer is an in-process estimator backed by a temp SQLite database.
type testServer struct {
	URL        string
	Store      *store.SQLiteStore
	Reconciler *reconcile.Reconciler
	Catalog    *catalog.Catalog
}

func startServer(t *testing.T) *testServer {
	t.Helper()

	cat, err := catalog.Load(content.FS)
	if err != nil {
		t.Fatalf("catalog.Load() error = %v", err)
	}
	bundles, err := localize.LoadBundles(content.FS)
	if err != nil {
		t.Fatalf("LoadBundles() error = %v", err)
	}
	provider, err := localize.NewProvider("en", bundles...)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "estimator.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	rec := reconcile.New(st, catalog.NewRegistry(cat), reconcile.NewState())
	h := api.NewHandler(api.Deps{
		Catalog:    cat,
		Localizer:  provider,
		Templates:  st,
		Reconciler: rec,
		Searcher:   search.NewIndex(cat, nil),
		Exporter:   snapshot.NewExporter(snapshot.NoopUploader{}, "exports"),
		APIKey:     testAPIKey,
		Version:    "e2e",
	})
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)

	return &testServer{URL: srv.URL, Store: st, Reconciler: rec, Catalog: cat}
}

func newClient(t *testing.T, baseURL, apiKey, lang string) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{BaseURL: baseURL, APIKey: apiKey, Language: lang})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return c
}
