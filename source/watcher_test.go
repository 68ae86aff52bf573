package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const indexPage = `<html><body>
<table class="table table-bordered">
  <tr><th>File</th><th>Last updated</th></tr>
  <tr><td>ALLFILES.ZIP</td><td>2025-01-15</td></tr>
  <tr><td>ALLFILES_IA.ZIP</td><td>2025-02-20</td></tr>
  <tr><td>ALLFILES_AP.ZIP</td><td>Updated 2024-12-31</td></tr>
</table>
</body></html>`

type memoryState struct {
	values map[string]string
}

func (m *memoryState) SourceLastUpdate(_ context.Context, project string) (string, error) {
	return m.values[project], nil
}

func (m *memoryState) SetSourceLastUpdate(_ context.Context, project, lastUpdate string) error {
	m.values[project] = lastUpdate
	return nil
}

func indexServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLatestUpdatePicksMostRecentDate(t *testing.T) {
	srv := indexServer(t, http.StatusOK, indexPage)
	w := NewWatcher(srv.URL, &memoryState{values: map[string]string{}})

	latest, err := w.LatestUpdate(context.Background())
	if err != nil {
		t.Fatalf("LatestUpdate failed: %v", err)
	}
	if latest != "2025-02-20" {
		t.Errorf("latest = %q, want 2025-02-20", latest)
	}
}

func TestLatestUpdateErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{"bad status", http.StatusServiceUnavailable, indexPage},
		{"no table", http.StatusOK, "<html><body><p>moved</p></body></html>"},
		{"no dates", http.StatusOK, `<table class="table-bordered"><tr><th>x</th></tr><tr><td>soon</td></tr></table>`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := indexServer(t, tc.status, tc.body)
			w := NewWatcher(srv.URL, &memoryState{values: map[string]string{}})
			if _, err := w.LatestUpdate(context.Background()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCheckAndCommit(t *testing.T) {
	srv := indexServer(t, http.StatusOK, indexPage)
	state := &memoryState{values: map[string]string{}}
	w := NewWatcher(srv.URL, state)
	ctx := context.Background()

	change, err := w.Check(ctx)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !change.Changed || change.Previous != "" || change.Latest != "2025-02-20" {
		t.Errorf("unexpected first change %+v", change)
	}

	if err := w.Commit(ctx, change.Latest); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	change, err = w.Check(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if change.Changed {
		t.Errorf("expected no change after commit, got %+v", change)
	}
}
