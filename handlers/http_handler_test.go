package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/giygas/dpd-api/data"
	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/health"
	"github.com/giygas/dpd-api/interfaces"
	"github.com/giygas/dpd-api/logging"
	"github.com/giygas/dpd-api/validation"
	"github.com/go-chi/chi/v5"
)

func product(code, din, brand string, ingredients ...string) entities.DrugProduct {
	return entities.DrugProduct{
		DrugCode:        code,
		DIN:             din,
		BrandName:       brand,
		NumberOfAIs:     fmt.Sprint(len(ingredients)),
		ListIngredients: ingredients,
		UUID:            "uuid-" + code,
	}
}

// newTestRouter wires the handler the way the server does
func newTestRouter(t *testing.T, products []entities.DrugProduct, clusters []entities.TrademarkCluster) (*chi.Mux, *data.DataContainer) {
	t.Helper()
	logging.InitLogger("")

	dc := data.NewDataContainer()
	dc.SetServerStartTime(time.Now().Add(-90 * time.Second))
	if products != nil {
		dc.UpdateData(products, clusters)
	}

	h := NewHTTPHandler(dc, validation.NewDataValidator(), health.NewHealthChecker(dc, "06:00"))

	r := chi.NewRouter()
	r.Get("/products/{page}", h.ServePagedProducts)
	r.Get("/products/din/{din}", h.FindProductByDIN)
	r.Get("/products/code/{drugCode}", h.FindProductByCode)
	r.Get("/products/search/{query}", h.SearchProducts)
	r.Get("/trademarks", h.ServeTrademarks)
	r.Get("/trademarks/{tm}", h.FindTrademark)
	r.Get("/health", h.HealthCheck)
	return r, dc
}

func testData() ([]entities.DrugProduct, []entities.TrademarkCluster) {
	products := []entities.DrugProduct{
		product("100", "02244353", "ASPIRIN", "acetylsalicylic acid"),
		product("101", "02244353", "ASPIRIN 81MG", "acetylsalicylic acid"),
		product("102", "00559407", "ADVIL", "ibuprofen"),
		product("103", "00726486", "DEPAKENE", "valproic acid"),
		product("104", "", "TYLENOL COLD", "acetaminophen", "pseudoephedrine"),
	}
	clusters := []entities.TrademarkCluster{
		{TM: "aspirin", Family: products[:2]},
		{TM: "ibuprofen", Family: products[2:3]},
		{TM: "valproic acid", Family: products[3:4]},
	}
	return products, clusters
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Invalid JSON %q: %v", w.Body.String(), err)
	}
	return v
}

func TestNewHTTPHandler(t *testing.T) {
	dc := data.NewDataContainer()
	handler := NewHTTPHandler(dc, validation.NewDataValidator(), health.NewHealthChecker(dc, "06:00"))

	if _, ok := handler.(*HTTPHandlerImpl); !ok {
		t.Error("NewHTTPHandler should return *HTTPHandlerImpl")
	}
	var _ interfaces.HTTPHandler = handler
}

func TestRespondWithError(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithError(w, http.StatusNotFound, "Product not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Unexpected content type %q", ct)
	}
	body := decode[map[string]any](t, w)
	if body["error"] != "Not Found" || body["message"] != "Product not found" || body["code"] != float64(404) {
		t.Errorf("Unexpected error body %v", body)
	}
}

func TestRespondWithJSONMarshalFailure(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithJSON(w, http.StatusOK, map[string]any{"bad": make(chan int)})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

func TestServePagedProducts(t *testing.T) {
	products := make([]entities.DrugProduct, 25)
	for i := range products {
		products[i] = product(fmt.Sprint(i+1), fmt.Sprintf("%08d", i+1), "P", "x")
	}
	router, _ := newTestRouter(t, products, nil)

	testCases := []struct {
		path      string
		wantCode  int
		wantItems int
	}{
		{"/products/1", http.StatusOK, 10},
		{"/products/3", http.StatusOK, 5},
		{"/products/4", http.StatusNotFound, 0},
		{"/products/0", http.StatusBadRequest, 0},
		{"/products/abc", http.StatusBadRequest, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			w := get(t, router, tc.path)
			if w.Code != tc.wantCode {
				t.Fatalf("Expected %d, got %d: %s", tc.wantCode, w.Code, w.Body.String())
			}
			if tc.wantCode != http.StatusOK {
				return
			}
			body := decode[struct {
				Data       []entities.DrugProduct `json:"data"`
				Page       int                    `json:"page"`
				PageSize   int                    `json:"pageSize"`
				TotalItems int                    `json:"totalItems"`
				MaxPage    int                    `json:"maxPage"`
			}](t, w)
			if len(body.Data) != tc.wantItems {
				t.Errorf("Expected %d items, got %d", tc.wantItems, len(body.Data))
			}
			if body.TotalItems != 25 || body.MaxPage != 3 || body.PageSize != 10 {
				t.Errorf("Unexpected paging %+v", body)
			}
		})
	}
}

func TestFindProductByDIN(t *testing.T) {
	products, clusters := testData()
	router, _ := newTestRouter(t, products, clusters)

	w := get(t, router, "/products/din/02244353")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got := decode[[]entities.DrugProduct](t, w); len(got) != 2 {
		t.Errorf("Expected both products sharing the DIN, got %d", len(got))
	}

	if w := get(t, router, "/products/din/99999999"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown DIN, got %d", w.Code)
	}
	if w := get(t, router, "/products/din/123"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for short DIN, got %d", w.Code)
	}
}

func TestFindProductByCode(t *testing.T) {
	products, clusters := testData()
	router, _ := newTestRouter(t, products, clusters)

	w := get(t, router, "/products/code/102")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	got := decode[map[string]any](t, w)
	if got["brand_name"] != "ADVIL" || got["din"] != "00559407" {
		t.Errorf("Unexpected product %v", got)
	}

	if w := get(t, router, "/products/code/999"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	if w := get(t, router, "/products/code/1a"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestSearchProducts(t *testing.T) {
	products, clusters := testData()
	router, _ := newTestRouter(t, products, clusters)

	testCases := []struct {
		path     string
		wantCode int
		want     int
	}{
		{"/products/search/aspirin", http.StatusOK, 2},
		{"/products/search/ADVIL", http.StatusOK, 1},
		{"/products/search/acetylsalicylic", http.StatusOK, 2},
		{"/products/search/valproic%20acid", http.StatusOK, 1},
		{"/products/search/pseudoephedrine", http.StatusOK, 1},
		{"/products/search/nothing-matches", http.StatusOK, 0},
		{"/products/search/ab", http.StatusBadRequest, 0},
		{"/products/search/%3Cscript%3E", http.StatusBadRequest, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			w := get(t, router, tc.path)
			if w.Code != tc.wantCode {
				t.Fatalf("Expected %d, got %d: %s", tc.wantCode, w.Code, w.Body.String())
			}
			if tc.wantCode == http.StatusOK {
				if got := decode[[]entities.DrugProduct](t, w); len(got) != tc.want {
					t.Errorf("Expected %d results, got %d", tc.want, len(got))
				}
			}
		})
	}
}

func TestServeTrademarks(t *testing.T) {
	products, clusters := testData()
	router, _ := newTestRouter(t, products, clusters)

	w := get(t, router, "/trademarks")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	got := decode[[]TrademarkSummary](t, w)
	if len(got) != 3 || got[0].TM != "aspirin" || got[0].FamilySize != 2 {
		t.Errorf("Unexpected summaries %+v", got)
	}
}

func TestFindTrademark(t *testing.T) {
	products, clusters := testData()
	router, _ := newTestRouter(t, products, clusters)

	w := get(t, router, "/trademarks/valproic%20acid")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cluster := decode[struct {
		TM     string                 `json:"tm"`
		Family []entities.DrugProduct `json:"family"`
	}](t, w)
	if cluster.TM != "valproic acid" || len(cluster.Family) != 1 {
		t.Errorf("Unexpected cluster %+v", cluster)
	}

	if w := get(t, router, "/trademarks/ASPIRIN"); w.Code != http.StatusOK {
		t.Errorf("Trademark lookup should ignore case, got %d", w.Code)
	}
	if w := get(t, router, "/trademarks/paracetamol"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestFindTrademarkShortAndLongNames(t *testing.T) {
	long := "alpha beta gamma delta epsilon zeta eta"
	products := []entities.DrugProduct{
		product("200", "02200200", "ZINC", "zn"),
		product("201", "02200201", "VERBATIM", long),
	}
	clusters := []entities.TrademarkCluster{
		{TM: long, Family: products[1:2]},
		{TM: "zn", Family: products[:1]},
	}
	router, _ := newTestRouter(t, products, clusters)

	for _, path := range []string{"/trademarks/zn", "/trademarks/alpha%20beta%20gamma%20delta%20epsilon%20zeta%20eta"} {
		if w := get(t, router, path); w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d: %s", path, w.Code, w.Body.String())
		}
	}

	if w := get(t, router, "/trademarks/%20"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a blank trademark, got %d", w.Code)
	}
}

func TestHealthCheckEndpoint(t *testing.T) {
	products, clusters := testData()
	router, _ := newTestRouter(t, products, clusters)

	w := get(t, router, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := decode[HealthResponse](t, w)
	if body.Status != "healthy" {
		t.Errorf("Expected healthy, got %s", body.Status)
	}
	if body.Data["products"] != float64(5) || body.Data["trademarks"] != float64(3) {
		t.Errorf("Unexpected data section %v", body.Data)
	}
	if body.UptimeSeconds < 90 {
		t.Errorf("Expected at least 90s of uptime, got %v", body.UptimeSeconds)
	}
	if _, ok := body.System["memory"]; !ok {
		t.Error("System section should report memory")
	}
}

func TestHealthCheckWithoutData(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil)

	w := get(t, router, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without data, got %d", w.Code)
	}
	if body := decode[HealthResponse](t, w); body.Status != "unhealthy" {
		t.Errorf("Expected unhealthy, got %s", body.Status)
	}
}

func TestFormatUptimeHuman(t *testing.T) {
	testCases := map[time.Duration]string{
		5 * time.Second:               "5s",
		2*time.Minute + 3*time.Second: "2m 3s",
		time.Hour:                     "1h 0m 0s",
		26*time.Hour + 61*time.Second: "1d 2h 1m 1s",
	}
	for d, want := range testCases {
		if got := formatUptimeHuman(d); got != want {
			t.Errorf("formatUptimeHuman(%s) = %q, want %q", d, got, want)
		}
	}
}

func BenchmarkSearchProducts(b *testing.B) {
	products := make([]entities.DrugProduct, 5000)
	for i := range products {
		products[i] = product(fmt.Sprint(i), fmt.Sprintf("%08d", i), fmt.Sprintf("BRAND %d", i), "ibuprofen")
	}
	dc := data.NewDataContainer()
	dc.UpdateData(products, nil)
	h := NewHTTPHandler(dc, validation.NewDataValidator(), health.NewHealthChecker(dc, "06:00"))

	r := chi.NewRouter()
	r.Get("/products/search/{query}", h.SearchProducts)
	req := httptest.NewRequest(http.MethodGet, "/products/search/brand%2042", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}
