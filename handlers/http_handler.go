package handlers

import (
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/interfaces"
	"github.com/giygas/dpd-api/logging"
	"github.com/go-chi/chi/v5"
)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, validator interfaces.DataValidator, healthChecker interfaces.HealthChecker) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		healthChecker: healthChecker,
	}
}

// TrademarkSummary is one entry of the trademark listing
type TrademarkSummary struct {
	TM         string `json:"tm"`
	FamilySize int    `json:"family_size"`
}

// HealthResponse keeps a stable field order in the health payload
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// ServePagedProducts returns one page of products in registry order
func (h *HTTPHandlerImpl) ServePagedProducts(w http.ResponseWriter, r *http.Request) {
	pageNumber := chi.URLParam(r, "page")
	p, err := strconv.Atoi(pageNumber)
	if err != nil || p < 1 {
		logging.Warn("Unusual user input", "page", pageNumber)
		h.RespondWithError(w, http.StatusBadRequest, "Invalid page number")
		return
	}

	products := h.dataStore.GetProducts()
	start, end, maxPage, ok := page(p, len(products))
	if !ok {
		h.RespondWithError(w, http.StatusNotFound, "Page not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, map[string]any{
		"data":       products[start:end],
		"page":       p,
		"pageSize":   pageSize,
		"totalItems": len(products),
		"maxPage":    maxPage,
	})
}

// FindProductByDIN returns every product carrying a DIN
func (h *HTTPHandlerImpl) FindProductByDIN(w http.ResponseWriter, r *http.Request) {
	din, err := h.validator.ValidateDIN(chi.URLParam(r, "din"))
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, exists := h.dataStore.GetProductsByDIN()[din]
	if !exists {
		h.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, products)
}

// FindProductByCode returns the product of a registry drug code
func (h *HTTPHandlerImpl) FindProductByCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.validator.ValidateDrugCode(chi.URLParam(r, "drugCode"))
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, exists := h.dataStore.GetProductsByCode()[code]
	if !exists {
		h.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, product)
}

// SearchProducts matches the query against brand names and ingredient
// names, case-insensitively.
func (h *HTTPHandlerImpl) SearchProducts(w http.ResponseWriter, r *http.Request) {
	query, err := pathParam(r, "query")
	if err != nil || query == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Missing search term")
		return
	}

	if err := h.validator.ValidateInput(query); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	needle := strings.ToLower(query)
	results := []entities.DrugProduct{}
	for _, p := range h.dataStore.GetProducts() {
		if matches(p, needle) {
			results = append(results, p)
		}
	}

	// 200 with an empty array when nothing matches
	h.RespondWithJSON(w, http.StatusOK, results)
}

// pathParam returns a decoded path parameter. chi matches on the escaped
// path whenever the request carries one.
func pathParam(r *http.Request, key string) (string, error) {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw, nil
	}
	return url.PathUnescape(raw)
}

func matches(p entities.DrugProduct, needle string) bool {
	if strings.Contains(strings.ToLower(p.BrandName), needle) {
		return true
	}
	for _, name := range p.ListIngredients {
		if strings.Contains(name, needle) {
			return true
		}
	}
	return false
}

// ServeTrademarks lists the trademarks with the size of their family
func (h *HTTPHandlerImpl) ServeTrademarks(w http.ResponseWriter, r *http.Request) {
	clusters := h.dataStore.GetClusters()
	summaries := make([]TrademarkSummary, len(clusters))
	for i, c := range clusters {
		summaries[i] = TrademarkSummary{TM: c.TM, FamilySize: len(c.Family)}
	}
	h.RespondWithJSON(w, http.StatusOK, summaries)
}

// FindTrademark returns one trademark cluster with its products
func (h *HTTPHandlerImpl) FindTrademark(w http.ResponseWriter, r *http.Request) {
	tm, err := pathParam(r, "tm")
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid trademark")
		return
	}

	if err := h.validator.ValidateTrademark(tm); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	cluster, exists := h.dataStore.GetClustersByTM()[strings.ToLower(strings.TrimSpace(tm))]
	if !exists {
		h.RespondWithError(w, http.StatusNotFound, "Trademark not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, cluster)
}

// HealthCheck returns data freshness and process statistics
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, data, httpStatus := h.healthChecker.HealthCheck()

	var uptime time.Duration
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	h.RespondWithJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	})
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	RespondWithJSON(w, code, payload)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithError(w, code, message)
}
