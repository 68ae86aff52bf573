// Package interfaces defines the contracts shared by the API, the scheduler
// and the pipeline so each side can be tested with fakes.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/pipeline"
	"github.com/giygas/dpd-api/source"
)

// DataQualityReport summarizes the quality issues found in a product set.
// Code lists hold at most the first ten offenders.
type DataQualityReport struct {
	DuplicateDINs      []string
	DuplicateDrugCodes []string

	ProductsWithoutDIN              int
	ProductsWithoutIngredients      int
	ProductsWithoutIngredientsCodes []string
	ProductsWithoutEnrichment       int
	ProductsWithoutEnrichmentCodes  []string
	ProductsWithoutTherapeuticClass int

	SingleIngredientProducts int
	ClusteredProducts        int
}

// DataStore defines the contract for the in-memory product set served by
// the API. Reads are lock free and updates swap the whole set at once.
type DataStore interface {
	GetProducts() []entities.DrugProduct
	GetProductsByDIN() map[string][]entities.DrugProduct
	GetProductsByCode() map[string]entities.DrugProduct
	GetClusters() []entities.TrademarkCluster
	GetClustersByTM() map[string]entities.TrademarkCluster
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	UpdateData(products []entities.DrugProduct, clusters []entities.TrademarkCluster)
	BeginUpdate() bool
	EndUpdate()
}

// Pipeline builds a fresh product set.
type Pipeline interface {
	Run(ctx context.Context, sourceLastUpdate string) (*pipeline.Report, error)
}

// SourceWatcher tells whether the upstream extract changed since the last
// successful run.
type SourceWatcher interface {
	Check(ctx context.Context) (source.Change, error)
	Commit(ctx context.Context, latest string) error
}

// Scheduler runs the pipeline on a timetable.
type Scheduler interface {
	Start() error
	Stop()
}

// HTTPHandler defines the API endpoints.
type HTTPHandler interface {
	ServePagedProducts(w http.ResponseWriter, r *http.Request)
	FindProductByDIN(w http.ResponseWriter, r *http.Request)
	FindProductByCode(w http.ResponseWriter, r *http.Request)
	SearchProducts(w http.ResponseWriter, r *http.Request)
	ServeTrademarks(w http.ResponseWriter, r *http.Request)
	FindTrademark(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports the health of the served data along with the HTTP
// status the health endpoint should answer with.
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
	CalculateNextUpdate() time.Time
}

// DataValidator checks products and user input.
type DataValidator interface {
	ValidateProduct(p *entities.DrugProduct) error
	ValidateDataIntegrity(products []entities.DrugProduct, clusters []entities.TrademarkCluster) error
	ReportDataQuality(products []entities.DrugProduct, clusters []entities.TrademarkCluster) *DataQualityReport

	ValidateInput(input string) error
	ValidateTrademark(input string) error
	ValidateDIN(input string) (string, error)
	ValidateDrugCode(input string) (string, error)
}
