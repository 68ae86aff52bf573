// Package data holds the product set served by the API. Every update swaps
// the products, the clusters and their indexes at once, so readers never
// see a mix of two runs.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/interfaces"
	"github.com/giygas/dpd-api/logging"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// snapshot is one immutable generation of the served data.
type snapshot struct {
	products      []entities.DrugProduct
	productsByDIN map[string][]entities.DrugProduct
	productByCode map[string]entities.DrugProduct
	clusters      []entities.TrademarkCluster
	clustersByTM  map[string]entities.TrademarkCluster
}

// DataContainer holds the current generation behind an atomic pointer
type DataContainer struct {
	current         atomic.Pointer[snapshot]
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with empty data
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.current.Store(newSnapshot(nil, nil))
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

func newSnapshot(products []entities.DrugProduct, clusters []entities.TrademarkCluster) *snapshot {
	if products == nil {
		products = []entities.DrugProduct{}
	}
	if clusters == nil {
		clusters = []entities.TrademarkCluster{}
	}

	s := &snapshot{
		products:      products,
		productsByDIN: make(map[string][]entities.DrugProduct),
		productByCode: make(map[string]entities.DrugProduct, len(products)),
		clusters:      clusters,
		clustersByTM:  make(map[string]entities.TrademarkCluster, len(clusters)),
	}
	for _, p := range products {
		if p.DIN != "" {
			s.productsByDIN[p.DIN] = append(s.productsByDIN[p.DIN], p)
		}
		// first product wins on a duplicated drug code
		if _, seen := s.productByCode[p.DrugCode]; !seen {
			s.productByCode[p.DrugCode] = p
		}
	}
	for _, c := range clusters {
		s.clustersByTM[c.TM] = c
	}
	return s
}

func (dc *DataContainer) load() *snapshot {
	if s := dc.current.Load(); s != nil {
		return s
	}
	logging.Warn("Product set is not initialized")
	return newSnapshot(nil, nil)
}

// GetProducts returns the products in registry order
func (dc *DataContainer) GetProducts() []entities.DrugProduct {
	return dc.load().products
}

// GetProductsByDIN returns the products indexed by DIN. A DIN can be shared
// by several drug codes.
func (dc *DataContainer) GetProductsByDIN() map[string][]entities.DrugProduct {
	return dc.load().productsByDIN
}

// GetProductsByCode returns the products indexed by drug code
func (dc *DataContainer) GetProductsByCode() map[string]entities.DrugProduct {
	return dc.load().productByCode
}

// GetClusters returns the trademark clusters sorted by trademark
func (dc *DataContainer) GetClusters() []entities.TrademarkCluster {
	return dc.load().clusters
}

// GetClustersByTM returns the clusters indexed by trademark
func (dc *DataContainer) GetClustersByTM() map[string]entities.TrademarkCluster {
	return dc.load().clustersByTM
}

// GetLastUpdated returns the timestamp of the last data update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a data update is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData builds the indexes and swaps the whole generation in
func (dc *DataContainer) UpdateData(products []entities.DrugProduct, clusters []entities.TrademarkCluster) {
	dc.UpdateDataAt(products, clusters, time.Now())
}

// UpdateDataAt swaps a generation built at builtAt, such as a stored run
// loaded on startup.
func (dc *DataContainer) UpdateDataAt(products []entities.DrugProduct, clusters []entities.TrademarkCluster, builtAt time.Time) {
	dc.current.Store(newSnapshot(products, clusters))
	dc.lastUpdated.Store(builtAt)
}

// BeginUpdate marks the start of a data update operation.
// Returns false if another update is in progress.
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a data update operation
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
