package data

import (
	"sync"
	"testing"
	"time"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/logging"
)

func testProducts() []entities.DrugProduct {
	return []entities.DrugProduct{
		{DrugCode: "100", DIN: "02244353", BrandName: "ASPIRIN"},
		{DrugCode: "101", DIN: "02244353", BrandName: "ASPIRIN 81"},
		{DrugCode: "102", DIN: "00559407", BrandName: "ADVIL"},
		{DrugCode: "103", DIN: "", BrandName: "NO DIN"},
	}
}

func testClusters(products []entities.DrugProduct) []entities.TrademarkCluster {
	return []entities.TrademarkCluster{
		{TM: "aspirin", Family: products[:2]},
		{TM: "ibuprofen", Family: products[2:3]},
	}
}

func TestNewDataContainer(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()

	if dc.IsUpdating() {
		t.Error("NewDataContainer should not be updating")
	}
	if !dc.GetLastUpdated().IsZero() {
		t.Error("NewDataContainer should have zero lastUpdated time")
	}
	if dc.GetProducts() == nil || len(dc.GetProducts()) != 0 {
		t.Error("NewDataContainer should have an empty, non-nil product list")
	}
	if len(dc.GetClusters()) != 0 || len(dc.GetClustersByTM()) != 0 {
		t.Error("NewDataContainer should have no clusters")
	}
	if len(dc.GetProductsByDIN()) != 0 || len(dc.GetProductsByCode()) != 0 {
		t.Error("NewDataContainer should have empty indexes")
	}
}

func TestUpdateDataBuildsIndexes(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	products := testProducts()
	before := time.Now()

	dc.UpdateData(products, testClusters(products))

	if got := len(dc.GetProducts()); got != 4 {
		t.Errorf("Expected 4 products, got %d", got)
	}
	if got := len(dc.GetProductsByDIN()["02244353"]); got != 2 {
		t.Errorf("Expected 2 products sharing the DIN, got %d", got)
	}
	if _, ok := dc.GetProductsByDIN()[""]; ok {
		t.Error("Products without DIN should not be indexed by DIN")
	}
	if p, ok := dc.GetProductsByCode()["102"]; !ok || p.BrandName != "ADVIL" {
		t.Errorf("Expected ADVIL under drug code 102, got %+v", p)
	}
	if c, ok := dc.GetClustersByTM()["aspirin"]; !ok || len(c.Family) != 2 {
		t.Errorf("Expected the aspirin cluster with 2 products, got %+v", c)
	}
	if dc.GetLastUpdated().Before(before) {
		t.Error("lastUpdated should be refreshed by UpdateData")
	}
}

func TestUpdateDataAtKeepsBuildTime(t *testing.T) {
	dc := NewDataContainer()
	builtAt := time.Now().Add(-10 * 24 * time.Hour)

	dc.UpdateDataAt(testProducts(), nil, builtAt)

	if !dc.GetLastUpdated().Equal(builtAt) {
		t.Errorf("Expected lastUpdated %v, got %v", builtAt, dc.GetLastUpdated())
	}
	if got := len(dc.GetProducts()); got != 4 {
		t.Errorf("Expected 4 products, got %d", got)
	}
}

func TestUpdateDataFirstDrugCodeWins(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData([]entities.DrugProduct{
		{DrugCode: "1", BrandName: "FIRST"},
		{DrugCode: "1", BrandName: "SECOND"},
	}, nil)

	if got := dc.GetProductsByCode()["1"].BrandName; got != "FIRST" {
		t.Errorf("Expected FIRST, got %s", got)
	}
}

func TestUpdateDataWithNil(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData(nil, nil)

	if dc.GetProducts() == nil {
		t.Error("Products should never be nil")
	}
	if dc.GetClusters() == nil {
		t.Error("Clusters should never be nil")
	}
}

func TestBeginUpdateEndUpdate(t *testing.T) {
	dc := NewDataContainer()

	if !dc.BeginUpdate() {
		t.Fatal("First BeginUpdate should succeed")
	}
	if !dc.IsUpdating() {
		t.Error("IsUpdating should be true after BeginUpdate")
	}
	if dc.BeginUpdate() {
		t.Error("Second BeginUpdate should fail while updating")
	}

	dc.EndUpdate()
	if dc.IsUpdating() {
		t.Error("IsUpdating should be false after EndUpdate")
	}
	if !dc.BeginUpdate() {
		t.Error("BeginUpdate should succeed after EndUpdate")
	}
	dc.EndUpdate()
}

func TestServerStartTime(t *testing.T) {
	dc := NewDataContainer()
	if !dc.GetServerStartTime().IsZero() {
		t.Error("Server start time should be zero until set")
	}

	start := time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC)
	dc.SetServerStartTime(start)
	if !dc.GetServerStartTime().Equal(start) {
		t.Errorf("Expected %s, got %s", start, dc.GetServerStartTime())
	}
}

// Readers must always see products and indexes from the same generation.
func TestConcurrentReadsSeeConsistentGeneration(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	small := testProducts()[:1]
	large := testProducts()
	dc.UpdateData(small, nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				dc.UpdateData(large, testClusters(large))
			} else {
				dc.UpdateData(small, nil)
			}
		}
		close(stop)
	}()

	errs := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := dc.load()
				if len(s.productByCode) != len(s.products) {
					errs <- "index and product list come from different updates"
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func BenchmarkGetProductsByDIN(b *testing.B) {
	dc := NewDataContainer()
	dc.UpdateData(testProducts(), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = dc.GetProductsByDIN()["02244353"]
	}
}

func BenchmarkUpdateData(b *testing.B) {
	dc := NewDataContainer()
	products := testProducts()
	clusters := testClusters(products)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dc.UpdateData(products, clusters)
	}
}
