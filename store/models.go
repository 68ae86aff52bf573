package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"gorm.io/datatypes"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// ProductRow is the storage form of a product. Child collections are kept as
// JSON columns; the monograph date is a nullable timestamp.
type ProductRow struct {
	ID    uint   `gorm:"primaryKey"`
	RunID string `gorm:"column:run_id;uniqueIndex:idx_run_uuid;not null"`

	DrugCode              string `gorm:"column:drug_code;index"`
	DIN                   string `gorm:"column:din;index"`
	BrandName             string `gorm:"column:brand_name"`
	ProductCategorization string `gorm:"column:product_categorization"`
	Class                 string `gorm:"column:class"`
	AccessionNumber       string `gorm:"column:accession_number"`
	NumberOfAIs           string `gorm:"column:number_of_ais"`
	LastUpdateDate        string `gorm:"column:last_update_date"`
	AIGroupNo             string `gorm:"column:ai_group_no"`

	Ingredients datatypes.JSON `gorm:"column:ingredients"`
	Status      datatypes.JSON `gorm:"column:status"`
	CompanyCode string         `gorm:"column:company_code"`
	Forms       string         `gorm:"column:forms"`
	FormCodes   string         `gorm:"column:form_codes"`
	Routes      string         `gorm:"column:routes"`
	RouteCodes  string         `gorm:"column:route_codes"`
	Schedule    string         `gorm:"column:schedule"`
	TCATCNumber string         `gorm:"column:tc_atc_number"`
	TCATC       string         `gorm:"column:tc_atc"`
	Pharms      string         `gorm:"column:pharms"`

	ListIngredients datatypes.JSON `gorm:"column:list_ingredients"`

	CurrentStatus         string     `gorm:"column:current_status"`
	ProductMonograph      string     `gorm:"column:product_monograph"`
	MonographDate         string     `gorm:"column:monograph_date"`
	MonographDateParsable *time.Time `gorm:"column:monograph_date_parsable"`
	OriginalMarketDate    string     `gorm:"column:original_market_date"`

	UUID      string    `gorm:"column:uuid;uniqueIndex:idx_run_uuid"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (ProductRow) TableName() string { return "updated_dpd" }

// NewProductRow projects a product into its storage form.
func NewProductRow(runID string, p entities.DrugProduct) (ProductRow, error) {
	ingredients, err := json.Marshal(nonNil(p.Ingredients))
	if err != nil {
		return ProductRow{}, fmt.Errorf("failed to encode ingredients of %s: %w", p.DrugCode, err)
	}
	status, err := json.Marshal(nonNil(p.Status))
	if err != nil {
		return ProductRow{}, fmt.Errorf("failed to encode status of %s: %w", p.DrugCode, err)
	}
	list, err := json.Marshal(nonNil(p.ListIngredients))
	if err != nil {
		return ProductRow{}, fmt.Errorf("failed to encode list_ingredients of %s: %w", p.DrugCode, err)
	}

	row := ProductRow{
		RunID:                 runID,
		DrugCode:              p.DrugCode,
		DIN:                   p.DIN,
		BrandName:             p.BrandName,
		ProductCategorization: p.ProductCategorization,
		Class:                 p.Class,
		AccessionNumber:       p.AccessionNumber,
		NumberOfAIs:           p.NumberOfAIs,
		LastUpdateDate:        p.LastUpdateDate,
		AIGroupNo:             p.AIGroupNo,
		Ingredients:           datatypes.JSON(ingredients),
		Status:                datatypes.JSON(status),
		CompanyCode:           p.CompanyCode,
		Forms:                 p.Forms,
		FormCodes:             p.FormCodes,
		Routes:                p.Routes,
		RouteCodes:            p.RouteCodes,
		Schedule:              p.Schedule,
		TCATCNumber:           p.TCATCNumber,
		TCATC:                 p.TCATC,
		Pharms:                p.Pharms,
		ListIngredients:       datatypes.JSON(list),
		CurrentStatus:         p.CurrentStatus,
		ProductMonograph:      p.ProductMonograph,
		MonographDate:         p.MonographDate,
		OriginalMarketDate:    p.OriginalMarketDate,
		UUID:                  p.UUID,
	}
	if p.MonographDateParsable.Valid {
		t := p.MonographDateParsable.Time
		row.MonographDateParsable = &t
	}
	return row, nil
}

// Product reads a row back into the canonical entity.
func (r ProductRow) Product() (entities.DrugProduct, error) {
	p := entities.DrugProduct{
		DrugCode:              r.DrugCode,
		DIN:                   r.DIN,
		BrandName:             r.BrandName,
		ProductCategorization: r.ProductCategorization,
		Class:                 r.Class,
		AccessionNumber:       r.AccessionNumber,
		NumberOfAIs:           r.NumberOfAIs,
		LastUpdateDate:        r.LastUpdateDate,
		AIGroupNo:             r.AIGroupNo,
		CompanyCode:           r.CompanyCode,
		Forms:                 r.Forms,
		FormCodes:             r.FormCodes,
		Routes:                r.Routes,
		RouteCodes:            r.RouteCodes,
		Schedule:              r.Schedule,
		TCATCNumber:           r.TCATCNumber,
		TCATC:                 r.TCATC,
		Pharms:                r.Pharms,
		Enrichment: entities.Enrichment{
			CurrentStatus:      r.CurrentStatus,
			ProductMonograph:   r.ProductMonograph,
			MonographDate:      r.MonographDate,
			OriginalMarketDate: r.OriginalMarketDate,
		},
		UUID: r.UUID,
	}
	if r.MonographDateParsable != nil {
		p.MonographDateParsable = entities.ParsableDate{Time: r.MonographDateParsable.UTC(), Valid: true}
	}

	if err := decodeJSON(r.Ingredients, &p.Ingredients); err != nil {
		return p, fmt.Errorf("failed to decode ingredients of %s: %w", r.DrugCode, err)
	}
	if err := decodeJSON(r.Status, &p.Status); err != nil {
		return p, fmt.Errorf("failed to decode status of %s: %w", r.DrugCode, err)
	}
	if err := decodeJSON(r.ListIngredients, &p.ListIngredients); err != nil {
		return p, fmt.Errorf("failed to decode list_ingredients of %s: %w", r.DrugCode, err)
	}
	return p, nil
}

func decodeJSON(raw datatypes.JSON, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Run is one pipeline execution in the run ledger.
type Run struct {
	ID               string    `gorm:"primaryKey;size:36"`
	StartedAt        time.Time `gorm:"not null"`
	FinishedAt       *time.Time
	Status           string `gorm:"size:16;index"`
	FailedStage      string
	Error            string
	SourceLastUpdate string
	Products         int
	Matched          int
	Pending          int
	FailedLookups    int
	Clusters         int
}

func (Run) TableName() string { return "pipeline_runs" }

// SourceState remembers the last upstream update date a project was built
// from.
type SourceState struct {
	Project    string `gorm:"primaryKey;size:64"`
	LastUpdate string
	UpdatedAt  time.Time
}

func (SourceState) TableName() string { return "source_states" }
