package dpdparser

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/logging"
	"github.com/google/uuid"
)

// joinSeparator is used when a list of child records collapses into one
// string field.
const joinSeparator = ", "

// ErrMissingCompany is matched by the IntegrityError returned when a drug
// has no company record.
var ErrMissingCompany = errors.New("missing company record")

// IntegrityError reports drug codes whose mandatory joins failed.
type IntegrityError struct {
	Err       error
	DrugCodes []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %v for drug codes %s", e.Err, strings.Join(e.DrugCodes, ", "))
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// indexes holds one child index per auxiliary file.
type indexes struct {
	ingredients Index[entities.Ingredient]
	companies   Index[entities.Company]
	forms       Index[entities.Form]
	statuses    Index[entities.Status]
	routes      Index[entities.Route]
	schedules   Index[entities.Schedule]
	therapeutic Index[entities.TherapeuticClass]
	pharms      Index[entities.PharmaceuticalStd]
}

func buildIndexes(e *Export) indexes {
	return indexes{
		ingredients: BuildIndex(e.Ingredients),
		companies:   BuildIndex(e.Companies),
		forms:       BuildIndex(e.Forms),
		statuses:    BuildIndex(e.Statuses),
		routes:      BuildIndex(e.Routes),
		schedules:   BuildIndex(e.Schedules),
		therapeutic: BuildIndex(e.TherapeuticClasses),
		pharms:      BuildIndex(e.PharmaceuticalStds),
	}
}

// Aggregate joins every human drug of the export with its child records.
// Every product gets a fresh UUID. A drug without any company record is an
// integrity error; all offending drug codes are reported together.
func Aggregate(e *Export) ([]entities.DrugProduct, error) {
	idx := buildIndexes(e)

	products := make([]entities.DrugProduct, 0, len(e.Drugs))
	var missingCompany []string

	for _, drug := range e.Drugs {
		product, ok := aggregateDrug(drug, idx)
		if !ok {
			missingCompany = append(missingCompany, drug.DrugCode)
			continue
		}
		products = append(products, product)
	}

	if len(missingCompany) > 0 {
		logging.Error("Drugs without company record", "count", len(missingCompany), "drug_codes", missingCompany)
		return nil, &IntegrityError{Err: ErrMissingCompany, DrugCodes: missingCompany}
	}

	for i := range products {
		products[i].UUID = uuid.NewString()
	}

	return products, nil
}

func aggregateDrug(drug entities.Drug, idx indexes) (entities.DrugProduct, bool) {
	code := drug.DrugCode

	p := entities.DrugProduct{
		DrugCode:              code,
		DIN:                   drug.DIN,
		BrandName:             drug.BrandName,
		ProductCategorization: drug.ProductCategorization,
		Class:                 drug.Class,
		AccessionNumber:       drug.AccessionNumber,
		NumberOfAIs:           drug.NumberOfAIs,
		LastUpdateDate:        drug.LastUpdateDate,
		AIGroupNo:             drug.AIGroupNo,
	}

	p.Ingredients = idx.ingredients.Lookup(code)

	company, ok := idx.companies.First(code)
	if !ok {
		return entities.DrugProduct{}, false
	}
	p.CompanyCode = company.CompanyCode

	forms := idx.forms.Lookup(code)
	p.Forms = join(forms, func(f entities.Form) string { return f.Form })
	p.FormCodes = join(forms, func(f entities.Form) string { return f.FormCode })

	p.Status = idx.statuses.Lookup(code)

	routes := idx.routes.Lookup(code)
	p.Routes = join(routes, func(r entities.Route) string { return r.Route })
	p.RouteCodes = join(routes, func(r entities.Route) string { return r.RouteCode })

	p.Schedule = join(idx.schedules.Lookup(code), func(s entities.Schedule) string { return s.Schedule })

	// Only the first therapeutic class is kept.
	if ther, ok := idx.therapeutic.First(code); ok {
		p.TCATCNumber = ther.TCATCNumber
		p.TCATC = ther.TCATC
	}

	p.Pharms = join(idx.pharms.Lookup(code), func(s entities.PharmaceuticalStd) string { return s.PharmaceuticalStd })

	p.ListIngredients = ListIngredients(p.Ingredients)

	return p, true
}

// ListIngredients returns the lowercased ingredient names without
// duplicates, shortest first. Names of equal length keep their order.
func ListIngredients(ingredients []entities.Ingredient) []string {
	seen := make(map[string]bool, len(ingredients))
	names := make([]string, 0, len(ingredients))

	for _, ing := range ingredients {
		name := strings.ToLower(ing.Ingredient)
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	slices.SortStableFunc(names, func(a, b string) int {
		return utf8.RuneCountInString(a) - utf8.RuneCountInString(b)
	})

	return names
}

func join[T any](records []T, field func(T) string) string {
	values := make([]string, len(records))
	for i, r := range records {
		values[i] = field(r)
	}
	return strings.Join(values, joinSeparator)
}
