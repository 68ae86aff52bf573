package entities

import "strings"

// DrugProduct is the normalized document built for one registry drug code.
// Child collections are joined on the drug code and enrichment comes either
// from the previous snapshot or from a monograph lookup.
type DrugProduct struct {
	DrugCode              string `json:"drug_code"`
	DIN                   string `json:"din"`
	BrandName             string `json:"brand_name"`
	ProductCategorization string `json:"product_categorization"`
	Class                 string `json:"class"`
	AccessionNumber       string `json:"accession_number"`
	NumberOfAIs           string `json:"number_of_ais"`
	LastUpdateDate        string `json:"last_update_date"`
	AIGroupNo             string `json:"ai_group_no"`

	Ingredients []Ingredient `json:"ingredients"`
	Status      []Status     `json:"status"`
	CompanyCode string       `json:"company_code"`
	Forms       string       `json:"forms"`
	FormCodes   string       `json:"form_codes"`
	Routes      string       `json:"routes"`
	RouteCodes  string       `json:"route_codes"`
	Schedule    string       `json:"schedule"`
	TCATCNumber string       `json:"tc_atc_number"`
	TCATC       string       `json:"tc_atc"`
	Pharms      string       `json:"pharms"`

	ListIngredients []string `json:"list_ingredients"`

	Enrichment

	UUID string `json:"uuid"`
}

// SingleIngredient reports whether the product declares exactly one active
// ingredient with a non-blank name and returns that normalized name.
func (p DrugProduct) SingleIngredient() (string, bool) {
	if p.NumberOfAIs != "1" || len(p.ListIngredients) == 0 {
		return "", false
	}
	name := p.ListIngredients[0]
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}
