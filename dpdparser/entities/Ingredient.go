package entities

// Ingredient is one active ingredient line of a drug product.
type Ingredient struct {
	ActiveIngredientCode  string `json:"active_ingredient_code"`
	Ingredient            string `json:"ingredient"`
	IngredientSuppliedInd string `json:"ingredient_supplied_ind"`
	Strength              string `json:"strength"`
	StrengthUnit          string `json:"strength_unit"`
	StrengthType          string `json:"strength_type"`
	DosageValue           string `json:"dosage_value"`
	Base                  string `json:"base"`
	DosageUnit            string `json:"dosage_unit"`
	Notes                 string `json:"notes"`
}
