// Package dpdparser reads the Drug Product Database extract files and joins
// them into one entities.DrugProduct per drug code.
package dpdparser

import (
	"strings"
)

// HumanClass is the only product class kept from the primary drug file.
const HumanClass = "Human"

// FileKind describes one file of the extract: where it lives, how many
// fields a line must exceed to be accepted, and the names of those fields.
type FileKind struct {
	Name      string
	FileName  string
	MinFields int
	Fields    []string
}

var (
	KindDrug = FileKind{
		Name:      "drug",
		FileName:  "drug.txt",
		MinFields: 10,
		Fields: []string{
			"drug_code", "product_categorization", "class", "din", "brand_name",
			"descriptor", "pediatric_flag", "accession_number", "number_of_ais",
			"last_update_date", "ai_group_no",
		},
	}
	KindIngredient = FileKind{
		Name:      "ingredient",
		FileName:  "ingred.txt",
		MinFields: 10,
		Fields: []string{
			"drug_code", "active_ingredient_code", "ingredient", "ingredient_supplied_ind",
			"strength", "strength_unit", "strength_type", "dosage_value", "base",
			"dosage_unit", "notes",
		},
	}
	KindCompany = FileKind{
		Name:      "company",
		FileName:  "comp.txt",
		MinFields: 14,
		Fields: []string{
			"drug_code", "mfr_code", "company_code", "company_name", "company_type",
			"address_mailing_flag", "address_billing_flag", "address_notification_flag",
			"address_other", "suite_number", "street_name", "city_name", "province",
			"country", "postal_code", "post_office_box",
		},
	}
	KindForm = FileKind{
		Name:      "form",
		FileName:  "form.txt",
		MinFields: 1,
		Fields:    []string{"drug_code", "pharm_form_code", "pharmaceutical_form"},
	}
	KindStatus = FileKind{
		Name:      "status",
		FileName:  "status.txt",
		MinFields: 3,
		Fields:    []string{"drug_code", "current_status_flag", "status", "history_date"},
	}
	KindRoute = FileKind{
		Name:      "route",
		FileName:  "route.txt",
		MinFields: 1,
		Fields:    []string{"drug_code", "route_of_administration_code", "route_of_administration"},
	}
	KindSchedule = FileKind{
		Name:      "schedule",
		FileName:  "schedule.txt",
		MinFields: 1,
		Fields:    []string{"drug_code", "schedule"},
	}
	KindTherapeuticClass = FileKind{
		Name:      "ther",
		FileName:  "ther.txt",
		MinFields: 1,
		Fields:    []string{"drug_code", "tc_atc_number", "tc_atc"},
	}
	KindPharmaceuticalStd = FileKind{
		Name:      "pharm",
		FileName:  "pharm.txt",
		MinFields: 1,
		Fields:    []string{"drug_code", "pharmaceutical_std"},
	}
)

// AllKinds lists every file the extract must contain.
var AllKinds = []FileKind{
	KindDrug, KindIngredient, KindCompany, KindForm, KindStatus,
	KindRoute, KindSchedule, KindTherapeuticClass, KindPharmaceuticalStd,
}

// Record is one accepted line of a file, with fields addressable by name.
type Record struct {
	Kind   FileKind
	Values []string
}

// Get returns the named field, or "" when the line did not carry it.
func (r Record) Get(name string) string {
	for i, field := range r.Kind.Fields {
		if field == name {
			if i < len(r.Values) {
				return r.Values[i]
			}
			return ""
		}
	}
	return ""
}

// DrugCode returns the key every file is joined on.
func (r Record) DrugCode() string {
	return r.Get("drug_code")
}

// SplitLine splits a quoted, comma separated line on the quote-comma
// sequence and strips every quote from the resulting fields.
func SplitLine(line string) []string {
	parts := strings.Split(line, `",`)
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, `"`, "")
	}
	return parts
}

// ParseLine returns the record for line, or false when the line has too few
// fields for its kind. Blank lines always fail this check.
func ParseLine(kind FileKind, line string) (Record, bool) {
	values := SplitLine(line)
	if len(values) <= kind.MinFields {
		return Record{}, false
	}
	return Record{Kind: kind, Values: values}, true
}
