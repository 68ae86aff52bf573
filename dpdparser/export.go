package dpdparser

import (
	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/logging"
)

// Export is the typed content of one extract directory. Drugs only holds
// records of the human class.
type Export struct {
	Drugs              []entities.Drug
	Ingredients        []Child[entities.Ingredient]
	Companies          []Child[entities.Company]
	Forms              []Child[entities.Form]
	Statuses           []Child[entities.Status]
	Routes             []Child[entities.Route]
	Schedules          []Child[entities.Schedule]
	TherapeuticClasses []Child[entities.TherapeuticClass]
	PharmaceuticalStds []Child[entities.PharmaceuticalStd]

	Stats map[string]ParseStats
}

// ReadExport parses every file of the extract found in dir. All files must
// exist.
func ReadExport(dir string) (*Export, error) {
	records := make(map[string][]Record, len(AllKinds))
	stats := make(map[string]ParseStats, len(AllKinds))

	for _, kind := range AllKinds {
		recs, st, err := ReadKind(dir, kind)
		if err != nil {
			return nil, err
		}
		records[kind.Name] = recs
		stats[kind.Name] = st
	}

	export := NewExport(records)
	export.Stats = stats

	logging.Info("Extract parsed",
		"drugs", len(export.Drugs),
		"ingredients", len(export.Ingredients),
		"companies", len(export.Companies),
		"statuses", len(export.Statuses))

	return export, nil
}

// NewExport converts parsed records, keyed by kind name, into typed records.
func NewExport(records map[string][]Record) *Export {
	e := &Export{Stats: make(map[string]ParseStats)}

	for _, r := range records[KindDrug.Name] {
		drug := entities.Drug{
			DrugCode:              r.DrugCode(),
			ProductCategorization: r.Get("product_categorization"),
			Class:                 r.Get("class"),
			DIN:                   r.Get("din"),
			BrandName:             r.Get("brand_name"),
			AccessionNumber:       r.Get("accession_number"),
			NumberOfAIs:           r.Get("number_of_ais"),
			LastUpdateDate:        r.Get("last_update_date"),
			AIGroupNo:             r.Get("ai_group_no"),
		}
		if drug.Class != HumanClass {
			continue
		}
		e.Drugs = append(e.Drugs, drug)
	}

	e.Ingredients = children(records[KindIngredient.Name], func(r Record) entities.Ingredient {
		return entities.Ingredient{
			ActiveIngredientCode:  r.Get("active_ingredient_code"),
			Ingredient:            r.Get("ingredient"),
			IngredientSuppliedInd: r.Get("ingredient_supplied_ind"),
			Strength:              r.Get("strength"),
			StrengthUnit:          r.Get("strength_unit"),
			StrengthType:          r.Get("strength_type"),
			DosageValue:           r.Get("dosage_value"),
			Base:                  r.Get("base"),
			DosageUnit:            r.Get("dosage_unit"),
			Notes:                 r.Get("notes"),
		}
	})

	e.Companies = children(records[KindCompany.Name], func(r Record) entities.Company {
		return entities.Company{
			MfrCode:                 r.Get("mfr_code"),
			CompanyCode:             r.Get("company_code"),
			CompanyName:             r.Get("company_name"),
			CompanyType:             r.Get("company_type"),
			AddressMailingFlag:      r.Get("address_mailing_flag"),
			AddressBillingFlag:      r.Get("address_billing_flag"),
			AddressNotificationFlag: r.Get("address_notification_flag"),
			AddressOther:            r.Get("address_other"),
			SuiteNumber:             r.Get("suite_number"),
			StreetName:              r.Get("street_name"),
			CityName:                r.Get("city_name"),
			Province:                r.Get("province"),
			Country:                 r.Get("country"),
			PostalCode:              r.Get("postal_code"),
			PostOfficeBox:           r.Get("post_office_box"),
		}
	})

	e.Forms = children(records[KindForm.Name], func(r Record) entities.Form {
		return entities.Form{FormCode: r.Get("pharm_form_code"), Form: r.Get("pharmaceutical_form")}
	})

	e.Statuses = children(records[KindStatus.Name], func(r Record) entities.Status {
		return entities.Status{
			CurrentStatusFlag: r.Get("current_status_flag"),
			Status:            r.Get("status"),
			HistoryDate:       r.Get("history_date"),
		}
	})

	e.Routes = children(records[KindRoute.Name], func(r Record) entities.Route {
		return entities.Route{RouteCode: r.Get("route_of_administration_code"), Route: r.Get("route_of_administration")}
	})

	e.Schedules = children(records[KindSchedule.Name], func(r Record) entities.Schedule {
		return entities.Schedule{Schedule: r.Get("schedule")}
	})

	e.TherapeuticClasses = children(records[KindTherapeuticClass.Name], func(r Record) entities.TherapeuticClass {
		return entities.TherapeuticClass{TCATCNumber: r.Get("tc_atc_number"), TCATC: r.Get("tc_atc")}
	})

	e.PharmaceuticalStds = children(records[KindPharmaceuticalStd.Name], func(r Record) entities.PharmaceuticalStd {
		return entities.PharmaceuticalStd{PharmaceuticalStd: r.Get("pharmaceutical_std")}
	})

	return e
}

func children[T any](records []Record, convert func(Record) T) []Child[T] {
	out := make([]Child[T], 0, len(records))
	for _, r := range records {
		out = append(out, Child[T]{DrugCode: r.DrugCode(), Record: convert(r)})
	}
	return out
}
