package entities

// Form is a pharmaceutical form (tablet, solution...) of a drug product.
type Form struct {
	FormCode string `json:"form_code"`
	Form     string `json:"form"`
}

// Route is a route of administration of a drug product.
type Route struct {
	RouteCode string `json:"route_code"`
	Route     string `json:"route"`
}

type Schedule struct {
	Schedule string `json:"schedule"`
}

// TherapeuticClass carries the ATC classification of a drug product.
type TherapeuticClass struct {
	TCATCNumber string `json:"tc_atc_number"`
	TCATC       string `json:"tc_atc"`
}

type PharmaceuticalStd struct {
	PharmaceuticalStd string `json:"pharmaceutical_std"`
}
