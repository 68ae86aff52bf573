package entities

type Company struct {
	MfrCode                 string `json:"mfr_code"`
	CompanyCode             string `json:"company_code"`
	CompanyName             string `json:"company_name"`
	CompanyType             string `json:"company_type"`
	AddressMailingFlag      string `json:"address_mailing_flag"`
	AddressBillingFlag      string `json:"address_billing_flag"`
	AddressNotificationFlag string `json:"address_notification_flag"`
	AddressOther            string `json:"address_other"`
	SuiteNumber             string `json:"suite_number"`
	StreetName              string `json:"street_name"`
	CityName                string `json:"city_name"`
	Province                string `json:"province"`
	Country                 string `json:"country"`
	PostalCode              string `json:"postal_code"`
	PostOfficeBox           string `json:"post_office_box"`
}
