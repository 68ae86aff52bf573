package entities

// Status is one entry of the marketing status history of a drug product.
type Status struct {
	CurrentStatusFlag string `json:"current_status_flag"`
	Status            string `json:"status"`
	HistoryDate       string `json:"history_date"`
}
