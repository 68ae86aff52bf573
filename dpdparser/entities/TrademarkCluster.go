package entities

// TrademarkCluster groups the single-ingredient products whose ingredient
// text resolves to the same canonical trademark.
type TrademarkCluster struct {
	TM     string        `json:"tm"`
	Family []DrugProduct `json:"family"`
}
