package entities

// Drug is one line of the primary drug file, before any join.
type Drug struct {
	DrugCode              string
	ProductCategorization string
	Class                 string
	DIN                   string
	BrandName             string
	AccessionNumber       string
	NumberOfAIs           string
	LastUpdateDate        string
	AIGroupNo             string
}
