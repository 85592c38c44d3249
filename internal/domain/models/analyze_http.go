package models

// Requests for analysis HTTP endpoints. Defined in domain for consistency and reuse.

type AnalyzeRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,min=1,max=10"`
	Style  string `query:"style" json:"style" default:"balanced" validate:"oneof=conservative balanced aggressive"`
}

type ChartRequest struct {
	Symbol string `query:"symbol" param:"symbol" json:"symbol" validate:"required,min=1,max=10"`
	Days   int    `query:"days" json:"days" default:"90" validate:"gte=30,lte=1825"`
}
