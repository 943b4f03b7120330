package model

// Location is the answer of the cell and survey domains.
type Location struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
	Source   string  `json:"source,omitempty"`
}

// AssistanceData is the answer of the A-GNSS and A-GPS domains. Chunks holds one binary
// blob per upstream sub-request, in request order.
type AssistanceData struct {
	Types  []int    `json:"types"`
	Chunks [][]byte `json:"chunks"`
}

// PredictionSet points at the downloadable predicted GPS data.
type PredictionSet struct {
	Host string `json:"host"`
	Path string `json:"path"`
}
