package model

// Sentinels substituted for missing values in PlaceResult
const (
	UnknownName          = "Neznámé"
	NotAvailable         = "N/A"
	WebsiteNotAvailable  = "Není k dispozici"
	AccessibilityMissing = "Neuvedeno"
)

// PlaceResult is the compact projection of a Place returned to the model and the caller
type PlaceResult struct {
	Name          string    `json:"name"`
	ID            string    `json:"id"`
	Category      string    `json:"category"`
	District      string    `json:"district"`
	Municipality  string    `json:"municipality"`
	Address       string    `json:"address"`
	Coordinates   []float64 `json:"coordinates"`
	Website       string    `json:"website"`
	Accessibility string    `json:"accessibility"`
	MuseumType    string    `json:"museum_type,omitempty"`
	MuseumFocus   string    `json:"museum_focus,omitempty"`
	Description   string    `json:"description,omitempty"`
}

// ToolResponse is the payload returned for a search_places invocation
type ToolResponse struct {
	Success           bool          `json:"success"`
	Count             int           `json:"count"`
	FilterDescription string        `json:"matched_filter_description"`
	Places            []PlaceResult `json:"places"`
	Error             string        `json:"error,omitempty"`
}

// FailedToolResponse builds a structured failure result
func FailedToolResponse(msg string) *ToolResponse {
	return &ToolResponse{
		Success: false,
		Places:  []PlaceResult{},
		Error:   msg,
	}
}
