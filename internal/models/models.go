package models

import "time"

// Record is the five-field projection of one upstream hit.
// A nil field means the value was null or absent in the source.
type Record struct {
	Country  *string `json:"country"`
	Category *string `json:"category"`
	Currency *string `json:"currency"`
	Name     *string `json:"name"`
	Type     *string `json:"type"`
}

// Values returns the fields in column order (country, category, currency, name, type).
func (r Record) Values() [5]*string {
	return [5]*string{r.Country, r.Category, r.Currency, r.Name, r.Type}
}

// Status describes dataset freshness.
type Status struct {
	Fetched     bool      `json:"fetched"`
	Ready       bool      `json:"ready"`
	InUse       bool      `json:"in_use"`
	LastUpdated time.Time `json:"last_updated"`
}

type GroupCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// --- RESPONSE BODIES ---

type StatusResponse struct {
	DataLoaded  bool   `json:"data_loaded"`
	Total       int    `json:"total"`
	LastUpdated string `json:"last_updated"`
	Fetched     bool   `json:"fetched"`
	Ready       bool   `json:"ready"`
	InUse       bool   `json:"in_use"`
}

type RefreshResponse struct {
	OK          bool   `json:"ok"`
	Total       int    `json:"total"`
	LastUpdated string `json:"last_updated"`
}

type RefreshFailure struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type InUseRequest struct {
	InUse *bool `json:"in_use" validate:"required"`
}

// FormatTime renders timestamps the way every response body carries them.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
