package models

// Page is the raw outcome of one fetch.
type Page struct {
	URL         string `json:"url"`
	FinalURL    string `json:"final_url"`
	Body        string `json:"body"`
	ContentType string `json:"content_type"`
	Status      int    `json:"status"`
	FetchMS     int    `json:"fetch_ms"`
}
