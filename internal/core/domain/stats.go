package domain

// IngestStats summarises one ingestion run.
type IngestStats struct {
	TotalFiles  int `json:"total_files"`
	Successful  int `json:"successful"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	TotalChunks int `json:"total_chunks"`
}

// StoreStats describes the current index contents.
type StoreStats struct {
	Count    int            `json:"count"`
	DocTypes map[string]int `json:"doc_types"`
	Backend  string         `json:"backend"`
}
