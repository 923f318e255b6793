package models

// Stats is a best-effort snapshot. The share counters are read together and
// agree with each other; Users is read separately and may be off by the
// registrations that happened in between.
type Stats struct {
	Users          int64 `json:"users"`
	TotalShares    int64 `json:"total_shares"`
	FileShares     int64 `json:"file_shares"`
	TextShares     int64 `json:"text_shares"`
	TotalFileBytes int64 `json:"total_file_size"`
}

type ShareCounts struct {
	Total          int64
	Files          int64
	Texts          int64
	TotalFileBytes int64
}
