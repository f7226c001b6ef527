package models

// Extra is the app-local side record carried with a post through storage.
// Wire decoding never populates it; it survives refreshes by being copied
// forward from the previously cached entry.
type Extra struct {
	Translation *Translation `json:"translation,omitempty"`
}

type Translation struct {
	Text string `json:"text"`
	// Unchanged marks a translation whose output equals its input
	Unchanged bool `json:"unchanged,omitempty"`
}
