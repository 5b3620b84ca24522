package model

import "encoding/json"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord summarizes one completed simulation run.
type RunRecord struct {
	VersionedRecord
	ID              string `json:"id"`
	Scenario        string `json:"scenario"`
	Seed            int64  `json:"seed"`
	StartCycle      int    `json:"start_cycle"`
	Cycles          int    `json:"cycles"`
	FinalCycle      int    `json:"final_cycle"`
	FinalPopulation int    `json:"final_population"`
	CreatedAtUTC    string `json:"created_at_utc"`
}

// CycleRecord is the snapshot of recorded statistics after one cycle. Values
// holds the JSON encoding of each recorded parameter bag entry.
type CycleRecord struct {
	VersionedRecord
	Cycle      int                        `json:"cycle"`
	Population int                        `json:"population"`
	Values     map[string]json.RawMessage `json:"values,omitempty"`
}
