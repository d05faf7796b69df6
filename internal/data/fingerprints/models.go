// Package fingerprints persists descriptor fingerprints per verification run
// so a changed descriptor can be spotted across process restarts.
package fingerprints

import (
	"time"

	"github.com/google/uuid"

	"tree-sitter-cerium/pkg/descriptor"
)

// Run is one verification pass over the enabled grammars.
type Run struct {
	ID           string
	Timestamp    time.Time
	GrammarsPath string
	IssueCount   int
	Records      []Record
}

// Record is the persisted summary of one descriptor.
type Record struct {
	RunID           string
	Language        string
	ABIVersion      uint32
	SymbolCount     uint32
	FieldCount      uint32
	ProductionCount uint32
	Fingerprint     string
	ArtifactHash    string
	Timestamp       time.Time
}

// Drift pairs the last persisted record of a language with its current one.
type Drift struct {
	Language string
	Previous Record
	Current  Record
}

// NewRun starts a run with a fresh id covering descs.
func NewRun(grammarsPath string, descs []*descriptor.Language) Run {
	run := Run{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		GrammarsPath: grammarsPath,
	}
	for _, desc := range descs {
		run.Records = append(run.Records, RecordFromDescriptor(run.ID, desc, run.Timestamp))
	}
	return run
}

func RecordFromDescriptor(runID string, desc *descriptor.Language, ts time.Time) Record {
	return Record{
		RunID:           runID,
		Language:        desc.Name(),
		ABIVersion:      desc.ABIVersion(),
		SymbolCount:     desc.SymbolCount(),
		FieldCount:      desc.FieldCount(),
		ProductionCount: desc.ProductionCount(),
		Fingerprint:     desc.Fingerprint(),
		ArtifactHash:    desc.ArtifactHash(),
		Timestamp:       ts.UTC(),
	}
}
