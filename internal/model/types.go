package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// BlueprintRecord is the persisted form of a voxel blueprint. Cells are stored
// flat in x-major order: index = (x*dims[1] + y)*dims[2] + z.
type BlueprintRecord struct {
	VersionedRecord
	Dims             [3]int   `json:"dims"`
	NextID           int      `json:"next_id"`
	Cells            []int    `json:"cells"`
	ValidIDs         []int    `json:"valid_ids"`
	AttachmentPoints [][3]int `json:"attachment_points,omitempty"`
	Score            int      `json:"score"`
	Fingerprint      string   `json:"fingerprint,omitempty"`
}

type RunRecord struct {
	VersionedRecord
	ID             string  `json:"id"`
	CreatedAtUTC   string  `json:"created_at_utc"`
	Dims           [3]int  `json:"dims"`
	PopulationSize int     `json:"population_size"`
	Rounds         int     `json:"rounds"`
	EliteCount     int     `json:"elite_count"`
	SurvivorCount  int     `json:"survivor_count"`
	DeleteChance   float64 `json:"delete_chance"`
	Seed           int64   `json:"seed"`
	Workers        int     `json:"workers"`
	Scorer         string  `json:"scorer"`
	Selection      string  `json:"selection"`
	Stability      string  `json:"stability"`
	LibrarySize    int     `json:"library_size"`
	BestScore      int     `json:"best_score"`
	InitialMin     int     `json:"initial_min_score"`
}

type RoundDiagnostics struct {
	Round             int     `json:"round"`
	BestScore         int     `json:"best_score"`
	MeanScore         float64 `json:"mean_score"`
	MinScore          int     `json:"min_score"`
	MeanBlocks        float64 `json:"mean_blocks"`
	UniqueDesigns     int     `json:"unique_designs"`
	Mutations         int     `json:"mutations"`
	UnstableMutations int     `json:"unstable_mutations"`
	FailedPlacements  int     `json:"failed_placements"`
}

type LineageRecord struct {
	VersionedRecord
	IndividualID string `json:"individual_id"`
	ParentID     string `json:"parent_id"`
	Round        int    `json:"round"`
	Operation    string `json:"operation"`
	Stable       bool   `json:"stable"`
	Fingerprint  string `json:"fingerprint,omitempty"`
	Score        int    `json:"score"`
}
