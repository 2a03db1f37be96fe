package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"ruingen/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps new records.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeBlueprint(bp model.BlueprintRecord) ([]byte, error) {
	return json.Marshal(bp)
}

func DecodeBlueprint(data []byte) (model.BlueprintRecord, error) {
	var bp model.BlueprintRecord
	if err := json.Unmarshal(data, &bp); err != nil {
		return model.BlueprintRecord{}, err
	}
	if err := checkVersion(bp.VersionedRecord); err != nil {
		return model.BlueprintRecord{}, err
	}
	want := bp.Dims[0] * bp.Dims[1] * bp.Dims[2]
	if len(bp.Cells) != want {
		return model.BlueprintRecord{}, fmt.Errorf("blueprint cell count %d does not match dims %v", len(bp.Cells), bp.Dims)
	}
	return bp, nil
}

func EncodeLineage(records []model.LineageRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeLineage(data []byte) ([]model.LineageRecord, error) {
	var records []model.LineageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func EncodeFitnessHistory(history []int) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]int, error) {
	var history []int
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeRoundDiagnostics(diagnostics []model.RoundDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeRoundDiagnostics(data []byte) ([]model.RoundDiagnostics, error) {
	var diagnostics []model.RoundDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

// sortRuns orders runs newest first, then by id.
func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
