package realize

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ruingen/internal/blueprint"
)

var ErrNotReplaced = errors.New("existing asset not replaced")

// Exporter persists a finished blueprint as a named asset and returns where it
// was written.
type Exporter interface {
	Export(name string, bp *blueprint.Blueprint) (string, error)
}

// Asset is the on-disk form written by SceneWriter.
type Asset struct {
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	Scene       Scene  `json:"scene"`
}

// SceneWriter writes <Dir>/<name>.json. An existing file is replaced only if
// Confirm returns true for its path; a nil Confirm never replaces.
type SceneWriter struct {
	Dir     string
	Confirm func(path string) bool
}

func (w SceneWriter) Export(name string, bp *blueprint.Blueprint) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("asset name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid asset name: %q", name)
	}
	if bp == nil {
		return "", errors.New("blueprint is required")
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(w.Dir, name+".json")
	if _, err := os.Stat(path); err == nil {
		if w.Confirm == nil || !w.Confirm(path) {
			return "", fmt.Errorf("%w: %s", ErrNotReplaced, path)
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	data, err := json.MarshalIndent(Asset{
		Name:        name,
		Fingerprint: bp.Fingerprint(),
		Scene:       BuildScene(bp),
	}, "", "  ")
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(w.Dir, name+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return path, nil
}

func ReadAsset(path string) (Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Asset{}, err
	}
	var asset Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return Asset{}, fmt.Errorf("decode asset %s: %w", path, err)
	}
	return asset, nil
}
