package storage

import (
	"fmt"
	"strings"
)

// DefaultStoreKind is sqlite in builds tagged sqlite and memory otherwise.
func DefaultStoreKind() string {
	return defaultStoreKind
}

func NewStore(kind, sqlitePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
