//go:build !sqlite

package storage

import "errors"

const defaultStoreKind = "memory"

var errSQLiteUnavailable = errors.New("sqlite store requires a build with -tags sqlite")

func newSQLiteStore(_ string) (Store, error) {
	return nil, errSQLiteUnavailable
}
