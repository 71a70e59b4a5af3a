//go:build !sqlite_cgo

package storage

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by this build
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
