// Package repository contains the sqlx data access layer.  This file
// defines sentinel errors shared by all repositories so that the service
// layer can tell a missing row from a storage failure without inspecting
// driver-specific errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup by key matches no row.  Repositories
// translate sql.ErrNoRows into this value.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a guarded write matched no row because the
// row's state changed underneath the caller, e.g. a price that was raised
// by a concurrent bid or an auction that was already finished.
var ErrConflict = errors.New("conflict")
