package repository

import "errors"

var (
	// ErrNilRecord is returned when a nil instance is passed to a write operation
	ErrNilRecord = errors.New("record cannot be nil")

	// ErrNotPersisted is returned by Update and Delete on an instance without an id
	ErrNotPersisted = errors.New("record has not been saved")

	// ErrAlreadyPersisted is returned by Save on an instance that already has an id
	ErrAlreadyPersisted = errors.New("record already saved")

	// ErrNoRows is returned by Update and Delete when no row carries the instance's id
	ErrNoRows = errors.New("no row matches record id")
)
