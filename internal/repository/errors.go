package repository

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on a unique constraint violation.
	ErrConflict = errors.New("conflict")

	// ErrQuizNotPublished is returned when an attempt targets a quiz that is not published.
	ErrQuizNotPublished = errors.New("quiz not published")
)

const pgUniqueViolation = "23505"
