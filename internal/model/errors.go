package model

import "errors"

var (
	// ErrInvalidSheet is returned when a sheet dimension is not strictly positive.
	ErrInvalidSheet = errors.New("sheet width and height must be positive")
	// ErrInvalidKerf is returned when the kerf is negative.
	ErrInvalidKerf = errors.New("kerf must be zero or positive")
	// ErrInvalidPiece is returned when a piece dimension or quantity is not strictly positive.
	ErrInvalidPiece = errors.New("piece width, height and quantity must be positive")
	// ErrNoPieces is returned when a job requests nothing.
	ErrNoPieces = errors.New("piece list is empty")
	// ErrTooManyPieces is returned when a job expands to more than MaxPieces pieces.
	ErrTooManyPieces = errors.New("too many pieces")
)
