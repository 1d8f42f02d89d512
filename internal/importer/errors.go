package importer

import "errors"

// ErrMalformedPieceList is returned when a text piece list cannot be parsed.
var ErrMalformedPieceList = errors.New("malformed piece list")
