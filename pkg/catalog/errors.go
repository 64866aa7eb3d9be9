package catalog

import "errors"

var (
	ErrInvalidPack   = errors.New("catalog: pack id is required")
	ErrDuplicatePack = errors.New("catalog: duplicate pack id")
	ErrLoadFailed    = errors.New("catalog: failed to load packs")
)
