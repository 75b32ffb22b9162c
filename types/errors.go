package types

import "errors"

// Error kinds surfaced by the registration packages. Callers test with errors.Is,
// the packages wrap them with fmt.Errorf("%w: ...").
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnimplemented   = errors.New("unimplemented")
)
