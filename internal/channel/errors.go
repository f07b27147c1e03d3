package channel

import "errors"

var (
	ErrNoName       = errors.New("channel name required")
	ErrNoBackend    = errors.New("channel backend required")
	ErrNoFrontend   = errors.New("channel frontend required")
	ErrNoKind       = errors.New("record kind required")
	ErrUnknownField = errors.New("unknown search field")
	ErrNoRenderer   = errors.New("template renderer required")
)
