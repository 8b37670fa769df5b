package wire

import "errors"

// Sentinel errors returned by the frame codec and reassembler, named after
// the teacher's internal/core/errors.go "slpd: <condition>" convention.
var (
	ErrNotParseable    = errors.New("slpd: frame not parseable")
	ErrUnknownKind     = errors.New("slpd: unknown frame kind")
	ErrFragmentOverrun = errors.New("slpd: fragment header overruns buffer")
	ErrWrongKind       = errors.New("slpd: accessor called on wrong frame kind")
)
