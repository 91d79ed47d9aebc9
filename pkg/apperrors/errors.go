package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrNetworkUnreachable  = errors.New("network unreachable")
	ErrProcessFailed       = errors.New("process invocation failed")
	ErrParseFailure        = errors.New("parse failure")
	ErrSchemaAbsent        = errors.New("schema absent")
	ErrAlreadyLoaded       = errors.New("source file already loaded")
	ErrContainerNotRunning = errors.New("container is not running")
	ErrInvalidIdentifier   = errors.New("invalid identifier")
	ErrUnsafeLiteral       = errors.New("unsafe SQL literal")
)
