// FILE: lixenwraith/linelog/errors.go
package linelog

import "errors"

var (
	// ErrStorageUnavailable means every destination of the fallback chain failed.
	// It is scoped to one buffer, which drops its writes afterwards.
	ErrStorageUnavailable = errors.New("linelog: storage unavailable")

	// ErrBufferNotRegistered is returned for operations on a buffer the manager does not know
	ErrBufferNotRegistered = errors.New("linelog: buffer not registered")

	// ErrEncodingFailure means a serialized record is not valid UTF-8
	ErrEncodingFailure = errors.New("linelog: record encoding failure")

	// ErrLocationNotAccessible advances the resolver to the next location
	ErrLocationNotAccessible = errors.New("linelog: location not accessible")

	// ErrNotInitialized is returned by operations that need Init first
	ErrNotInitialized = errors.New("linelog: manager not initialized")
)
