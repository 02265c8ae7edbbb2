package compute

import (
	"errors"
	"fmt"
)

var (
	// ErrNoGraphicsContext is returned by NewRegistry when no graphics context is supplied.
	// Compute discovery must run after the graphics context exists.
	ErrNoGraphicsContext = errors.New("compute: no active graphics context")

	// ErrNoSharablePlatform is returned when no platform can share the active graphics context.
	ErrNoSharablePlatform = errors.New("compute: no platform can share the graphics context")

	// ErrForeignDevice is returned when a device or queue of another platform is used.
	ErrForeignDevice = errors.New("compute: device belongs to another platform")

	// ErrNotInterop is returned by Acquire and Release on device-private memory.
	ErrNotInterop = errors.New("compute: memory object is not an interop object")

	// ErrAlreadyAcquired is returned when acquiring memory the compute side already owns.
	ErrAlreadyAcquired = errors.New("compute: memory object already acquired")

	// ErrNotAcquired is returned when interop memory is used or released without being acquired.
	ErrNotAcquired = errors.New("compute: memory object not acquired")

	// ErrWrongQueue is returned when interop memory is released on a queue other than its owner.
	ErrWrongQueue = errors.New("compute: memory object acquired on another queue")

	// ErrAlreadyWrapped is returned when a graphics resource already has an interop wrapper.
	ErrAlreadyWrapped = errors.New("compute: graphics resource already wrapped")

	// ErrNotSharable is returned when wrapping a graphics resource on a platform that cannot share it.
	ErrNotSharable = errors.New("compute: platform cannot share graphics resources")

	// ErrSourceUnavailable is returned when a kernel source file cannot be opened.
	ErrSourceUnavailable = errors.New("compute: kernel source unavailable")

	// ErrKernelNotFound is returned when a kernel name is not an entry point of the program.
	ErrKernelNotFound = errors.New("compute: kernel not found")

	// ErrUnboundArgument is returned when a kernel runs with a declared binding left unset.
	ErrUnboundArgument = errors.New("compute: kernel argument not bound")

	// ErrIncompatibleResource is returned when an argument cannot be bound to the declared resource type.
	ErrIncompatibleResource = errors.New("compute: argument incompatible with binding")

	// ErrReleased is returned when using an object after it, or its parent, was released.
	ErrReleased = errors.New("compute: object released")
)

// BuildError carries the complete build log of a program that failed to build.
type BuildError struct {
	// Path is the source the program was loaded from.
	Path string
	// Log is the untruncated diagnostic output.
	Log string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("compute: build of %s failed:\n%s", e.Path, e.Log)
}

var errorNames = []struct {
	err  error
	name string
}{
	{ErrNoGraphicsContext, "NO_GRAPHICS_CONTEXT"},
	{ErrNoSharablePlatform, "NO_SHARABLE_PLATFORM"},
	{ErrForeignDevice, "INVALID_DEVICE"},
	{ErrNotInterop, "NOT_INTEROP"},
	{ErrAlreadyAcquired, "ALREADY_ACQUIRED"},
	{ErrNotAcquired, "NOT_ACQUIRED"},
	{ErrWrongQueue, "INVALID_COMMAND_QUEUE"},
	{ErrAlreadyWrapped, "ALREADY_WRAPPED"},
	{ErrNotSharable, "INVALID_GL_OBJECT"},
	{ErrSourceUnavailable, "SOURCE_UNAVAILABLE"},
	{ErrKernelNotFound, "KERNEL_NOT_FOUND"},
	{ErrUnboundArgument, "INVALID_KERNEL_ARGS"},
	{ErrIncompatibleResource, "INVALID_ARG_VALUE"},
	{ErrReleased, "INVALID_OBJECT"},
}

// ErrorName returns a stable short code for diagnostics. Unknown errors map to "UNKNOWN",
// nil maps to "SUCCESS".
//
// Parameters:
//   - err: the error to name, possibly wrapped
//
// Returns:
//   - string: the short code of the first sentinel err matches
func ErrorName(err error) string {
	if err == nil {
		return "SUCCESS"
	}
	var be *BuildError
	if errors.As(err, &be) {
		return "BUILD_PROGRAM_FAILURE"
	}
	for _, e := range errorNames {
		if errors.Is(err, e.err) {
			return e.name
		}
	}
	return "UNKNOWN"
}
