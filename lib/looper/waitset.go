package looper

// WaitSet is the platform abstraction over one kernel multiplexing handle.
// Implementations are selected at build time (see waitset_linux.go and
// waitset_kqueue.go).
type WaitSet interface {
	// AddSource registers the source with the kernel using the interest returned
	// by its registration strategy. It returns false if the source is nil or
	// already part of the set. A kernel registration failure is fatal.
	AddSource(source *Source) bool
	// RemoveSource deregisters the source. It returns false if the source is nil
	// or not part of the set.
	RemoveSource(source *Source) bool
	// Wait blocks until one registered source is ready and returns it. EINTR is
	// retried, any other kernel failure is fatal. Wait returns nil if the ready
	// source was removed concurrently.
	Wait() *Source
	// Close releases the kernel handle
	Close() error
}

// registration is the value stored per source in a wait set. The interest is
// kept so that deregistration does not depend on the source's current handles.
type registration struct {
	source   *Source
	interest Interest
}
