// Package looper implements a per-thread event notification loop on top of the
// kernel readiness facilities of the host (epoll on Linux, kqueue on Darwin and
// FreeBSD). It is the scheduling core for channels and listeners of the rpc
// packages: everything that wants to be woken up registers a Source with a
// Looper and gets its callbacks invoked on the loop's thread.
//
// Key Components:
//
//   - WaitSet: Thin interface over one kernel multiplexing handle. It supports
//     exactly three operations: register a source, deregister a source and block
//     until one registered source becomes ready. Sources are round-tripped
//     through the kernel by a numeric token and looked up in a concurrent map.
//
//   - Source: A wakeable source. Owns a pair of lazily allocated kernel handles
//     (allocated at most once, released exactly once), a read handler, a write
//     handler, an optional post-wake callback and an optional registration
//     strategy that decides which kernel event is registered for it.
//     AsTrivial builds a self-wake pipe and AsTimer builds a periodic timer.
//
//   - Looper: Owns a WaitSet and a trivial self-wake source. Loop blocks the
//     calling goroutine (locked to its OS thread) and dispatches one ready source
//     at a time until Terminate is called from any goroutine. Post queues a
//     function to run on the loop's thread.
//
// Thread Safety:
//
//	A Looper is driven by exactly one goroutine. Terminate and Post are the only
//	methods meant to be called from other goroutines. Adding and removing
//	sources is safe from any goroutine since the kernel facilities are.
//
// Usage:
//
//	l, err := looper.New()
//	if err != nil { ... }
//	defer l.Close()
//
//	timer := looper.AsTimer(100 * time.Millisecond)
//	timer.SetWakeFunc(func() { l.Terminate() })
//	l.AddSource(timer)
//	l.Loop()
//	l.RemoveSource(timer)
//	timer.Close()
package looper
