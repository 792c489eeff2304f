package looper

import (
	"fmt"
	"github.com/eapache/queue"
	"github.com/lni/dragonboat/v4/logger"
	"runtime"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("looper")

// Looper is an event loop over one WaitSet. It is created by, and driven from,
// a single goroutine which Loop locks to its OS thread.
type Looper struct {
	waitSet WaitSet

	trivialOnce sync.Once
	trivial     *Source

	shouldTerminate atomic.Bool

	tasksMu sync.Mutex
	tasks   *queue.Queue
}

// New creates a new Looper with its own WaitSet. The self-wake source is
// created lazily on first use.
func New() (*Looper, error) {
	ws, err := NewWaitSet()
	if err != nil {
		return nil, fmt.Errorf("could not create wait set: %w", err)
	}
	return &Looper{
		waitSet: ws,
		tasks:   queue.New(),
	}, nil
}

// AddSource registers the source with the loop's wait set
func (l *Looper) AddSource(source *Source) bool {
	return l.waitSet.AddSource(source)
}

// RemoveSource deregisters the source from the loop's wait set
func (l *Looper) RemoveSource(source *Source) bool {
	return l.waitSet.RemoveSource(source)
}

// Loop dispatches ready sources until Terminate is called. For every wake the
// source's read handler is invoked with its read handle, then its wake
// callback. The terminate flag is cleared when Loop returns, so the loop can
// be run again.
func (l *Looper) Loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.trivialSource()

	for !l.shouldTerminate.Load() {
		source := l.waitSet.Wait()
		if source == nil {
			continue
		}
		if reader := source.Reader(); reader != nil {
			reader(source.ReadHandle())
		}
		source.OnAwoken()
	}

	l.shouldTerminate.Store(false)
}

// Terminate makes Loop return after the current dispatch. Safe to call from
// any goroutine.
func (l *Looper) Terminate() {
	l.shouldTerminate.Store(true)
	l.wake()
}

// Post queues task to run on the loop's thread and wakes the loop.
// Tasks run in the order they were posted.
func (l *Looper) Post(task func()) {
	if task == nil {
		return
	}

	l.tasksMu.Lock()
	l.tasks.Add(task)
	l.tasksMu.Unlock()

	l.wake()
}

// Close deregisters and releases the self-wake source and closes the wait set
func (l *Looper) Close() error {
	// a looper that never ran or posted has no self-wake source to release
	l.trivialOnce.Do(func() {})
	if trivial := l.trivial; trivial != nil {
		l.waitSet.RemoveSource(trivial)
		trivial.Close()
	}
	return l.waitSet.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// trivialSource returns the self-wake source, creating and registering it on first use
func (l *Looper) trivialSource() *Source {
	l.trivialOnce.Do(func() {
		l.trivial = AsTrivial()
		l.trivial.SetWakeFunc(l.runTasks)
		l.waitSet.AddSource(l.trivial)
	})
	return l.trivial
}

// wake writes one wake token into the self-wake source
func (l *Looper) wake() {
	trivial := l.trivialSource()
	trivial.Writer()(trivial.WriteHandle())
}

// runTasks drains the task queue. The lock is not held while a task runs so
// tasks can post further tasks.
func (l *Looper) runTasks() {
	for {
		l.tasksMu.Lock()
		if l.tasks.Length() == 0 {
			l.tasksMu.Unlock()
			return
		}
		task := l.tasks.Remove().(func())
		l.tasksMu.Unlock()

		task()
	}
}
