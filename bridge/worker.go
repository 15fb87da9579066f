package bridge

import "github.com/chazu/tether/host"

// Worker serializes host access onto a single goroutine so operations
// observe the object graph one at a time. A panic inside an operation is
// caught and surfaced as an error instead of killing the process.
type Worker struct {
	space    *host.Space
	requests chan workRequest
	done     chan struct{}
}

type workRequest struct {
	fn     func(*host.Space) (host.Value, error)
	result chan workResult
}

type workResult struct {
	value host.Value
	err   error
}

// NewWorker starts the worker goroutine for a space.
func NewWorker(space *host.Space) *Worker {
	w := &Worker{
		space:    space,
		requests: make(chan workRequest),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.result <- w.execute(req.fn)
		case <-w.done:
			return
		}
	}
}

func (w *Worker) execute(fn func(*host.Space) (host.Value, error)) (res workResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("host operation panicked: %v", r)
			res = workResult{value: host.Nil, err: hostFailuref("host operation panicked: %v", r)}
		}
	}()
	value, err := fn(w.space)
	return workResult{value: value, err: err}
}

// Do runs fn on the worker goroutine and waits for its result. Do must
// not be called after Stop.
func (w *Worker) Do(fn func(*host.Space) (host.Value, error)) (host.Value, error) {
	result := make(chan workResult, 1)
	w.requests <- workRequest{fn: fn, result: result}
	res := <-result
	return res.value, res.err
}

// Stop shuts the worker goroutine down.
func (w *Worker) Stop() {
	close(w.done)
}
