package server

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStopped is returned by Worker operations after Stop.
var ErrStopped = errors.New("worker stopped")

// workRequest is one workspace operation. Results travel back through
// variables captured by run; done reports a panic or nil.
type workRequest struct {
	run  func(*Workspace)
	done chan error
}

// Worker owns a Workspace and applies every operation on it from a single
// goroutine. An Analysis is never modified once built, so callers may read
// the ones they get back from any goroutine.
type Worker struct {
	ws       *Workspace
	requests chan workRequest
	quit     chan struct{}
	stop     sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(ws *Workspace) *Worker {
	w := &Worker{
		ws:       ws,
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.apply(req.run)
		case <-w.quit:
			return
		}
	}
}

// apply runs one operation, turning a panic into an error.
func (w *Worker) apply(run func(*Workspace)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	run(w.ws)
	return nil
}

// submit queues run and waits for it to finish.
func (w *Worker) submit(run func(*Workspace)) error {
	select {
	case <-w.quit:
		return ErrStopped
	default:
	}

	req := workRequest{run: run, done: make(chan error, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return ErrStopped
	}
	select {
	case err := <-req.done:
		return err
	case <-w.quit:
		return ErrStopped
	}
}

// Update re-analyzes uri from text and returns the new analysis.
func (w *Worker) Update(uri, text string) (*Analysis, error) {
	var a *Analysis
	err := w.submit(func(ws *Workspace) {
		a = ws.Update(uri, text)
	})
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", uri, err)
	}
	return a, nil
}

// Analysis returns the latest analysis of uri, or nil when it is not open.
func (w *Worker) Analysis(uri string) (*Analysis, error) {
	var a *Analysis
	err := w.submit(func(ws *Workspace) {
		a, _ = ws.Get(uri)
	})
	return a, err
}

// Forget drops the analysis of uri.
func (w *Worker) Forget(uri string) error {
	return w.submit(func(ws *Workspace) {
		ws.Forget(uri)
	})
}

// Stop shuts down the worker goroutine. Safe to call more than once.
func (w *Worker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
