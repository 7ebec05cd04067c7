package kura

import (
	"sync"

	"kintsugi.dev/node/block"
)

// OpKind distinguishes the two mutating operations a Writer can queue.
type OpKind int

const (
	OpAppend OpKind = iota
	OpReplaceTop
)

// Op is one queued mutation, with a Done channel the caller can block on to
// learn the outcome (§5: "a write failure is routed to a single FatalWriter
// callback invoked exactly once", independent of whether the submitter is
// still waiting).
type Op struct {
	Kind  OpKind
	Block block.SignedBlock
	Done  chan error
}

// FatalWriter is invoked exactly once, the first time a queued write fails.
// The writer goroutine keeps draining and failing subsequent ops after that
// (each Done channel still receives the error) but never calls FatalWriter
// again.
type FatalWriter func(err error)

// Writer serialises all mutations to a Store through a single background
// goroutine reading from a bounded channel, replacing the polling loop the
// teacher used for its own soft-fork watcher (§9 Design Notes).
type Writer struct {
	store *Store
	ops   chan Op
	done  chan struct{}

	onFatal FatalWriter

	fatalOnce sync.Once
	fatalErr  error
}

// NewWriter starts the background goroutine. queueDepth bounds how many
// pending ops may accumulate before Submit blocks.
func NewWriter(store *Store, queueDepth int, onFatal FatalWriter) *Writer {
	w := &Writer{
		store:   store,
		ops:     make(chan Op, queueDepth),
		done:    make(chan struct{}),
		onFatal: onFatal,
	}
	go w.run()
	return w
}

// Submit enqueues op and blocks until it has been applied (or the writer has
// shut down).
func (w *Writer) Submit(op Op) error {
	if op.Done == nil {
		op.Done = make(chan error, 1)
	}
	select {
	case w.ops <- op:
	case <-w.done:
		return invariantErr("writer is shut down")
	}
	return <-op.Done
}

// Append queues an OpAppend and waits for it to be applied.
func (w *Writer) Append(sb block.SignedBlock) error {
	return w.Submit(Op{Kind: OpAppend, Block: sb})
}

// ReplaceTop queues an OpReplaceTop and waits for it to be applied.
func (w *Writer) ReplaceTop(sb block.SignedBlock) error {
	return w.Submit(Op{Kind: OpReplaceTop, Block: sb})
}

// Shutdown closes the op channel, drains whatever is already queued, and
// waits for the goroutine to exit (§5: "drains it fully on shutdown before
// exiting").
func (w *Writer) Shutdown() {
	close(w.ops)
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)
	for op := range w.ops {
		err := w.apply(op)
		if err != nil {
			w.fatalOnce.Do(func() {
				w.fatalErr = err
				if w.onFatal != nil {
					w.onFatal(err)
				}
			})
		}
		if op.Done != nil {
			op.Done <- err
		}
	}
}

func (w *Writer) apply(op Op) error {
	switch op.Kind {
	case OpAppend:
		return w.store.Append(op.Block)
	case OpReplaceTop:
		return w.store.ReplaceTop(op.Block)
	default:
		return invariantErr("unknown op kind")
	}
}
