// Package codec offloads JSON encode/decode work for post batches to a
// bounded worker pool so heavy serialization never runs on the paths that
// signal observers. Callers submit tasks and join the returned future
// before any cache or store mutation.
package codec

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

var (
	// ErrPoolClosed is returned for submissions after Close.
	ErrPoolClosed = errors.New("codec pool closed")
	// ErrPoolBusy is returned by TryMarshal when the queue is at capacity.
	ErrPoolBusy = errors.New("codec pool busy")
)

// Result carries the outcome of an offloaded task. Data is set for
// encodes; decodes populate the destination passed at submission.
type Result struct {
	Data []byte
	Err  error
}

type jobKind int

const (
	jobEncode jobKind = iota
	jobDecode
)

// job wraps one task and owns a pooled ByteBuffer when the input bytes
// were copied. Workers release pooled resources after resolving done.
type job struct {
	kind  jobKind
	value any
	out   any
	data  []byte
	buf   *bytebufferpool.ByteBuffer
	done  chan Result
}

var jobPool = sync.Pool{New: func() any { return &job{} }}

// newJob takes a pooled job and gives it a fresh result channel. The
// channel is never pooled: a consumer may join long after the job struct
// has been recycled for another task.
func newJob(kind jobKind) *job {
	j := jobPool.Get().(*job)
	j.kind = kind
	j.done = make(chan Result, 1)
	return j
}

// Pool is a bounded worker pool for serialization tasks. It is safe for
// concurrent producers.
type Pool struct {
	jobs      chan *job
	stop      chan struct{}
	wg        sync.WaitGroup
	maxPooled int

	// mu orders submissions against Close: a job enqueued under RLock is
	// always drained, and a submission after close is always rejected.
	mu     sync.RWMutex
	closed bool

	submitted uint64
	rejected  uint64
	closeOnce sync.Once
}

// Stats is a point-in-time view of pool counters.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`
	Depth     int    `json:"depth"`
	Capacity  int    `json:"capacity"`
}

// NewPool starts workers goroutines consuming a queue of the given depth.
// Non-positive workers defaults to GOMAXPROCS; non-positive depth to 256.
// maxPooledBuffer bounds the size of buffers returned to the shared pool;
// larger ones are dropped for the GC.
func NewPool(workers, depth int, maxPooledBuffer int64) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if depth <= 0 {
		depth = 256
	}
	maxPooled := int(maxPooledBuffer)
	if maxPooled <= 0 {
		maxPooled = 256 * 1024
	}
	p := &Pool{
		jobs:      make(chan *job, depth),
		stop:      make(chan struct{}),
		maxPooled: maxPooled,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case j := <-p.jobs:
			p.process(j)
		case <-p.stop:
			// resolve everything already queued before exiting
			for {
				select {
				case j := <-p.jobs:
					p.process(j)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) process(j *job) {
	var res Result
	switch j.kind {
	case jobEncode:
		res.Data, res.Err = json.Marshal(j.value)
	case jobDecode:
		res.Err = json.Unmarshal(j.data, j.out)
	}
	j.done <- res
	p.release(j)
}

func (p *Pool) release(j *job) {
	if j.buf != nil {
		if cap(j.buf.B) <= p.maxPooled {
			bytebufferpool.Put(j.buf)
		}
		j.buf = nil
	}
	j.value = nil
	j.out = nil
	j.data = nil
	j.done = nil
	jobPool.Put(j)
}

func (p *Pool) submit(ctx context.Context, j *job) <-chan Result {
	atomic.AddUint64(&p.submitted, 1)
	done := j.done
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		atomic.AddUint64(&p.rejected, 1)
		done <- Result{Err: ErrPoolClosed}
		p.release(j)
		return done
	}
	// stop cannot fire while the read lock is held, so an enqueue here is
	// guaranteed to be drained by a worker
	select {
	case p.jobs <- j:
		p.mu.RUnlock()
		return done
	case <-ctx.Done():
		p.mu.RUnlock()
		atomic.AddUint64(&p.rejected, 1)
		done <- Result{Err: ctx.Err()}
		p.release(j)
		return done
	}
}

// Marshal submits an encode of v and returns a future. The caller must
// not mutate v until the future resolves.
func (p *Pool) Marshal(ctx context.Context, v any) <-chan Result {
	j := newJob(jobEncode)
	j.value = v
	return p.submit(ctx, j)
}

// TryMarshal is the non-blocking variant; it returns ErrPoolBusy when the
// queue is full and ErrPoolClosed after Close.
func (p *Pool) TryMarshal(v any) (<-chan Result, error) {
	j := newJob(jobEncode)
	j.value = v
	atomic.AddUint64(&p.submitted, 1)
	done := j.done
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		atomic.AddUint64(&p.rejected, 1)
		p.release(j)
		return nil, ErrPoolClosed
	}
	select {
	case p.jobs <- j:
		return done, nil
	default:
		atomic.AddUint64(&p.rejected, 1)
		p.release(j)
		return nil, ErrPoolBusy
	}
}

// Unmarshal submits a decode of data into out and returns a future. The
// input bytes are copied into a pooled buffer so the caller may reuse
// data immediately; out must stay untouched until the future resolves.
func (p *Pool) Unmarshal(ctx context.Context, data []byte, out any) <-chan Result {
	j := newJob(jobDecode)
	j.out = out
	bb := bytebufferpool.Get()
	bb.B = append(bb.B[:0], data...)
	j.buf = bb
	j.data = bb.B[:len(data)]
	return p.submit(ctx, j)
}

// Encode submits v and joins the result. A nil pool encodes inline.
func (p *Pool) Encode(v any) ([]byte, error) {
	if p == nil {
		return json.Marshal(v)
	}
	res := <-p.Marshal(context.Background(), v)
	return res.Data, res.Err
}

// Decode submits data and joins the result. A nil pool decodes inline.
func (p *Pool) Decode(data []byte, out any) error {
	if p == nil {
		return json.Unmarshal(data, out)
	}
	res := <-p.Unmarshal(context.Background(), data, out)
	return res.Err
}

// EncodeAll fans the values out across the workers and joins the encoded
// forms in input order. The first failure aborts the join and is returned
// alone so callers can treat the batch as all-or-nothing.
func (p *Pool) EncodeAll(vs []any) ([][]byte, error) {
	if p == nil {
		out := make([][]byte, len(vs))
		for i, v := range vs {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			out[i] = b
		}
		return out, nil
	}
	futures := make([]<-chan Result, len(vs))
	for i, v := range vs {
		futures[i] = p.Marshal(context.Background(), v)
	}
	out := make([][]byte, len(vs))
	var firstErr error
	for i, f := range futures {
		res := <-f
		if res.Err != nil && firstErr == nil {
			firstErr = res.Err
		}
		out[i] = res.Data
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// DecodeAll fans the byte slices out across the workers, decoding each
// into the destination produced by dst(i), and joins them all. Errors
// are reported per item so callers can skip bad records.
func (p *Pool) DecodeAll(datas [][]byte, dst func(i int) any) []error {
	errs := make([]error, len(datas))
	if p == nil {
		for i, d := range datas {
			errs[i] = json.Unmarshal(d, dst(i))
		}
		return errs
	}
	futures := make([]<-chan Result, len(datas))
	for i, d := range datas {
		futures[i] = p.Unmarshal(context.Background(), d, dst(i))
	}
	for i, f := range futures {
		errs[i] = (<-f).Err
	}
	return errs
}

// Close stops the workers after resolving queued tasks. Safe to call
// more than once; a nil pool is a no-op.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stop)
	})
	p.wg.Wait()
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	if p == nil {
		return Stats{}
	}
	return Stats{
		Submitted: atomic.LoadUint64(&p.submitted),
		Rejected:  atomic.LoadUint64(&p.rejected),
		Depth:     len(p.jobs),
		Capacity:  cap(p.jobs),
	}
}
