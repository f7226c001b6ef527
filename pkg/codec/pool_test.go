package codec

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type record struct {
	N    int    `json:"n"`
	Text string `json:"text"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := NewPool(2, 8, 0)
	defer p.Close()

	in := record{N: 7, Text: "hello"}
	data, err := p.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	var out record
	if err := p.Decode(data, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("round trip = %+v", out)
	}
}

func TestNilPoolWorksInline(t *testing.T) {
	var p *Pool
	data, err := p.Encode(record{N: 1})
	if err != nil {
		t.Fatal(err)
	}
	var out record
	if err := p.Decode(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.N != 1 {
		t.Fatalf("decoded %+v", out)
	}
	p.Close()
}

func TestUnmarshalCopiesInput(t *testing.T) {
	p := NewPool(1, 4, 0)
	defer p.Close()

	data := []byte(`{"n":42,"text":"keep"}`)
	var out record
	fut := p.Unmarshal(context.Background(), data, &out)
	for i := range data {
		data[i] = 'x'
	}
	if res := <-fut; res.Err != nil {
		t.Fatal(res.Err)
	}
	if out.N != 42 || out.Text != "keep" {
		t.Fatalf("decoded %+v", out)
	}
}

func TestEncodeAllKeepsInputOrder(t *testing.T) {
	p := NewPool(4, 16, 0)
	defer p.Close()

	vs := make([]any, 10)
	for i := range vs {
		vs[i] = record{N: i}
	}
	encoded, err := p.EncodeAll(vs)
	if err != nil {
		t.Fatal(err)
	}
	for i, data := range encoded {
		var out record
		if err := p.Decode(data, &out); err != nil {
			t.Fatal(err)
		}
		if out.N != i {
			t.Fatalf("slot %d holds %d", i, out.N)
		}
	}
}

func TestEncodeAllReportsFirstFailure(t *testing.T) {
	p := NewPool(2, 8, 0)
	defer p.Close()

	vs := []any{record{N: 1}, make(chan int), record{N: 3}}
	if _, err := p.EncodeAll(vs); err == nil {
		t.Fatal("unencodable value accepted")
	}
}

func TestDecodeAllReportsPerItem(t *testing.T) {
	p := NewPool(2, 8, 0)
	defer p.Close()

	datas := [][]byte{
		[]byte(`{"n":1}`),
		[]byte(`{broken`),
		[]byte(`{"n":3}`),
	}
	outs := make([]record, len(datas))
	errs := p.DecodeAll(datas, func(i int) any { return &outs[i] })
	if errs[0] != nil || errs[2] != nil {
		t.Fatalf("good records failed: %v", errs)
	}
	if errs[1] == nil {
		t.Fatal("broken record decoded")
	}
	if outs[0].N != 1 || outs[2].N != 3 {
		t.Fatalf("decoded %+v", outs)
	}
}

// gatedValue blocks its own serialization until released, pinning a
// worker so queue-full behavior is observable without sleeps.
type gatedValue struct {
	started chan struct{}
	release chan struct{}
}

func (g gatedValue) MarshalJSON() ([]byte, error) {
	close(g.started)
	<-g.release
	return []byte("1"), nil
}

func TestTryMarshalWhenSaturated(t *testing.T) {
	p := NewPool(1, 1, 0)
	defer p.Close()

	release := make(chan struct{})
	running := gatedValue{started: make(chan struct{}), release: release}
	queued := gatedValue{started: make(chan struct{}), release: release}

	futRunning := p.Marshal(context.Background(), running)
	<-running.started
	futQueued := p.Marshal(context.Background(), queued)

	if _, err := p.TryMarshal(record{N: 1}); !errors.Is(err, ErrPoolBusy) {
		t.Fatalf("saturated TryMarshal = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := <-p.Marshal(ctx, record{N: 2}); !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("canceled submit = %v", res.Err)
	}

	close(release)
	if res := <-futRunning; res.Err != nil {
		t.Fatal(res.Err)
	}
	if res := <-futQueued; res.Err != nil {
		t.Fatal(res.Err)
	}
}

func TestCloseDrainsThenRejects(t *testing.T) {
	p := NewPool(2, 64, 0)

	futures := make([]<-chan Result, 0, 40)
	for i := 0; i < 40; i++ {
		futures = append(futures, p.Marshal(context.Background(), record{N: i}))
	}
	p.Close()
	p.Close()

	for i, f := range futures {
		res := <-f
		if res.Err != nil {
			t.Fatalf("queued job %d lost: %v", i, res.Err)
		}
		if want := fmt.Sprintf(`{"n":%d,"text":""}`, i); string(res.Data) != want {
			t.Fatalf("job %d = %s", i, res.Data)
		}
	}

	if res := <-p.Marshal(context.Background(), record{N: 1}); !errors.Is(res.Err, ErrPoolClosed) {
		t.Fatalf("post-close submit = %v", res.Err)
	}
	if _, err := p.Encode(record{N: 1}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("post-close encode = %v", err)
	}
}

func TestStatsCounters(t *testing.T) {
	p := NewPool(1, 8, 0)
	defer p.Close()

	if _, err := p.Encode(record{N: 1}); err != nil {
		t.Fatal(err)
	}
	s := p.Stats()
	if s.Submitted == 0 || s.Capacity != 8 {
		t.Fatalf("stats = %+v", s)
	}
	var nilPool *Pool
	if nilPool.Stats() != (Stats{}) {
		t.Fatal("nil pool stats not zero")
	}
}
