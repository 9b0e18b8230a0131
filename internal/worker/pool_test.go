package worker

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/gridguard/leop/internal/pipeline"
)

type fakeSubmitter struct{}

func (fakeSubmitter) Submit(pipeline.PlanRequest) error { return nil }

func TestAddPicksLeastLoadedWorkerTieBrokenByIndex(t *testing.T) {
	p := NewPool(2, 2, time.Minute, nil, nil)
	defer p.Shutdown()

	conns := make([]net.Conn, 0, 4)
	for i := 0; i < 4; i++ {
		server, client := net.Pipe()
		conns = append(conns, client)
		go io.Copy(io.Discard, client) // read the banner Add writes
		if err := p.Add(server, fakeSubmitter{}, nil); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	if p.workers[0].Count() != 2 || p.workers[1].Count() != 2 {
		t.Fatalf("want even 2/2 split, got %d/%d", p.workers[0].Count(), p.workers[1].Count())
	}
}

func TestAddRejectsWhenPoolFull(t *testing.T) {
	p := NewPool(2, 1, time.Minute, nil, nil)
	defer p.Shutdown()

	var conns []net.Conn
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	for i := 0; i < p.Capacity(); i++ {
		server, client := net.Pipe()
		conns = append(conns, client)
		go io.Copy(io.Discard, client) // read the banner Add writes
		if err := p.Add(server, fakeSubmitter{}, nil); err != nil {
			t.Fatalf("add %d: want success within capacity, got %v", i, err)
		}
	}

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	if err := p.Add(server, fakeSubmitter{}, nil); err != ErrPoolFull {
		t.Fatalf("want ErrPoolFull once capacity exhausted, got %v", err)
	}
}

func TestShutdownClosesAllConnections(t *testing.T) {
	p := NewPool(1, 2, time.Minute, nil, nil)

	server, client := net.Pipe()
	defer client.Close()
	clientClosed := make(chan struct{})
	go func() {
		// Reads the banner, then returns once the server side is closed.
		io.Copy(io.Discard, client)
		close(clientClosed)
	}()
	if err := p.Add(server, fakeSubmitter{}, nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return")
	}

	select {
	case <-clientClosed:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not close the connection")
	}
}
