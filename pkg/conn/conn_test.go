package conn

import (
	"context"
	"testing"

	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

type stubConn struct{ closed bool }

func (c *stubConn) ID() string                                         { return "stub" }
func (c *stubConn) Send(_ context.Context, _ *pb.ControlMessage) error { return nil }
func (c *stubConn) RemoteAddr() string                                 { return "127.0.0.1:1" }
func (c *stubConn) Close() error                                       { c.closed = true; return nil }
func (c *stubConn) Closed() bool                                       { return c.closed }

func TestRefResolve(t *testing.T) {
	c := &stubConn{}
	ref := NewRef(c)

	got, ok := ref.Resolve()
	if !ok || got != c {
		t.Fatalf("Resolve() on open conn = (%v, %v)", got, ok)
	}

	_ = c.Close()
	if _, ok := ref.Resolve(); ok {
		t.Fatal("Resolve() on closed conn reported ok")
	}
	if ref.ID() != "stub" {
		t.Fatalf("ID() = %q after close", ref.ID())
	}
}

func TestZeroRef(t *testing.T) {
	var ref Ref
	if _, ok := ref.Resolve(); ok {
		t.Fatal("zero Ref resolved")
	}
	if ref.ID() != "" {
		t.Fatalf("zero Ref ID = %q", ref.ID())
	}
}
