package search

import (
	"context"
	"errors"

	"github.com/orneryd/navpath/pkg/cooldown"
	"github.com/orneryd/navpath/pkg/snapshot"
)

// ErrPoolExhausted is returned by TryAcquire (and by Acquire under a
// cancelled/expired ctx) when no context is free (§7 "resource errors").
var ErrPoolExhausted = errors.New("search: context pool exhausted")

type edgeKind uint8

const (
	edgeNone edgeKind = iota
	edgeMovement
	edgeSpecial
	edgeGlobal
)

// parentStep records how a node was reached, enough to reconstruct both
// the tile path and the typed action for that hop (§4.5).
type parentStep struct {
	from       snapshot.NodeID
	kind       edgeKind
	dir        snapshot.Direction
	specialIdx int // absolute index into graph.SpecialEdges
	globalIdx  int // index into graph.GlobalEdges
	cost       uint32
}

// Context is per-search scratch memory: the g-map, closed-set, parent
// array, and heap storage, plus one FamilyState per configured cooldown
// resource family. Sized to the graph's node count at creation and reused
// across queries via generation counters, so acquiring a context resets
// only the slots touched by the previous search rather than the whole
// array (§4.6).
type Context struct {
	graph *snapshot.Graph

	g      []uint32
	gen    []uint32
	closed []bool
	parent []parentStep
	curGen uint32

	open openQueue

	Surge *cooldown.FamilyState
	Dive  *cooldown.FamilyState

	expansions   uint32
	cancelled    bool
	expansionCap uint32
}

func newContext(g *snapshot.Graph) *Context {
	n := g.N()
	return &Context{
		graph:  g,
		g:      make([]uint32, n),
		gen:    make([]uint32, n),
		closed: make([]bool, n),
		parent: make([]parentStep, n),
		open:   make(openQueue, 0, 256),
		Surge:  cooldown.NewFamilyState(n, cooldown.FamilyConfig{}),
		Dive:   cooldown.NewFamilyState(n, cooldown.FamilyConfig{}),
	}
}

// reset begins a new query. O(1): touched-node state from the prior query
// is invalidated lazily by the bumped generation, not zeroed eagerly.
func (c *Context) reset(expansionCap uint32, surgeCfg, diveCfg cooldown.FamilyConfig) {
	c.curGen++
	c.open = c.open[:0]
	c.expansions = 0
	c.cancelled = false
	c.expansionCap = expansionCap
	c.Surge.Config = surgeCfg
	c.Surge.Reset()
	c.Dive.Config = diveCfg
	c.Dive.Reset()
}

func (c *Context) touched(n snapshot.NodeID) bool {
	return c.gen[n] == c.curGen
}

func (c *Context) gScore(n snapshot.NodeID) (uint32, bool) {
	if !c.touched(n) {
		return 0, false
	}
	return c.g[n], true
}

// setG records an accepted relaxation and reopens the node if it had
// already been expanded, since resource-gated edges (§4.3) may legitimately
// improve a closed node's state and require it to be expanded again.
func (c *Context) setG(n snapshot.NodeID, g uint32, p parentStep) {
	c.gen[n] = c.curGen
	c.g[n] = g
	c.parent[n] = p
	c.closed[n] = false
}

func (c *Context) isClosed(n snapshot.NodeID) bool {
	return c.touched(n) && c.closed[n]
}

func (c *Context) close(n snapshot.NodeID) {
	c.closed[n] = true
}

// Pool hands out fixed-capacity, presized Contexts (§4.6). It is the only
// synchronized resource in the engine: acquire()/release() is a channel
// send/receive, expected to be uncontended under steady-state load because
// pool size matches configured worker concurrency.
type Pool struct {
	graph *snapshot.Graph
	slots chan *Context
}

// NewPool preallocates size contexts, each sized to graph's node count.
func NewPool(graph *snapshot.Graph, size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{graph: graph, slots: make(chan *Context, size)}
	for i := 0; i < size; i++ {
		p.slots <- newContext(graph)
	}
	return p
}

// Acquire blocks until a context is free or ctx is done. A free context is
// always handed out, even when ctx is already done.
func (p *Pool) Acquire(ctx context.Context) (*Context, error) {
	select {
	case c := <-p.slots:
		return c, nil
	default:
	}
	select {
	case c := <-p.slots:
		return c, nil
	case <-ctx.Done():
		return nil, ErrPoolExhausted
	}
}

// TryAcquire fails fast instead of blocking.
func (p *Pool) TryAcquire() (*Context, error) {
	select {
	case c := <-p.slots:
		return c, nil
	default:
		return nil, ErrPoolExhausted
	}
}

// Release returns a context to the pool. The context's internal state is
// left as-is; the next Acquire's reset() call lazily invalidates it.
func (p *Pool) Release(c *Context) {
	p.slots <- c
}

// Size reports the pool's fixed capacity, for /status reporting.
func (p *Pool) Size() int { return cap(p.slots) }

// Available reports how many contexts are currently free.
func (p *Pool) Available() int { return len(p.slots) }
