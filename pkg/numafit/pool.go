// Package numafit distributes per-dimension model-fitting work across
// detected NUMA nodes, adapted from the CPU-ratio
// worker-count heuristics (pkg/framework/coordinator.go,
// pkg/budget/solver.go) from a single flat worker pool sized off
// runtime.NumCPU to one pool per NUMA node, each pinned to its node's
// CPUs.
package numafit

import "sync"

// Pool owns one worker pool per detected NUMA node. Single-node systems
// degrade to a single pool, identical in behavior to a non-NUMA build. The
// pool is owned by its creator (the model extractor) and must be shut down
// once the work it was created for is done.
type Pool struct {
	nodes     []*nodePool
	nodeCount int
}

// NewPool builds a Pool with node-count detected from the host topology
// and parallelism/nodeCount workers per node (minimum 1).
func NewPool(parallelism int) *Pool {
	nodeCount := detectNodeCount()
	if nodeCount < 1 {
		nodeCount = 1
	}

	perNode := parallelism / nodeCount
	if perNode < 1 {
		perNode = 1
	}

	nodes := make([]*nodePool, nodeCount)
	for i := range nodes {
		nodes[i] = newNodePool(perNode, i)
	}

	return &Pool{nodes: nodes, nodeCount: nodeCount}
}

// NodeCount returns the number of NUMA nodes this pool detected.
func (p *Pool) NodeCount() int { return p.nodeCount }

// Partition splits [0, dimCount) into NodeCount contiguous ranges of size
// ceil(dimCount/NodeCount), so each node processes only its assigned
// dimensions.
func (p *Pool) Partition(dimCount int) [][]int {
	size := (dimCount + p.nodeCount - 1) / p.nodeCount

	parts := make([][]int, p.nodeCount)

	for n := 0; n < p.nodeCount; n++ {
		start := n * size
		if start >= dimCount {
			continue
		}

		end := start + size
		if end > dimCount {
			end = dimCount
		}

		dims := make([]int, 0, end-start)
		for d := start; d < end; d++ {
			dims = append(dims, d)
		}

		parts[n] = dims
	}

	return parts
}

// Run partitions [0, dimCount) across nodes and calls fn once per
// dimension on the worker pool owned by that dimension's node, blocking
// until every call returns. The returned slice is indexed by dimension.
func (p *Pool) Run(dimCount int, fn func(dim int) error) []error {
	return p.RunWithNode(dimCount, func(dim, _ int) error { return fn(dim) })
}

// RunWithNode is Run plus the owning node index, for callers that want to
// attribute per-dimension work (e.g. fit duration) to the NUMA node it ran
// on.
func (p *Pool) RunWithNode(dimCount int, fn func(dim, node int) error) []error {
	errs := make([]error, dimCount)
	parts := p.Partition(dimCount)

	var wg sync.WaitGroup

	for n, dims := range parts {
		for _, d := range dims {
			wg.Add(1)

			node, dim := p.nodes[n], d
			nodeIdx := n

			node.submit(func() {
				defer wg.Done()

				errs[dim] = fn(dim, nodeIdx)
			})
		}
	}

	wg.Wait()

	return errs
}

// Shutdown tears down every node's worker pool. Safe to call once; the
// pool must not be reused afterward.
func (p *Pool) Shutdown() {
	for _, n := range p.nodes {
		n.shutdown()
	}
}

type nodePool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

func newNodePool(workers, nodeIdx int) *nodePool {
	p := &nodePool{tasks: make(chan func(), workers*2)}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)

		go func() {
			defer p.wg.Done()

			pinToNode(nodeIdx)

			for fn := range p.tasks {
				fn()
			}
		}()
	}

	return p
}

func (p *nodePool) submit(fn func()) { p.tasks <- fn }

func (p *nodePool) shutdown() {
	close(p.tasks)
	p.wg.Wait()
}
