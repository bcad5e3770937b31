package testutil

// OpKind is the kind of a workload operation.
type OpKind int

const (
	OpAlloc OpKind = iota
	OpRetain
	OpFree
	OpDecRef
	OpCollect
)

func (k OpKind) String() string {
	switch k {
	case OpAlloc:
		return "alloc"
	case OpRetain:
		return "retain"
	case OpFree:
		return "free"
	case OpDecRef:
		return "decref"
	case OpCollect:
		return "collect"
	default:
		return "unknown"
	}
}

// Op is one workload step. Size and Label apply to OpAlloc; Target selects a
// live handle for the other kinds.
type Op struct {
	Kind   OpKind
	Size   int
	Label  string
	Target int
}

// Mix holds relative operation weights.
type Mix struct {
	Alloc   int
	Retain  int
	Free    int
	DecRef  int
	Collect int
}

// DefaultMix favours allocation and free with occasional collections.
var DefaultMix = Mix{Alloc: 40, Retain: 15, Free: 30, DecRef: 10, Collect: 1}

func (m Mix) total() int {
	return m.Alloc + m.Retain + m.Free + m.DecRef + m.Collect
}

// WorkloadLabels are the labels Workload assigns to allocations.
var WorkloadLabels = []string{"string", "array", "hashmap", "buffer", "node"}

// Workload returns n operations drawn from mix. Allocation sizes are uniform
// in [1, maxSize].
func (r *RNG) Workload(n int, mix Mix, maxSize int) []Op {
	total := mix.total()
	if total <= 0 {
		mix, total = DefaultMix, DefaultMix.total()
	}
	if maxSize < 1 {
		maxSize = 1
	}

	ops := make([]Op, n)
	for i := range ops {
		p := r.Intn(total)
		switch {
		case p < mix.Alloc:
			ops[i] = Op{Kind: OpAlloc, Size: r.Size(1, maxSize), Label: r.Label(WorkloadLabels)}
		case p < mix.Alloc+mix.Retain:
			ops[i] = Op{Kind: OpRetain, Target: r.Intn(1 << 30)}
		case p < mix.Alloc+mix.Retain+mix.Free:
			ops[i] = Op{Kind: OpFree, Target: r.Intn(1 << 30)}
		case p < mix.Alloc+mix.Retain+mix.Free+mix.DecRef:
			ops[i] = Op{Kind: OpDecRef, Target: r.Intn(1 << 30)}
		default:
			ops[i] = Op{Kind: OpCollect}
		}
	}
	return ops
}
