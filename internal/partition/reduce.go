package partition

import "strconv"

// Binding is one named intermediate result.
type Binding struct {
	Name string
	Expr string
	Kind StepKind
}

// accumulator is the fold state: bindings so far and the per-kind counters.
type accumulator struct {
	bindings []Binding
	counters map[StepKind]int
	used     map[string]bool
}

// last returns the name of the most recent binding, or "" when empty.
func (a accumulator) last() string {
	if len(a.bindings) == 0 {
		return ""
	}
	return a.bindings[len(a.bindings)-1].Name
}

// reduce appends the binding produced by step. a is left unchanged.
func reduce(a accumulator, step Step) accumulator {
	kind := step.Kind()

	counters := make(map[StepKind]int, len(a.counters)+1)
	for k, v := range a.counters {
		counters[k] = v
	}
	counters[kind]++

	used := make(map[string]bool, len(a.used)+1)
	for k := range a.used {
		used[k] = true
	}

	name := step.name(counters[kind])
	if used[name] {
		base := name
		for n := 2; used[name]; n++ {
			name = base + "_" + itoa(n)
		}
	}
	used[name] = true

	bindings := make([]Binding, len(a.bindings), len(a.bindings)+1)
	copy(bindings, a.bindings)
	bindings = append(bindings, Binding{Name: name, Expr: step.expr(a.last()), Kind: kind})

	return accumulator{bindings: bindings, counters: counters, used: used}
}

// fold reduces steps from an empty accumulator.
func fold(steps []Step) accumulator {
	var a accumulator
	for _, s := range steps {
		a = reduce(a, s)
	}
	return a
}

func itoa(n int) string { return strconv.Itoa(n) }
