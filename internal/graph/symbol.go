package graph

import (
	"fmt"
	"slices"
	"sync"

	"github.com/born-ml/graphcore/internal/tensor"
)

// SymbolID identifies a symbol within its graph. It indexes the graph's arena.
type SymbolID int

// InvalidSymbolID is never assigned to a symbol.
const InvalidSymbolID SymbolID = -1

// Kind is the type tag of a symbol.
type Kind int

// Symbol kinds.
const (
	KindTensor Kind = iota
	KindScalar
	KindOperator
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTensor:
		return "tensor"
	case KindScalar:
		return "scalar"
	case KindOperator:
		return "operator"
	default:
		return "unknown"
	}
}

// DataSource records where a data symbol's value comes from.
type DataSource int

// Data sources.
const (
	SourceUser      DataSource = iota // fed by the caller
	SourceComputed                    // written by an operator
	SourceParameter                   // operator parameter, allocated by the graph
	SourceDefault                     // allocated by the graph with its init value
)

// String returns the data source name.
func (s DataSource) String() string {
	switch s {
	case SourceUser:
		return "user"
	case SourceComputed:
		return "computed"
	case SourceParameter:
		return "parameter"
	case SourceDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Symbol is a node of a Graph: a tensor, a scalar or an operator.
//
// Symbols are owned by their graph and refer to each other by SymbolID.
type Symbol struct {
	id    SymbolID
	label string
	kind  Kind

	inbound  []SymbolID
	outbound []SymbolID

	// data symbols
	source    DataSource
	shape     tensor.Shape
	value     Value
	updatable bool
	grad      Value
	init      float32

	// operator symbols
	op     Operator
	inputs []SymbolID // declared inputs, in order, duplicates allowed
	params []SymbolID

	// serializes gradient and value updates during backward
	mu sync.Mutex
}

// ID returns the symbol id.
func (s *Symbol) ID() SymbolID { return s.id }

// Label returns the symbol label.
func (s *Symbol) Label() string { return s.label }

// Kind returns the symbol kind.
func (s *Symbol) Kind() Kind { return s.kind }

// IsData reports whether the symbol is a tensor or a scalar.
func (s *Symbol) IsData() bool { return s.kind != KindOperator }

// Source returns the data source of a data symbol.
func (s *Symbol) Source() DataSource { return s.source }

// Shape returns the declared shape of a data symbol. Scalars have rank 0.
func (s *Symbol) Shape() tensor.Shape { return s.shape }

// Value returns the bound value, or nil.
func (s *Symbol) Value() Value { return s.value }

// SetValue replaces the bound value without validation. Optimizers use it to
// write back updated scalars; callers coordinate access themselves.
func (s *Symbol) SetValue(v Value) { s.value = v }

// Store returns the bound tensor storage, or nil if the symbol holds no tensor.
func (s *Symbol) Store() *tensor.Store {
	if tv, ok := s.value.(TensorValue); ok {
		return tv.Store
	}
	return nil
}

// Updatable reports whether backward passes update the symbol.
func (s *Symbol) Updatable() bool { return s.updatable }

// Grad returns the gradient slot, nil until the first backward pass or for
// symbols that are not updatable.
func (s *Symbol) Grad() Value { return s.grad }

// Operator returns the operator of an operator symbol.
func (s *Symbol) Operator() Operator { return s.op }

// Inputs returns the declared input ids of an operator symbol.
func (s *Symbol) Inputs() []SymbolID { return slices.Clone(s.inputs) }

// Params returns the parameter ids created for an operator symbol.
func (s *Symbol) Params() []SymbolID { return slices.Clone(s.params) }

// Inbound returns the ids of symbols with an edge into s.
func (s *Symbol) Inbound() []SymbolID { return slices.Clone(s.inbound) }

// Outbound returns the ids of symbols s has an edge to.
func (s *Symbol) Outbound() []SymbolID { return slices.Clone(s.outbound) }

// String returns label#id.
func (s *Symbol) String() string {
	return fmt.Sprintf("%s#%d", s.label, s.id)
}

// addInbound and addOutbound ignore relations that already exist.
func (s *Symbol) addInbound(id SymbolID) {
	if !slices.Contains(s.inbound, id) {
		s.inbound = append(s.inbound, id)
	}
}

func (s *Symbol) addOutbound(id SymbolID) {
	if !slices.Contains(s.outbound, id) {
		s.outbound = append(s.outbound, id)
	}
}
