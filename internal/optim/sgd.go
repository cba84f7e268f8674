package optim

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/internal/graph"
	"github.com/born-ml/graphcore/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum and
// Nesterov acceleration.
//
// Update rule, with v kept per symbol and starting at zero:
//
//	v = momentum * v - lr * grad
//	param = param + v                          // plain
//	param = param + momentum * v - lr * grad   // nesterov
//
// With Momentum 0 both reduce to param -= lr * grad. The learning rate is
// recomputed from the graph epoch in Prepare.
type SGD struct {
	cfg    SGDConfig
	lr     float32
	logger *slog.Logger

	mu         sync.Mutex
	velocities map[graph.SymbolID][]float32
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	LR          float32     // Initial learning rate (default: 0.01)
	Momentum    float32     // Momentum factor (default: 0.0, range: [0, 1))
	Nesterov    bool        // Use Nesterov momentum
	Decay       float32     // Learning rate decay per epoch (default: 0.0)
	DecayMethod DecayMethod // How Decay applies (default: DecayStep)
}

// DefaultSGDConfig returns plain SGD with learning rate 0.01.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{LR: 0.01}
}

// NewSGD creates a new SGD optimizer.
func NewSGD(cfg SGDConfig) *SGD {
	if cfg.LR == 0 {
		cfg.LR = 0.01
	}
	return &SGD{
		cfg:        cfg,
		lr:         cfg.LR,
		logger:     slog.Default(),
		velocities: make(map[graph.SymbolID][]float32),
	}
}

// Prepare sets the learning rate for the coming backward pass.
func (s *SGD) Prepare(g *graph.Graph) {
	s.lr = s.cfg.DecayMethod.Rate(s.cfg.LR, s.cfg.Decay, g.Epoch())
	s.logger = g.Engine().Logger()
	s.logger.Debug("sgd prepared", "graph", g.Label(), "epoch", g.Epoch(),
		"lr", s.lr, "decay", s.cfg.DecayMethod.String())
}

// UpdateParameter applies grad to the symbol's bound value.
func (s *SGD) UpdateParameter(sym *graph.Symbol, grad graph.Value) {
	switch v := sym.Value().(type) {
	case graph.ScalarValue:
		g, ok := grad.(graph.ScalarValue)
		if !ok {
			panic(errors.Errorf("sgd: scalar %s got a %T gradient", sym, grad))
		}
		value := []float32{float32(v)}
		s.step(sym.ID(), value, []float32{float32(g)})
		sym.SetValue(graph.ScalarValue(value[0]))
	case graph.TensorValue:
		g, ok := grad.(graph.TensorValue)
		if !ok {
			panic(errors.Errorf("sgd: tensor %s got a %T gradient", sym, grad))
		}
		if g.Store.NumElements() != v.Store.NumElements() {
			panic(errors.Errorf("sgd: gradient %s does not match %s of %s", g.Shape(), v.Shape(), sym))
		}
		s.step(sym.ID(), v.Store.Data(), g.Store.Data())
	default:
		s.logger.Warn("sgd: skipping symbol without a value", "symbol", sym.String())
	}
}

func (s *SGD) step(id graph.SymbolID, value, grad []float32) {
	lr, mom := s.lr, s.cfg.Momentum
	if mom == 0 {
		for i, g := range grad {
			value[i] -= lr * g
		}
		return
	}

	vel := s.velocity(id, len(value))
	for i, g := range grad {
		vel[i] = mom*vel[i] - lr*g
		if s.cfg.Nesterov {
			value[i] += mom*vel[i] - lr*g
		} else {
			value[i] += vel[i]
		}
	}
}

// velocity returns the symbol's velocity buffer, creating it zeroed.
func (s *SGD) velocity(id graph.SymbolID, n int) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.velocities[id]
	if !ok || len(v) != n {
		v = make([]float32, n)
		s.velocities[id] = v
	}
	return v
}

// LR returns the learning rate of the current pass.
func (s *SGD) LR() float32 {
	return s.lr
}

// InitialLR returns the configured learning rate before decay.
func (s *SGD) InitialLR() float32 {
	return s.cfg.LR
}

// StateDict returns a copy of the velocity buffers keyed by symbol id.
// Without momentum it is empty.
func (s *SGD) StateDict() map[graph.SymbolID]*tensor.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[graph.SymbolID]*tensor.Store, len(s.velocities))
	for id, v := range s.velocities {
		st, err := tensor.FromSlice(append([]float32(nil), v...), tensor.NewShape(len(v)))
		if err != nil {
			continue
		}
		out[id] = st
	}
	return out
}

// LoadStateDict replaces the velocity buffers. Every entry must be a vector;
// one whose length does not match its symbol restarts from zero.
func (s *SGD) LoadStateDict(state map[graph.SymbolID]*tensor.Store) error {
	loaded := make(map[graph.SymbolID][]float32, len(state))
	for id, st := range state {
		if st.Shape().Rank() != 1 {
			return errors.Errorf("sgd: velocity for symbol %d has shape %s, want a vector", id, st.Shape())
		}
		loaded[id] = st.Floats()
	}
	s.mu.Lock()
	s.velocities = loaded
	s.mu.Unlock()
	return nil
}
