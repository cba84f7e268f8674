// Package optim implements optimizers that plug into the graph scheduler.
//
// An optimizer satisfies graph.Optimizer: Backward calls Prepare once per
// pass and then UpdateParameter for every gradient contribution that reaches
// an updatable symbol.
//
// Example usage:
//
//	opt := optim.NewSGD(optim.SGDConfig{LR: 0.05, Momentum: 0.9})
//	g.SetOptimizer(opt)
//
//	for range epochs {
//	    g.Forward(engine.ModeAuto)
//	    g.Backward(engine.ModeAuto)
//	}
package optim

import (
	"fmt"
	"math"
)

// DecayMethod selects how the learning rate shrinks with the graph epoch.
type DecayMethod int

const (
	// DecayStep subtracts decay*epoch from the initial rate, never going below zero.
	DecayStep DecayMethod = iota
	// DecayExponential multiplies the initial rate by e^(-decay*epoch).
	DecayExponential
	// DecayInverse divides the initial rate by 1 + decay*epoch.
	DecayInverse
)

// String returns the method name.
func (m DecayMethod) String() string {
	switch m {
	case DecayStep:
		return "step"
	case DecayExponential:
		return "exponential"
	case DecayInverse:
		return "inverse"
	default:
		return fmt.Sprintf("DecayMethod(%d)", int(m))
	}
}

// Rate returns the learning rate for epoch given the initial rate lr0.
func (m DecayMethod) Rate(lr0, decay float32, epoch int) float32 {
	t := float64(epoch)
	switch m {
	case DecayExponential:
		return float32(float64(lr0) * math.Exp(-float64(decay)*t))
	case DecayInverse:
		return float32(float64(lr0) / (1 + float64(decay)*t))
	default:
		return max(lr0-decay*float32(t), 0)
	}
}
