// Package main provides the graphcore CLI.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/pkg/errors"

	"github.com/born-ml/graphcore/backend/cpu"
	"github.com/born-ml/graphcore/backend/webgpu"
	"github.com/born-ml/graphcore/engine"
	"github.com/born-ml/graphcore/graph"
	"github.com/born-ml/graphcore/ops"
	"github.com/born-ml/graphcore/optim"
	"github.com/born-ml/graphcore/tensor"
)

const version = "v0.1.0-dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return nil
	}
	switch args[0] {
	case "version":
		fmt.Fprintf(out, "graphcore %s\n", version)
		return nil
	case "demo":
		return demo(args[1:], out)
	case "train":
		return train(args[1:], out)
	default:
		usage(out)
		return errors.Errorf("unknown command %q", args[0])
	}
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "graphcore - tensor dataflow graph execution")
	fmt.Fprintf(out, "Version: %s\n\n", version)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  version    Show version")
	fmt.Fprintln(out, "  demo       Run a broadcast forward pass and print the result")
	fmt.Fprintln(out, "  train      Fit y = a*x + b with SGD and print the loss per epoch")
}

// commonFlags are shared by demo and train.
type commonFlags struct {
	device  *string
	verbose *bool
}

func addCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		device:  fs.String("device", "cpu", "Compute device: cpu, cpu-kernels or webgpu"),
		verbose: fs.Bool("v", false, "Log debug output"),
	}
}

// newEngine builds an engine for the requested device. A WebGPU device that
// cannot be created falls back to the CPU with a warning.
func (c commonFlags) newEngine() *engine.Engine {
	level := slog.LevelWarn
	if *c.verbose {
		level = slog.LevelDebug
	}
	cfg := engine.DefaultConfig()
	cfg.Label = "graphcore"
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	switch *c.device {
	case "cpu-kernels":
		cfg.Mode = engine.ModeGPU
		cfg.Device = cpu.New()
	case "webgpu":
		cfg.Mode = engine.ModeGPU
		gpu, err := webgpu.New()
		if err != nil {
			cfg.Logger.Warn("WebGPU unavailable", "error", err)
		} else {
			cfg.Device = gpu
		}
	default:
		cfg.Mode = engine.ModeCPU
	}
	return engine.New(cfg)
}

func demo(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(out)
	common := addCommon(fs)
	rows := fs.Int("rows", 2, "Rows of the input matrix")
	cols := fs.Int("cols", 3, "Columns of the input matrix")
	share := fs.Bool("share", false, "Share storage between computed tensors")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rows < 1 || *cols < 1 {
		return errors.Errorf("rows and cols must be positive, got %dx%d", *rows, *cols)
	}

	eng := common.newEngine()
	defer eng.Close()

	// out = (x + bias) * scale - x
	g := graph.New(eng, graph.Config{Label: "demo", ShareComputed: *share})
	x := g.Tensor("x", tensor.NewShape(*rows, *cols))
	bias := g.Default("bias", tensor.NewShape(*cols), 1)
	scale := g.Default("scale", tensor.NewShape(*rows, 1), 2)
	shifted, _, _ := g.Operation("shift", []*graph.Symbol{x, bias}, ops.NewBroadcastAdd(eng))
	scaled, _, _ := g.Operation("stretch", []*graph.Symbol{shifted[0], scale}, ops.NewBroadcastMul(eng))
	g.Operation("residual", []*graph.Symbol{scaled[0], x}, ops.NewSub(eng))

	xv := tensor.Zeros(x.Shape())
	for i, data := 0, xv.Data(); i < len(data); i++ {
		data[i] = float32(i)
	}
	if err := g.Bind(x, graph.TensorValue{Store: xv}); err != nil {
		return err
	}

	res := g.Forward(eng.Mode())
	fmt.Fprintln(out, g)
	for _, v := range res {
		if tv, ok := v.(graph.TensorValue); ok {
			fmt.Fprintln(out, tv.Store.Shape(), tv.Store.Nested())
		}
	}
	stats := eng.Resources().Stats()
	fmt.Fprintf(out, "mode=%s managed=%d device_bound=%d\n", eng.Mode(), stats.Managed, stats.DeviceBound)
	return nil
}

func train(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(out)
	common := addCommon(fs)
	epochs := fs.Int("epochs", 100, "Number of training epochs")
	samples := fs.Int("samples", 8, "Number of samples")
	lr := fs.Float64("lr", 0.02, "Learning rate")
	momentum := fs.Float64("momentum", 0.5, "Momentum factor")
	nesterov := fs.Bool("nesterov", false, "Use Nesterov momentum")
	decay := fs.Float64("decay", 0, "Inverse learning rate decay per epoch")
	slope := fs.Float64("a", 3, "Slope of the target line")
	intercept := fs.Float64("b", 2, "Intercept of the target line")
	seed := fs.Uint64("seed", 1, "Random seed for the samples")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *samples < 1 || *epochs < 1 {
		return errors.New("samples and epochs must be positive")
	}

	eng := common.newEngine()
	defer eng.Close()

	fit, err := newLineFit(eng, *samples, float32(*slope), float32(*intercept), rand.New(rand.NewPCG(*seed, *seed)))
	if err != nil {
		return err
	}
	fit.g.SetOptimizer(optim.NewSGD(optim.SGDConfig{
		LR:          float32(*lr),
		Momentum:    float32(*momentum),
		Nesterov:    *nesterov,
		Decay:       float32(*decay),
		DecayMethod: optim.DecayInverse,
	}))

	for epoch := 0; epoch < *epochs; epoch++ {
		loss := fit.step(eng.Mode())
		if epoch%10 == 0 || epoch == *epochs-1 {
			fmt.Fprintf(out, "epoch %4d  loss %.6f  a=%.4f b=%.4f\n", epoch, loss, fit.weight(), fit.bias())
		}
	}
	return nil
}

// lineFit minimizes sum((a*x + b - y)^2) over a and b.
type lineFit struct {
	g            *graph.Graph
	params       []*graph.Symbol
	squaredError *graph.Symbol
}

func newLineFit(eng *engine.Engine, n int, a, b float32, rng *rand.Rand) (*lineFit, error) {
	g := graph.New(eng, graph.Config{Label: "line", Trainable: true})
	shape := tensor.NewShape(n)
	x := g.Tensor("x", shape)
	y := g.Tensor("y", shape)
	pred, _, params := g.Operation("affine", []*graph.Symbol{x}, ops.NewScale(eng, 0, 0))
	diff, _, _ := g.Operation("error", []*graph.Symbol{pred[0], y}, ops.NewSub(eng))
	sq, _, _ := g.Operation("square", []*graph.Symbol{diff[0], diff[0]}, ops.NewMul(eng))

	// gradients flow only through updatable symbols
	g.SetUpdatable(true, params...)
	g.SetUpdatable(true, pred[0], diff[0])

	xv, err := tensor.Random(shape, 0, 1, rng)
	if err != nil {
		return nil, err
	}
	yv := tensor.Zeros(shape)
	for i, v := range xv.Data() {
		yv.Data()[i] = a*v + b
	}
	g.BindData(map[graph.SymbolID]graph.Value{
		x.ID(): graph.TensorValue{Store: xv},
		y.ID(): graph.TensorValue{Store: yv},
	})
	return &lineFit{g: g, params: params, squaredError: sq[0]}, nil
}

// step runs one forward and backward pass and returns the loss of the forward.
func (f *lineFit) step(mode engine.Mode) float32 {
	f.g.Forward(mode)
	var loss float32
	for _, v := range f.squaredError.Store().Data() {
		loss += v
	}
	f.g.Backward(mode)
	return loss
}

func (f *lineFit) weight() float32 { return float32(f.params[0].Value().(graph.ScalarValue)) }
func (f *lineFit) bias() float32   { return float32(f.params[1].Value().(graph.ScalarValue)) }
