package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	mbpol "github.com/mqaisran/mbpol-openmm-plugin"
	"github.com/mqaisran/mbpol-openmm-plugin/damping"
	"github.com/mqaisran/mbpol-openmm-plugin/io"
	"github.com/mqaisran/mbpol-openmm-plugin/metrics"
	"github.com/mqaisran/mbpol-openmm-plugin/plot"
	"github.com/mqaisran/mbpol-openmm-plugin/units"
)

var (
	verbose bool
	runID   string
	logger  *zap.Logger

	// Run flags. Anything set here overrides the config file.
	configFile, systemFile, format, energyUnit string
	epsilon                                    float64
	maxIterations, workers                     int
	forces, requireConverged, exact            bool
	plotFile, metricsFile                      string

	// Kernel flags.
	dampI, dampJ, tholeI, tholeJ, separation float64
	justScale                                bool
)

var rootCmd = &cobra.Command{
	Use:   "mbpol",
	Short: "Damped multipole electrostatics with self-consistent induced dipoles",
	Long: `mbpol evaluates the electrostatic energy of a set of polarizable
multipole sites: the damped permanent field, the induced dipoles which are
consistent with it, and the resulting energy.

Runs are described by a gcfg configuration file; see example-config.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		runID = uuid.NewString()
		var err error
		logger, err = newLogger("")
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil { _ = logger.Sync() }
	},
}

var energyCmd = &cobra.Command{
	Use:   "energy",
	Short: "Solve for the induced dipoles and print the energy terms",
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, wrap, err := run(cmd)
		if err != nil { return err }

		e, _ := units.ParseEnergy(wrap.Output.EnergyUnit)
		l, _ := units.ParseLength(wrap.System.LengthUnit)
		f, _ := io.ParseFormat(wrap.Output.Format)
		return io.WriteEnergy(os.Stdout, io.NewEnergyReport(runID, ev, e, l), f)
	},
}

var dipolesCmd = &cobra.Command{
	Use:   "dipoles",
	Short: "Solve for the induced dipoles and print them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, wrap, err := run(cmd)
		if err != nil { return err }

		l, _ := units.ParseLength(wrap.System.LengthUnit)
		f, _ := io.ParseFormat(wrap.Output.Format)
		return io.WriteDipoles(os.Stdout, io.NewDipoleReport(runID, ev.Result, l), f)
	},
}

var kernelCmd = &cobra.Command{
	Use:   "kernel",
	Short: "Print the damped inverse distance factors of one pair",
	Long: `Prints R1, R3, R5, R7 and R9 (or, with --just-scale, the damping
scales s0..s4) for a pair with the given damping factors and Thole
parameters at separation --r. All values are in nm.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !(separation > 0) {
			return fmt.Errorf("--r must be positive, but is %g", separation)
		}
		f, err := io.ParseFormat(format)
		if err != nil { return err }

		damp, rr := damping.InverseDistances(
			dampI, dampJ, tholeI, tholeJ, separation, justScale,
		)
		r := &io.KernelReport{Damp: damp, JustScale: justScale, Values: rr.Scales()}
		return io.WriteKernel(os.Stdout, r, f)
	},
}

var exampleConfigCmd = &cobra.Command{
	Use:   "example-config",
	Short: "Print an example configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Println(io.ExampleConfigFile)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every SCF iteration.")

	for _, cmd := range []*cobra.Command{energyCmd, dipolesCmd} {
		fs := cmd.Flags()
		fs.StringVarP(&configFile, "config", "c", "", "gcfg run file.")
		fs.StringVarP(&systemFile, "system", "s", "", "System file; overrides [System] File.")
		fs.StringVar(&format, "format", "", "Output format, table or yaml.")
		fs.StringVar(&energyUnit, "energy-unit", "", "Output energy unit: e2/nm, kJ/mol or kcal/mol.")
		fs.Float64Var(&epsilon, "epsilon", mbpol.DefaultEpsilon, "RMS dipole change at convergence.")
		fs.IntVar(&maxIterations, "max-iterations", mbpol.DefaultMaxIterations, "Iteration cap.")
		fs.IntVar(&workers, "workers", 0, "Worker goroutines; 0 means one per CPU.")
		fs.BoolVar(&forces, "forces", false, "Also compute numerical forces.")
		fs.BoolVar(&requireConverged, "require-converged", false, "Fail if the dipoles do not converge.")
		fs.BoolVar(&exact, "exact", false, "Solve the dipoles by LU factorization.")
		fs.StringVar(&plotFile, "plot", "", "Write a convergence plot to this file.")
		fs.StringVar(&metricsFile, "metrics", "", "Write Prometheus metrics to this file.")
	}

	fs := kernelCmd.Flags()
	fs.Float64Var(&dampI, "damp-i", 0, "Damping factor of the first particle.")
	fs.Float64Var(&dampJ, "damp-j", 0, "Damping factor of the second particle.")
	fs.Float64Var(&tholeI, "thole-i", 0.4, "Thole parameter of the first particle.")
	fs.Float64Var(&tholeJ, "thole-j", 0.4, "Thole parameter of the second particle.")
	fs.Float64Var(&separation, "r", 0, "Separation.")
	fs.BoolVar(&justScale, "just-scale", false, "Print the damping scales instead.")
	fs.StringVar(&format, "format", "table", "Output format, table or yaml.")

	rootCmd.AddCommand(energyCmd, dipolesCmd, kernelCmd, exampleConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil { os.Exit(1) }
}

// newLogger builds the production logger, writing to logFile as well as
// stderr if it is set.
func newLogger(logFile string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose { config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel) }
	if logFile != "" {
		config.OutputPaths = append(config.OutputPaths, logFile)
	}

	l, err := config.Build()
	if err != nil { return nil, fmt.Errorf("failed to initialize logger: %w", err) }
	return l.With(zap.String("run_id", runID)), nil
}

// loadConfig reads the run file, if any, and applies the flags which were
// set explicitly.
func loadConfig(cmd *cobra.Command) (*io.ConfigWrapper, error) {
	wrap := io.DefaultConfigWrapper()
	if configFile != "" {
		var err error
		wrap, err = io.ReadConfig(configFile)
		if err != nil { return nil, err }
	}

	fs := cmd.Flags()
	if fs.Changed("system") {
		wrap.System.File = systemFile
		wrap.System.Format = ""
	}
	if fs.Changed("format") { wrap.Output.Format = format }
	if fs.Changed("energy-unit") { wrap.Output.EnergyUnit = energyUnit }
	if fs.Changed("epsilon") { wrap.Solver.Epsilon = epsilon }
	if fs.Changed("max-iterations") { wrap.Solver.MaxIterations = maxIterations }
	if fs.Changed("workers") { wrap.Solver.Workers = workers }
	if fs.Changed("forces") { wrap.Output.Forces = forces }
	if fs.Changed("require-converged") { wrap.Solver.RequireConverged = requireConverged }
	if fs.Changed("exact") { wrap.Solver.Exact = exact }
	if fs.Changed("plot") { wrap.Output.PlotFile = plotFile }
	if fs.Changed("metrics") { wrap.Output.MetricsFile = metricsFile }

	if err := wrap.Validate(); err != nil { return nil, err }
	return wrap, nil
}

// FileGroup holds the optional profiling output of a run.
type FileGroup struct {
	prof *os.File
}

func (fg *FileGroup) Close() {
	if fg.prof != nil {
		pprof.StopCPUProfile()
		if err := fg.prof.Close(); err != nil {
			logger.Error("could not close profile", zap.Error(err))
		}
	}
}

func startProfile(con *io.OutputConfig) (*FileGroup, error) {
	fg := &FileGroup{}
	if !con.ValidProfileFile() { return fg, nil }

	f, err := os.Create(con.ProfileFile)
	if err != nil { return nil, err }
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, err
	}
	fg.prof = f
	return fg, nil
}

// run evaluates the configured system and writes the plot and metrics
// files it asks for.
func run(cmd *cobra.Command) (*mbpol.Evaluation, *io.ConfigWrapper, error) {
	wrap, err := loadConfig(cmd)
	if err != nil { return nil, nil, err }

	if wrap.Output.ValidLogFile() {
		l, err := newLogger(wrap.Output.LogFile)
		if err != nil { return nil, nil, err }
		_ = logger.Sync()
		logger = l
	}

	fg, err := startProfile(&wrap.Output)
	if err != nil { return nil, nil, err }
	defer fg.Close()

	sys, err := io.LoadSystem(wrap)
	if err != nil { return nil, nil, err }
	logger.Info("loaded system",
		zap.String("file", wrap.System.File),
		zap.Int("particles", sys.Len()),
		zap.Int("excluded_pairs", sys.Exclusions.Len()),
	)

	opts := []mbpol.SolverOption{mbpol.WithLogger(logger)}
	var sm *metrics.SolveMetrics
	if wrap.Output.ValidMetricsFile() {
		sm = metrics.NewSolveMetrics(prometheus.Labels{"run_id": runID})
		opts = append(opts, mbpol.WithObserver(sm))
	}
	solver, err := mbpol.NewSolver(wrap.SolverConfig(), opts...)
	if err != nil { return nil, nil, err }

	var evOpts []mbpol.EvaluatorOption
	if wrap.Solver.RequireConverged {
		evOpts = append(evOpts, mbpol.RequireConverged())
	}
	if wrap.Solver.Exact { evOpts = append(evOpts, mbpol.ExactSolve()) }
	if wrap.Output.Forces {
		l, _ := units.ParseLength(wrap.System.LengthUnit)
		evOpts = append(evOpts, mbpol.WithForces(wrap.Output.ForceStep*l.NM()))
	}

	ev, err := mbpol.NewEvaluator(solver, evOpts...).Evaluate(sys)
	if err != nil { return nil, nil, err }

	if wrap.Output.ValidPlotFile() && !wrap.Solver.Exact {
		err = plot.Convergence(
			wrap.Output.PlotFile, wrap.System.File,
			ev.Result.History, wrap.Solver.Epsilon,
		)
		if err != nil { return nil, nil, err }
		plot.Execute()
	}

	if sm != nil {
		if err := sm.WriteTextfile(wrap.Output.MetricsFile); err != nil {
			return nil, nil, err
		}
	}
	return ev, wrap, nil
}
