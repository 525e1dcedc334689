package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/gomoc/InputParameters"
	"github.com/notargets/gomoc/model_problems/PinCell"
	"github.com/notargets/gomoc/solver"
	"github.com/notargets/gomoc/track"
	"github.com/notargets/gomoc/utils"
)

type SolveOptions struct {
	InputFile   string
	Threads     int
	Profile     string // cpu, mem or empty
	ProfilePath string
	Perf        bool
	MetricsAddr string
	Verbose     bool
}

// SolveCmd represents the solve command
var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Converge the k-eigenvalue of a pin cell",
	Long: `
Builds the pin cell described in the input file, lays down tracks, estimates
the flat source region volumes and iterates the source to convergence. With
no input file the one group homogeneous benchmark is solved,

gomoc solve -I pincell.yaml --threads 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := SolveOptions{
			InputFile:   viper.GetString("solve.inputFile"),
			Threads:     viper.GetInt("solve.threads"),
			Profile:     viper.GetString("solve.profile"),
			ProfilePath: viper.GetString("solve.profilePath"),
			Perf:        viper.GetBool("solve.perf"),
			MetricsAddr: viper.GetString("solve.metricsAddr"),
			Verbose:     viper.GetBool("solve.verbose"),
		}
		return RunSolve(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(SolveCmd)
	SolveCmd.Flags().StringP("inputFile", "I", "", "YAML file describing the solver, tracks, materials and pin cell")
	SolveCmd.Flags().IntP("threads", "t", 0, "worker threads, 0 uses every CPU")
	SolveCmd.Flags().String("profile", "", "write a cpu or mem profile")
	SolveCmd.Flags().String("profilePath", ".", "directory for profile output")
	SolveCmd.Flags().Bool("perf", false, "count CPU instructions over the source iteration (linux)")
	SolveCmd.Flags().String("metricsAddr", "", "serve prometheus metrics on this address while solving, e.g. :9090")
	SolveCmd.Flags().BoolP("verbose", "v", false, "log every source iteration")
	for _, name := range []string{"inputFile", "threads", "profile", "profilePath", "perf", "metricsAddr", "verbose"} {
		if err := viper.BindPFlag("solve."+name, SolveCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})).With("run", uuid.NewString())
}

// loadProblem reads the input file, or the homogeneous benchmark when the
// file name is empty
func loadProblem(opts SolveOptions, out io.Writer) (pc *PinCell.PinCell, ld track.Laydown, cfg solver.Config, err error) {
	if opts.InputFile == "" {
		if pc, err = PinCell.HomogeneousBenchmark(); err != nil {
			return
		}
		ld = track.Laydown{NumAzim: 4, Spacing: 1}
		cfg = solver.DefaultConfig()
	} else {
		var data []byte
		if data, err = os.ReadFile(opts.InputFile); err != nil {
			return
		}
		ip := &InputParameters.InputParameters{}
		if err = ip.Parse(data); err != nil {
			return
		}
		ip.Print(out)
		if pc, err = PinCell.NewPinCell(ip); err != nil {
			return
		}
		if ld, err = ip.Laydown(0); err != nil {
			return
		}
		cfg = ip.SolverConfig()
	}
	if opts.Threads != 0 {
		cfg.NumThreads = opts.Threads
	}
	ld.NumThreads = cfg.NumThreads
	return
}

func RunSolve(opts SolveOptions, out, errOut io.Writer) (err error) {
	var (
		logger = newLogger(errOut, opts.Verbose)
		pc     *PinCell.PinCell
		ld     track.Laydown
		cfg    solver.Config
		prob   *PinCell.Problem
		s      *solver.Solver
	)
	if pc, ld, cfg, err = loadProblem(opts, out); err != nil {
		return
	}
	switch opts.Profile {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(opts.ProfilePath), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(opts.ProfilePath), profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile %q, use cpu or mem", opts.Profile)
	}
	pc.Logger, cfg.Logger = logger, logger
	if prob, err = pc.Build(ld); err != nil {
		return
	}

	var server *http.Server
	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if cfg.Metrics, err = solver.NewMetrics("", reg); err != nil {
			return
		}
		server = &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	if s, err = prob.NewSolver(cfg); err != nil {
		return
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	if server != nil {
		g.Go(func() error {
			logger.Info("serving metrics", "addr", server.Addr)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	var (
		res   *solver.Result
		start = time.Now()
	)
	g.Go(func() (err error) {
		if server != nil {
			defer server.Shutdown(context.Background())
		}
		converge := func() (err error) {
			res, err = s.Converge(gctx)
			return
		}
		if !opts.Perf {
			return converge()
		}
		count, ok, err := countInstructions(converge)
		if ok {
			logger.Info("hardware counters", "instructions", count)
		} else {
			logger.Warn("hardware instruction counter unavailable")
		}
		return err
	})
	err = g.Wait()
	if res != nil {
		printResult(out, s, res, time.Since(start))
	}
	return
}

func printResult(w io.Writer, s *solver.Solver, res *solver.Result, elapsed time.Duration) {
	fmt.Fprintf(w, "%s\n", res)
	fmt.Fprintf(w, "elapsed = %v, leakage = %.6e\n", elapsed, s.Leakage())
	fmt.Fprintf(w, "%8s %14s", "region", "volume")
	for g := 0; g < s.NumGroups; g++ {
		fmt.Fprintf(w, " %14s", fmt.Sprintf("phi[%d]", g))
	}
	fmt.Fprintln(w)
	for r := 0; r < s.NumRegions; r++ {
		fmt.Fprintf(w, "%8d %14.6e", r, s.RegionVolume(r))
		for g := 0; g < s.NumGroups; g++ {
			fmt.Fprintf(w, " %14.6e", s.ScalarFlux(r, g))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, utils.GetMemUsage())
}
