package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/stabl-solver/stabl/internal/setaf"
	"github.com/stabl-solver/stabl/internal/signals"
	"github.com/stabl-solver/stabl/internal/simplefmt"
)

// Exit codes of the solver binary.
const (
	exitCodeArguments  = 1
	exitCodeSignals    = 2
	exitCodeParsing    = 4
	exitCodeTimeout    = 9
	exitCodeUnexpected = 20
)

// usageError marks problems with the command line arguments.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, a ...any) error {
	return &usageError{fmt.Sprintf(format, a...)}
}

var (
	startTime        time.Time
	firstModelTime   time.Time
	modelCount       uint64
	percentageSolved float64
)

type config struct {
	instancePath    string
	descriptionPath string
	requiredPath    string
	proofPath       string
	heuristics      setaf.Heuristics
	maxModels       uint64
	forgetFraction  float64
	growthRate      float64
	quiet           bool
}

func flags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "instance, i",
			Usage: "path to the instance file (required)",
		},
		cli.StringFlag{
			Name:  "description, d",
			Usage: "path to a description file with argument names",
		},
		cli.StringFlag{
			Name:  "required, r",
			Usage: "path to a file with required argument assignments",
		},
		cli.StringFlag{
			Name:  "semantics, s",
			Usage: "semantics to enumerate",
			Value: "Stable",
		},
		cli.Uint64Flag{
			Name:  "models, n",
			Usage: "number of models to enumerate (0 = all)",
		},
		cli.UintFlag{
			Name:  "timeout, t",
			Usage: "timeout in seconds",
		},
		cli.Float64Flag{
			Name:  "forget, p",
			Usage: "fraction of learned clauses dropped per forget cycle",
			Value: 0.5,
		},
		cli.Float64Flag{
			Name:  "growth, g",
			Usage: "growth rate of the clause forget threshold",
			Value: 2,
		},
		cli.BoolFlag{
			Name:  "quiet, q",
			Usage: "do not print models",
		},
		cli.StringFlag{
			Name:  "heuristics, h",
			Usage: "branching heuristics: None|MaxOutDegree|MinInDegree|PathLength<k>|PathLengthModified<k>",
			Value: "None",
		},
		cli.StringFlag{
			Name:  "proof, c",
			Usage: "path of the proof file to write (must not exist)",
		},
	}
}

func parseConfig(c *cli.Context) (*config, error) {
	cfg := &config{
		instancePath:    c.String("instance"),
		descriptionPath: c.String("description"),
		requiredPath:    c.String("required"),
		proofPath:       c.String("proof"),
		maxModels:       c.Uint64("models"),
		forgetFraction:  c.Float64("forget"),
		growthRate:      c.Float64("growth"),
		quiet:           c.Bool("quiet"),
	}

	if cfg.instancePath == "" {
		return nil, usageErrorf("no instance was provided")
	}
	for _, path := range []string{cfg.instancePath, cfg.descriptionPath, cfg.requiredPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return nil, usageErrorf("the supplied file %s does not exist", path)
		}
	}

	if s := c.String("semantics"); s != "Stable" {
		return nil, usageErrorf("the supplied semantics %q is not valid", s)
	}

	h, err := setaf.ParseHeuristics(c.String("heuristics"))
	if err != nil {
		return nil, usageErrorf("unknown heuristics: %s", c.String("heuristics"))
	}
	cfg.heuristics = h

	if cfg.forgetFraction < 0 || cfg.forgetFraction > 1 {
		return nil, usageErrorf("the supplied clause forget fraction is invalid")
	}
	if cfg.growthRate < 0 {
		return nil, usageErrorf("the supplied clause forget growth rate is invalid")
	}

	if t := c.Uint("timeout"); t > 0 {
		signals.StartTimeout(time.Duration(t) * time.Second)
	}

	return cfg, nil
}

func run(cfg *config) error {
	inst, err := simplefmt.Parse(cfg.instancePath, cfg.descriptionPath, cfg.requiredPath)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"arguments": inst.NumArguments(),
		"attacks":   inst.NumAttacks(),
	}).Info("parsed instance")

	opts := setaf.Options{
		Heuristics:       cfg.heuristics,
		MaxModels:        cfg.maxModels,
		PrintModels:      !cfg.quiet,
		ForgetFraction:   cfg.forgetFraction,
		ForgetGrowthRate: cfg.growthRate,
	}

	var proof *setaf.ProofWriter
	if cfg.proofPath != "" {
		proof, err = setaf.NewProofWriter(cfg.proofPath)
		if err != nil {
			return usageErrorf("failed to open proof file: %s", err)
		}
		opts.Proof = proof
	}

	solver := setaf.NewSolver(inst, opts)
	solver.Solve()

	modelCount = solver.ModelCount
	percentageSolved = solver.PercentageSolved
	firstModelTime = solver.FirstModelTime

	logrus.WithFields(logrus.Fields{
		"decisions": solver.Stats.Decisions,
		"conflicts": solver.Stats.Conflicts,
	}).Info("search finished")

	if proof != nil {
		if err := proof.Close(); err != nil {
			return errors.Wrap(err, "failed to write proof file")
		}
		// The proof certifies the absence of models; it is meaningless as
		// soon as one was found.
		if solver.ModelCount != 0 {
			if err := proof.Remove(); err != nil {
				return errors.Wrap(err, "failed to remove proof file")
			}
		}
	}

	if signals.Received() {
		return signals.ErrInterrupted
	}
	return nil
}

func exitCode(err error) int {
	var uerr *usageError
	var perr *simplefmt.ParseError
	switch {
	case errors.As(err, &uerr):
		return exitCodeArguments
	case errors.As(err, &perr):
		return exitCodeParsing
	case errors.Is(err, signals.ErrInterrupted):
		if signals.Current() == signals.Alarm {
			return exitCodeTimeout
		}
		return exitCodeSignals
	default:
		return exitCodeUnexpected
	}
}

func printSummary() {
	elapsed := time.Since(startTime)

	switch signals.Current() {
	case signals.Alarm:
		fmt.Println("Interrupted by timeout")
	case signals.Interrupt, signals.Terminate:
		fmt.Println("Interrupted by signal")
	}

	fmt.Println("Finished.")
	fmt.Printf("Models found: %d\n", modelCount)
	if modelCount != 0 {
		fmt.Printf("Runtime (s): %.3f (first model: %.3f)\n",
			elapsed.Seconds(), firstModelTime.Sub(startTime).Seconds())
	} else {
		fmt.Printf("Runtime (s): %.3f\n", elapsed.Seconds())
	}
	fmt.Printf("Percentage solved: %.9f\n", percentageSolved*100)
}

func main() {
	startTime = time.Now()
	signals.Install()

	// Free the -h shorthand for the heuristics flag.
	cli.HelpFlag = cli.BoolFlag{Name: "help"}

	app := cli.NewApp()
	app.Name = "stabl"
	app.Usage = "enumerate the stable extensions of a SETAF"
	app.Flags = flags()
	app.Action = func(c *cli.Context) error {
		cfg, err := parseConfig(c)
		if err != nil {
			return err
		}
		return run(cfg)
	}

	code := 0
	if err := app.Run(os.Args); err != nil {
		logrus.Error(err)
		code = exitCode(err)
	}

	printSummary()
	os.Exit(code)
}
