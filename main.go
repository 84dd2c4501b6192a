package main

import (
	"bitbucket.org/dtolpin/dlmpoll/config"
	"bitbucket.org/dtolpin/dlmpoll/fundamentals"
	"bitbucket.org/dtolpin/dlmpoll/obs"
	"bitbucket.org/dtolpin/dlmpoll/panel"
	"bitbucket.org/dtolpin/dlmpoll/sampler"
	"bitbucket.org/dtolpin/dlmpoll/summary"
	"encoding/csv"
	"flag"
	"fmt"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	CONFIG  = ""
	FPTE    = 1
	N       = 1000
	MEAN    = 0.5
	SD      = 0.03
	SEED    = uint64(1)
	BURN    = 0
	HISTORY = ""
	X       = 0.
	LO      = 2.5
	HI      = 97.5
	VERBOSE = false
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			`Tracks latent opinion from polls. Invocation:
  %s [OPTIONS] < POLLS > SUMMARY
or
  %s [OPTIONS] selfcheck
POLLS is CSV with header pollster,period,n,share; share may be
empty. In 'selfcheck' mode, the polls hard-coded into the program
are used, to demonstrate basic functionality. Options given on
the command line override the configuration file and DLM_*
environment variables.
`, os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&CONFIG, "config", CONFIG, "YAML configuration file")
	flag.IntVar(&FPTE, "fpte", FPTE, "periods to election")
	flag.IntVar(&N, "n", N, "number of iterations")
	flag.Float64Var(&MEAN, "mean", MEAN, "election-day prior mean")
	flag.Float64Var(&SD, "sd", SD, "election-day prior standard deviation")
	flag.Uint64Var(&SEED, "seed", SEED, "random seed")
	flag.IntVar(&BURN, "burn", BURN, "initial draws to discard")
	flag.StringVar(&HISTORY, "history", HISTORY,
		"CSV of past predictor,result pairs for the election-day prior")
	flag.Float64Var(&X, "x", X, "current predictor, with -history")
	flag.Float64Var(&LO, "lo", LO, "lower percentile of intervals")
	flag.Float64Var(&HI, "hi", HI, "upper percentile of intervals")
	flag.BoolVar(&VERBOSE, "v", VERBOSE, "debug logging")
}

func main() {
	var (
		input  io.Reader = os.Stdin
		output io.Writer = os.Stdout
	)

	flag.Parse()
	switch {
	case flag.NArg() == 0:
	case flag.NArg() == 1 && flag.Arg(0) == "selfcheck":
		input = strings.NewReader(selfCheckData)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if VERBOSE {
		log.SetLevel(log.DebugLevel)
	}

	// A .env file is optional.
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded .env")
	}
	cfg, err := configure()
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}

	polls, err := load(input)
	if err != nil {
		log.WithError(err).Fatal("loading polls")
	}
	p, err := panel.Build(polls, cfg.PeriodsToElection)
	if err != nil {
		log.WithError(err).Fatal("building panel")
	}
	log.WithFields(log.Fields{
		"polls":     len(polls),
		"periods":   len(p.Periods),
		"pollsters": len(p.Pollsters),
	}).Info("panel built")

	opts := cfg.Options()
	bar := progressbar.NewOptions(opts.Iterations,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("sampling"))
	opts.Progress = func(*sampler.State) {
		bar.Add(1)
	}
	a, err := sampler.Run(p, opts)
	if err != nil {
		log.WithError(err).Fatal("sampling")
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if cfg.Burn > 0 {
		a, err = summary.Burn(a, cfg.Burn)
		if err != nil {
			log.WithError(err).Fatal("burning")
		}
	}
	if err := report(output, a); err != nil {
		log.WithError(err).Fatal("writing summary")
	}
}

// configure merges the configuration file, the environment and
// the flags set on the command line.
func configure() (config.Config, error) {
	cfg, err := config.Load(CONFIG)
	if err != nil {
		return cfg, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fpte":
			cfg.PeriodsToElection = FPTE
		case "n":
			cfg.Iterations = N
		case "mean":
			cfg.FinalPriorMean = MEAN
		case "sd":
			cfg.FinalPriorSD = SD
		case "seed":
			cfg.Seed = SEED
		case "burn":
			cfg.Burn = BURN
		}
	})

	if HISTORY != "" {
		mean, sd, err := prior(HISTORY, X)
		if err != nil {
			return cfg, fmt.Errorf("election-day prior: %w", err)
		}
		log.WithFields(log.Fields{
			"mean": mean,
			"sd":   sd,
		}).Info("election-day prior from history")
		cfg.FinalPriorMean, cfg.FinalPriorSD = mean, sd
	}
	return cfg, cfg.Validate()
}

// prior fits the regression of past results and predicts the
// election-day result at x.
func prior(fname string, x float64) (mean, sd float64, err error) {
	file, err := os.Open(fname)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()
	rdr := csv.NewReader(file)
	if _, err = rdr.Read(); err != nil { // skip the header
		return 0, 0, fmt.Errorf("%s: %w", fname, err)
	}
	var xs, ys []float64
	for {
		record, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, err
		}
		if len(record) != 2 {
			return 0, 0, fmt.Errorf("%d fields, want 2", len(record))
		}
		xi, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return 0, 0, err
		}
		yi, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return 0, 0, err
		}
		xs = append(xs, xi)
		ys = append(ys, yi)
	}

	r := fundamentals.New()
	if err := r.Fit(xs, ys); err != nil {
		return 0, 0, err
	}
	return r.Predict(x)
}

// load parses polls from csv.
func load(rdr io.Reader) (polls []panel.Poll, err error) {
	csv := csv.NewReader(rdr)
	if _, err = csv.Read(); err != nil { // skip the header
		return polls, err
	}
RECORDS:
	for {
		record, err := csv.Read()
		switch err {
		case nil:
			// record contains the data
			if len(record) != 4 {
				return polls, fmt.Errorf("%d fields, want 4", len(record))
			}
			p := panel.Poll{Pollster: record[0]}
			if p.Period, err = strconv.Atoi(record[1]); err != nil {
				return polls, err
			}
			if p.SampleSize, err = strconv.Atoi(record[2]); err != nil {
				return polls, err
			}
			if record[3] != "" && record[3] != "NA" {
				share, err := strconv.ParseFloat(record[3], 64)
				if err != nil {
					return polls, err
				}
				p.Share = obs.Some(share)
			}
			polls = append(polls, p)
		case io.EOF:
			// end of file
			break RECORDS
		default:
			// i/o error
			return polls, err
		}
	}

	return polls, nil
}

// report writes the summary of the archive as csv.
func report(w io.Writer, a *sampler.Archive) error {
	trajectory, err := summary.Trajectory(a, LO, HI)
	if err != nil {
		return err
	}
	houses, err := summary.Houses(a, LO, HI)
	if err != nil {
		return err
	}
	volatility, err := summary.Volatility(a, LO, HI)
	if err != nil {
		return err
	}

	out := csv.NewWriter(w)
	out.Write([]string{"kind", "label", "mean", "sd", "lower", "upper"})
	write := func(kind string, r summary.Row) {
		out.Write([]string{
			kind,
			r.Label,
			strconv.FormatFloat(r.Mean, 'f', 6, 64),
			strconv.FormatFloat(r.SD, 'f', 6, 64),
			strconv.FormatFloat(r.Lower, 'f', 6, 64),
			strconv.FormatFloat(r.Upper, 'f', 6, 64),
		})
	}
	for _, r := range trajectory {
		write("period", r)
	}
	for _, r := range houses {
		write("house", r)
	}
	write("volatility", volatility)
	out.Flush()
	return out.Error()
}

var selfCheckData = `pollster,period,n,share
alpha,12,1000,0.47
beta,12,800,0.51
alpha,11,1200,0.48
gamma,11,600,0.46
beta,10,900,0.52
alpha,9,1000,0.49
gamma,9,700,
beta,8,1100,0.50
alpha,7,1000,0.49
gamma,7,650,0.47
beta,6,950,0.53
alpha,5,1000,0.50
alpha,5,500,0.48
gamma,4,800,0.48
beta,3,1000,0.52
alpha,2,1100,0.50
gamma,1,700,0.49
`
