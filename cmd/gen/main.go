package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"gonum.org/v1/gonum/stat/distuv"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"time"
)

var (
	PERIODS   = 30
	POLLSTERS = 4
	RATE      = 0.5
	START     = 0.5
	STEP      = 0.005
	HOUSE     = 0.01
	SIZE      = 1000
	SEED      = uint64(0)
	TRUTH     = ""
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			`Generate synthetic polls of a random walk. Invocation:
	%s  [OPTIONS] > POLLS
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.IntVar(&PERIODS, "periods", PERIODS, "number of periods")
	flag.IntVar(&POLLSTERS, "pollsters", POLLSTERS, "number of pollsters")
	flag.Float64Var(&RATE, "rate", RATE,
		"probability that a pollster polls in a period")
	flag.Float64Var(&START, "start", START, "opinion in the first period")
	flag.Float64Var(&STEP, "step", STEP, "standard deviation of opinion moves")
	flag.Float64Var(&HOUSE, "house", HOUSE,
		"standard deviation of house effects")
	flag.IntVar(&SIZE, "n", SIZE, "sample size")
	flag.Uint64Var(&SEED, "seed", SEED, "random seed, 0 for the clock")
	flag.StringVar(&TRUTH, "truth", TRUTH,
		"file to write the latent opinion of every period to")
}

type poll struct {
	pollster string
	period   int
	share    float64
}

// walk sends the latent opinion of every period, from the
// furthest period to period 0 (election day).
func walk(src rand.Source, opinion chan<- [2]float64) {
	step := distuv.Normal{Mu: 0, Sigma: STEP, Src: src}
	x := START
	for period := PERIODS; period >= 0; period-- {
		opinion <- [...]float64{float64(period), x}
		x = math.Min(math.Max(x+step.Rand(), 0), 1)
	}
	close(opinion)
}

// sample polls the opinion of every period except election day.
func sample(src rand.Source, opinion <-chan [2]float64, polls chan<- poll) {
	house := distuv.Normal{Mu: 0, Sigma: HOUSE, Src: src}
	bias := make([]float64, POLLSTERS)
	for j := range bias {
		bias[j] = house.Rand()
	}
	present := distuv.Bernoulli{P: RATE, Src: src}
	for x := range opinion {
		period := int(x[0])
		if period == 0 {
			continue
		}
		for j := range bias {
			if present.Rand() == 0 {
				continue
			}
			p := math.Min(math.Max(x[1]+bias[j], 0), 1)
			k := distuv.Binomial{N: float64(SIZE), P: p, Src: src}
			polls <- poll{
				pollster: fmt.Sprintf("p%d", j+1),
				period:   period,
				share:    k.Rand() / float64(SIZE),
			}
		}
	}
	close(polls)
}

func main() {
	flag.Parse()
	if SEED == 0 {
		SEED = uint64(time.Now().UTC().UnixNano())
	}

	var truth *csv.Writer
	if TRUTH != "" {
		file, err := os.Create(TRUTH)
		if err != nil {
			log.Fatal(err)
		}
		defer file.Close()
		truth = csv.NewWriter(file)
		truth.Write([]string{"period", "opinion"})
		defer truth.Flush()
	}

	// The walk is recorded as it passes to the sampler.
	opinion := make(chan [2]float64, 1)
	tee := make(chan [2]float64, 1)
	polls := make(chan poll, 1)
	// separate streams, the goroutines run concurrently
	go walk(rand.NewPCG(SEED, 1), opinion)
	go func() {
		for x := range opinion {
			if truth != nil {
				truth.Write([]string{
					strconv.Itoa(int(x[0])),
					strconv.FormatFloat(x[1], 'f', 6, 64),
				})
			}
			tee <- x
		}
		close(tee)
	}()
	go sample(rand.NewPCG(SEED, 2), tee, polls)

	out := csv.NewWriter(os.Stdout)
	out.Write([]string{"pollster", "period", "n", "share"})
	for p := range polls {
		out.Write([]string{
			p.pollster,
			strconv.Itoa(p.period),
			strconv.Itoa(SIZE),
			strconv.FormatFloat(p.share, 'f', 4, 64),
		})
	}
	out.Flush()
	if err := out.Error(); err != nil {
		log.Fatal(err)
	}
}
