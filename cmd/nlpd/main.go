package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	COMMA = ","
	SKIP  = 0
	KIND  = "period"
	LABEL = "0"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			`Computes average negative log predictive density of election
results. Invocation:
	%s  [OPTIONS] ACTUAL SUMMARY...
ACTUAL is CSV of election,result; each SUMMARY is the output
of a sampler run for the election of the same name, the file
name without extension.
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&COMMA, "comma", COMMA, "field separator")
	flag.IntVar(&SKIP, "s", SKIP, "initial elections to skip")
	flag.StringVar(&KIND, "kind", KIND, "kind of the forecast row")
	flag.StringVar(&LABEL, "label", LABEL, "label of the forecast row")
}

// negative log predictive density
func nlpd(y, mean, std float64) float64 {
	vari := std * std
	logv := math.Log(vari)
	d := y - mean
	return 0.5 * (math.Log(2*math.Pi) + d*d/vari + logv)
}

func reader(fname string) (*csv.Reader, *os.File, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, nil, err
	}
	rdr := csv.NewReader(file)
	rdr.Comma = rune(COMMA[0])
	rdr.Read() // skip the header
	return rdr, file, nil
}

// forecast returns the mean and the standard deviation of
// the forecast row in the summary.
func forecast(fname string) (mean, std float64, err error) {
	rdr, file, err := reader(fname)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()
	records, err := rdr.ReadAll()
	if err != nil {
		return 0, 0, err
	}
	for _, record := range records {
		if len(record) < 4 || record[0] != KIND || record[1] != LABEL {
			continue
		}
		mean, err = strconv.ParseFloat(record[2], 64)
		if err != nil {
			return 0, 0, err
		}
		std, err = strconv.ParseFloat(record[3], 64)
		return mean, std, err
	}
	return 0, 0, fmt.Errorf("%s: no %s row %s", fname, KIND, LABEL)
}

// base is the file name without directory and extension.
func base(fname string) string {
	return strings.TrimSuffix(filepath.Base(fname), filepath.Ext(fname))
}

func main() {
	flag.Parse()
	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}

	rdr, file, err := reader(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	records, err := rdr.ReadAll()
	file.Close()
	if err != nil {
		log.Fatal(err)
	}
	actual := make(map[string]float64)
	for _, record := range records {
		y, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			log.Fatal(err)
		}
		actual[record[0]] = y
	}

	sum := 0.
	n := 0
	for i, fname := range flag.Args()[1:] {
		if i < SKIP {
			continue
		}
		y, ok := actual[base(fname)]
		if !ok {
			log.Fatalf("%s: no result for %q", fname, base(fname))
		}
		mean, std, err := forecast(fname)
		if err != nil {
			log.Fatal(err)
		}
		sum += nlpd(y, mean, std)
		n++
	}
	if n == 0 {
		log.Fatal("no elections")
	}
	fmt.Printf("%f\n", sum/float64(n))
}
