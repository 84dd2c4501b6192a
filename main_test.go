package main

import (
	"bitbucket.org/dtolpin/dlmpoll/panel"
	"bitbucket.org/dtolpin/dlmpoll/sampler"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSelfCheck(t *testing.T) {
	polls, err := load(strings.NewReader(selfCheckData))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(polls) != 17 {
		t.Fatalf("got %d polls, want 17", len(polls))
	}
	missing := 0
	for _, p := range polls {
		if !p.Share.Valid {
			missing++
		}
	}
	if missing != 1 {
		t.Errorf("got %d polls without share, want 1", missing)
	}

	p, err := panel.Build(polls, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(p.Periods) != 12 || len(p.Pollsters) != 3 {
		t.Errorf("got %d periods, %d pollsters, want 12, 3",
			len(p.Periods), len(p.Pollsters))
	}
}

func TestLoadErrors(t *testing.T) {
	for i, data := range []string{
		"pollster,period,n,share\na,x,100,0.5\n",
		"pollster,period,n,share\na,1,100,half\n",
		"pollster,period,n,share\na,1,100\n",
	} {
		if _, err := load(strings.NewReader(data)); err == nil {
			t.Errorf("%d: malformed polls accepted", i)
		}
	}
}

func TestReport(t *testing.T) {
	polls, err := load(strings.NewReader(selfCheckData))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p, err := panel.Build(polls, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	a, err := sampler.Run(p, sampler.Options{
		Iterations: 10,
		FinalMean:  0.5,
		FinalSD:    0.03,
		Hyper:      sampler.DefaultHyper(),
		Seed:       5,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var buf bytes.Buffer
	if err := report(&buf, a); err != nil {
		t.Fatalf("report: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	// header, 12 periods and election day, 3 houses, volatility
	if want := 1 + 13 + 3 + 1; len(records) != want {
		t.Errorf("got %d records, want %d", len(records), want)
	}
	if r := records[13]; r[0] != "period" || r[1] != "0" {
		t.Errorf("election day row: %v", r)
	}
}

func TestPrior(t *testing.T) {
	dir := t.TempDir()
	history := filepath.Join(dir, "history.csv")
	if err := os.WriteFile(history, []byte(`predictor,result
0.1,0.46
0.3,0.49
0.5,0.51
0.7,0.54
`), 0o644); err != nil {
		t.Fatal(err)
	}
	mean, sd, err := prior(history, 0.4)
	if err != nil {
		t.Fatalf("prior: %v", err)
	}
	if !(mean > 0.46 && mean < 0.54) {
		t.Errorf("got mean %.4f outside past results", mean)
	}
	if !(sd > 0) {
		t.Errorf("got sd %.4f, want positive", sd)
	}

	empty := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := prior(empty, 0.4); !errors.Is(err, io.EOF) {
		t.Errorf("empty history: got %v, want EOF", err)
	}
	if _, _, err := prior(filepath.Join(dir, "missing.csv"), 0.4); err == nil {
		t.Errorf("missing history accepted")
	}
}
