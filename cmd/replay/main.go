package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"citysim/internal/persistence/snapshot"
	"citysim/internal/protocol"
	"citysim/internal/sim/city"
	"citysim/internal/sim/tuning"
)

// replay projects a saved city forward day by day with no player input and
// checks that two independent runs produce the same digest chain.
func main() {
	var (
		savePath   = flag.String("save", "", "path to a .city save file")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (defaults if missing)")
		days       = flag.Int("days", 30, "days to project")
		verify     = flag.Bool("verify", true, "run twice and compare digests")
		quiet      = flag.Bool("quiet", false, "print only the summary line")
	)
	flag.Parse()

	if strings.TrimSpace(*savePath) == "" {
		fmt.Fprintln(os.Stderr, "missing -save")
		os.Exit(2)
	}
	save, err := snapshot.ReadFile(*savePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read save:", err)
		os.Exit(1)
	}
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	fmt.Printf("save v%d city=%s day=%d buildings=%d budget=%s\n",
		save.Header.Version, save.Header.CityName, save.Day, len(save.Buildings), protocol.FormatMoney(save.Budget))

	out := io.Writer(os.Stdout)
	if *quiet {
		out = io.Discard
	}
	first, err := project(save, tune, *days, out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	if *verify {
		second, err := project(save, tune, *days, io.Discard)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if day, ok := sameChain(first, second); !ok {
			fmt.Fprintf(os.Stderr, "digest mismatch at day %d\n", day)
			os.Exit(1)
		}
	}
	last := first[len(first)-1]
	fmt.Printf("replay ok: %s days=%d final_day=%d budget=%s population=%d digest=%s\n",
		filepath.Base(*savePath), len(first), last.Day, protocol.FormatMoney(last.BudgetAfter), last.Population, last.Digest)
}

// project restores save into a fresh city and runs n daily passes.
func project(save snapshot.SaveV1, tune tuning.Tuning, n int, out io.Writer) ([]city.DayReport, error) {
	if n <= 0 {
		return nil, fmt.Errorf("days must be positive")
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	c, err := city.New(city.Config{
		Name:   save.Header.CityName,
		Tuning: tune,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Restore(save); err != nil {
		return nil, err
	}
	reps := make([]city.DayReport, 0, n)
	for i := 0; i < n; i++ {
		r := c.AdvanceDay()
		reps = append(reps, r)
		fmt.Fprintf(out, "day=%d budget=%s pop=%d happy=%.2f operational=%d/%d digest=%s\n",
			r.Day, protocol.FormatMoney(r.BudgetAfter), r.Population, r.Happiness, r.Operational, r.Buildings, r.Digest[:12])
	}
	return reps, nil
}

func sameChain(a, b []city.DayReport) (int, bool) {
	for i := range a {
		if i >= len(b) || a[i].Digest != b[i].Digest {
			return a[i].Day, false
		}
	}
	return 0, len(a) == len(b)
}
