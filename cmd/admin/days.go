package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"citysim/internal/persistence/indexdb"
	persistlog "citysim/internal/persistence/log"
	"citysim/internal/protocol"
)

type dayLine struct {
	Day        int
	Budget     float64
	Income     float64
	Upkeep     float64
	Population int
	Happiness  float64
}

func daysCmd(g *globalOpts) *cobra.Command {
	var (
		limit   int
		fromLog bool
	)
	cmd := &cobra.Command{
		Use:   "days",
		Short: "Show recent daily reports (index db, or the day log with --log)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				lines []dayLine
				err   error
			)
			if fromLog {
				lines, err = daysFromLog(g.cityDir(), limit)
			} else {
				lines, err = daysFromIndex(cmd.Context(), g.cityDir(), g.city, limit)
			}
			if err != nil {
				return err
			}
			return printDays(cmd.OutOrStdout(), lines)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 30, "max days to show")
	cmd.Flags().BoolVar(&fromLog, "log", false, "read the day log instead of the index db")
	return cmd
}

func daysFromIndex(ctx context.Context, cityDir, cityName string, limit int) ([]dayLine, error) {
	path := filepath.Join(cityDir, "index", "city.sqlite")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("index db: %w", err)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	defer idx.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	rows, err := idx.RecentDays(ctx, cityName, limit)
	if err != nil {
		return nil, err
	}
	lines := lo.Map(rows, func(r indexdb.DayRow, _ int) dayLine {
		return dayLine{
			Day:        r.Day,
			Budget:     r.BudgetAfter,
			Income:     r.CommercialTax + r.IndustrialTax + r.CitizenTax,
			Upkeep:     r.Upkeep + r.Expenses,
			Population: r.Population,
			Happiness:  r.Happiness,
		}
	})
	slices.Reverse(lines)
	return lines, nil
}

func daysFromLog(cityDir string, limit int) ([]dayLine, error) {
	reps, err := persistlog.ReadDays(cityDir)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(reps) > limit {
		reps = reps[len(reps)-limit:]
	}
	lines := make([]dayLine, 0, len(reps))
	for _, r := range reps {
		lines = append(lines, dayLine{
			Day:        r.Day,
			Budget:     r.BudgetAfter,
			Income:     r.CommercialTax + r.IndustrialTax + r.CitizenTax,
			Upkeep:     r.Upkeep + r.Expenses,
			Population: r.Population,
			Happiness:  r.Happiness,
		})
	}
	return lines, nil
}

func printDays(w io.Writer, lines []dayLine) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DAY\tBUDGET\tINCOME\tUPKEEP\tPOP\tHAPPY\t")
	for _, l := range lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.2f\t\n",
			l.Day, protocol.FormatMoney(l.Budget), protocol.FormatMoney(l.Income), protocol.FormatMoney(l.Upkeep),
			l.Population, l.Happiness)
	}
	return tw.Flush()
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
