package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"citysim/internal/persistence/archive"
	"citysim/internal/persistence/slots"
	"citysim/internal/protocol"
	"citysim/internal/sim/city"
)

func (g *globalOpts) cityDir() string {
	return filepath.Join(g.dataDir, "cities", g.city)
}

func (g *globalOpts) openStore() (slots.Store, error) {
	switch strings.ToLower(g.backend) {
	case "", "dir", "file":
		return slots.NewDirStore(filepath.Join(g.cityDir(), "saves"), 0, nil)
	case "badger":
		return slots.OpenBadger(filepath.Join(g.cityDir(), "saves.badger"))
	}
	return nil, fmt.Errorf("unsupported save backend: %s", g.backend)
}

func savesCmd(g *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saves",
		Short: "List, inspect and delete save slots",
	}
	cmd.AddCommand(savesListCmd(g), savesInspectCmd(g), savesDeleteCmd(g), savesArchivesCmd(g), savesPruneCmd(g))
	return cmd
}

func savesListCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List save slots with their header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			return listSaves(cmd.OutOrStdout(), store)
		},
	}
}

func listSaves(w io.Writer, store slots.Store) error {
	names, err := store.List()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tCITY\tDAY\tSAVED AT")
	for _, n := range names {
		h, err := store.Stat(n)
		if err != nil {
			fmt.Fprintf(tw, "%s\t?\t?\t%v\n", n, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", n, h.CityName, h.Day, h.SavedAt)
	}
	return tw.Flush()
}

func savesInspectCmd(g *globalOpts) *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "inspect [slot]",
		Short: "Validate a save and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			return inspectSave(cmd.OutOrStdout(), store, args[0], dump)
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "dump the full save record")
	return cmd
}

func inspectSave(w io.Writer, store slots.Store, slot string, dump bool) error {
	save, err := store.Load(slot)
	if err != nil {
		return err
	}
	if dump {
		fmt.Fprintln(w, litter.Sdump(save))
	}

	// Restore into a scratch city: the same checks a live load runs.
	c, err := city.New(city.Config{Name: save.Header.CityName, Logger: quietLogger()})
	if err != nil {
		return err
	}
	if err := c.Restore(save); err != nil {
		return err
	}
	st := c.State()
	byKind := lo.CountValuesBy(c.Buildings(), func(b city.Building) city.Kind { return b.Kind })
	down := lo.CountBy(c.Buildings(), func(b city.Building) bool { return !b.Operational })

	fmt.Fprintf(w, "slot:        %s\n", slot)
	fmt.Fprintf(w, "city:        %s\n", save.Header.CityName)
	fmt.Fprintf(w, "saved at:    %s\n", save.Header.SavedAt)
	fmt.Fprintf(w, "day:         %d (%.2fh)\n", st.Day, st.GameTime)
	fmt.Fprintf(w, "budget:      %s\n", protocol.FormatMoney(st.Budget))
	fmt.Fprintf(w, "population:  %d\n", st.Population)
	fmt.Fprintf(w, "happiness:   %.2f\n", st.Happiness)
	fmt.Fprintf(w, "buildings:   %d (%d not operational)\n", len(save.Buildings), down)
	for _, k := range city.Kinds {
		if n := byKind[k]; n > 0 {
			fmt.Fprintf(w, "  %-15s %d\n", k, n)
		}
	}
	fmt.Fprintf(w, "digest:      %s\n", c.Digest())
	return nil
}

func savesDeleteCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [slot]",
		Short: "Delete a save slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func savesArchivesCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "archives [slot]",
		Short: "List archived copies of a slot (dir backend)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metas, err := archive.List(filepath.Join(g.cityDir(), "saves"), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DAY\tSAVED AT\tARCHIVED AT")
			for _, m := range metas {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Day, m.SavedAt, m.ArchivedAt)
			}
			return tw.Flush()
		},
	}
}

func savesPruneCmd(g *globalOpts) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune [slot]",
		Short: "Remove all but the newest archived copies of a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep <= 0 {
				return fmt.Errorf("--keep must be positive")
			}
			n, err := archive.Prune(filepath.Join(g.cityDir(), "saves"), args[0], keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d archives\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 5, "archives to keep")
	return cmd
}
