package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type globalOpts struct {
	dataDir string
	city    string
	backend string
}

func main() {
	var g globalOpts

	rootCmd := &cobra.Command{
		Use:           "citysim-admin",
		Short:         "Offline tooling for citysim save slots and day history",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&g.dataDir, "data", "./data", "runtime data directory")
	rootCmd.PersistentFlags().StringVar(&g.city, "city", "city", "city name")
	rootCmd.PersistentFlags().StringVar(&g.backend, "saves", "dir", "save slot backend: dir|badger")

	rootCmd.AddCommand(savesCmd(&g))
	rootCmd.AddCommand(daysCmd(&g))

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Debug("admin failed")
		os.Exit(1)
	}
}
