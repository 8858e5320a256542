package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/brensch/camava/internal/config"
	"github.com/brensch/camava/internal/providers"
	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	provider   string
	verbose    bool

	cfg      config.Config
	registry *providers.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "camava",
		Short: "Search Camava reservation portals for available campsites",
		Long: `Search Camava reservation portals (such as Santa Barbara County Parks)
for campsites that are free for a whole stay, and watch them for openings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "camava.yaml", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&a.provider, "provider", "", "Provider name (default from config)")
	cmd.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(
		newFacilitiesCmd(a),
		newSearchCmd(a),
		newUnitsCmd(a),
		newWatchCmd(a),
		newSQLCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.registry = providers.NewRegistry()
	a.registry.Register("santabarbara", providers.NewSantaBarbaraCountyParks())
	a.registry.Register(cfg.Provider.Name, providers.NewCamava(cfg.CamavaConfig()))
	if a.provider == "" {
		a.provider = cfg.Provider.Name
	}
	return nil
}

func (a *app) providerFor() (providers.Provider, error) {
	p, ok := a.registry.Get(a.provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %v)", a.provider, a.registry.Names())
	}
	return p, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
