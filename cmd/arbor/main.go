// Command arbor inspects scenes outside the editor: it lists the built-in
// presets, renders a scene to a JSON frame summary, dumps tessellated
// box meshes, converts documents between formats and validates them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/arbor/pkg/config"
	"github.com/chazu/arbor/pkg/engine"
	"github.com/chazu/arbor/pkg/preset"
)

// app carries what every subcommand shares.
type app struct {
	configPath string

	cfg     config.Config
	log     *slog.Logger
	engine  *engine.Engine
	catalog *preset.Catalog
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "arbor",
		Short:         "Scene graph toolkit",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "arbor.toml", "settings file")

	root.AddCommand(
		newPresetsCmd(a),
		newRenderCmd(a),
		newConvertCmd(a),
		newValidateCmd(a),
		newMeshesCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = cfg.NewLogger(cmd.ErrOrStderr())
	a.engine = engine.NewEngine(engine.WithLogger(a.log))
	a.catalog, err = preset.Default(a.engine)
	if err != nil {
		return fmt.Errorf("presets: %w", err)
	}
	return nil
}
