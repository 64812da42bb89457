package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/arbor/pkg/document"
	"github.com/chazu/arbor/pkg/graph"
	"github.com/chazu/arbor/pkg/interp"
	"github.com/chazu/arbor/pkg/kernel/sdfx"
	"github.com/chazu/arbor/pkg/preset"
	"github.com/chazu/arbor/pkg/session"
	"github.com/chazu/arbor/pkg/tessellate"
)

// errInvalid is returned by validate when any scene has errors.
var errInvalid = errors.New("validation failed")

// ---------------------------------------------------------------------------
// presets
// ---------------------------------------------------------------------------

func newPresetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in scenes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range a.catalog.Names() {
				p, _ := a.catalog.Get(name)
				kind := p.Kind.String()
				if p.Kind == preset.KindDocument {
					kind += "/" + p.Format.String()
				}
				fmt.Fprintf(w, "%s\t%s\n", name, kind)
			}
			return w.Flush()
		},
	}
}

// ---------------------------------------------------------------------------
// render
// ---------------------------------------------------------------------------

type renderOptions struct {
	mode   string
	assets string
	wait   time.Duration
	meshes bool
	indent bool
}

func newRenderCmd(a *app) *cobra.Command {
	var o renderOptions
	cmd := &cobra.Command{
		Use:   "render <preset|file>",
		Short: "Interpret a scene and print a JSON frame summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := interp.ParseMode(o.mode)
			if err != nil {
				return err
			}
			g, err := a.load(args[0])
			if err != nil {
				return err
			}
			cfg := a.cfg
			if o.assets != "" {
				cfg.Assets.Root = o.assets
			}
			cfg.Assets.Watch = false
			s := session.New(g, session.WithConfig(cfg), session.WithLogger(a.log))
			if o.wait > 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), o.wait)
				defer cancel()
				if err := s.WaitForModels(ctx); err != nil {
					a.log.Warn("models still loading", "err", err)
				}
			}
			frame := s.Render(mode)
			enc := json.NewEncoder(cmd.OutOrStdout())
			if o.indent {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(summarize(frame, g.Len(), o.meshes))
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.mode, "mode", "m", "edit", "interpretation mode (edit or play)")
	f.StringVar(&o.assets, "assets", "", "model directory (overrides the settings file)")
	f.DurationVar(&o.wait, "wait", 5*time.Second, "how long to wait for model loads; 0 renders immediately")
	f.BoolVar(&o.meshes, "meshes", false, "include vertex and index arrays")
	f.BoolVar(&o.indent, "indent", false, "indent the JSON output")
	return cmd
}

// ---------------------------------------------------------------------------
// convert
// ---------------------------------------------------------------------------

func newConvertCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "convert <preset|file> <out>",
		Short: "Write a scene as a document; the format follows the output extension",
		Long: "Write a scene as a document. The format follows the output extension\n" +
			"(.json, .yaml, .msgpack) unless --format is given. An output of - writes\n" +
			"to standard output.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.load(args[0])
			if err != nil {
				return err
			}
			out := args[1]
			var f document.Format
			switch {
			case format != "":
				f, err = document.ParseFormat(format)
			case out == "-":
				f = document.JSON
			default:
				f, err = document.FormatFromPath(out)
			}
			if err != nil {
				return err
			}
			data, err := document.Encode(g, f)
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			a.log.Info("scene written", "path", out, "format", f, "count", g.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format (json, yaml, msgpack)")
	return cmd
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <preset|file>...",
		Short: "Check scenes against the graph invariants",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, ref := range args {
				g, err := a.load(ref)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", ref, err)
					failed++
					continue
				}
				res := graph.ValidateAll(g)
				for _, e := range res.Errors {
					fmt.Fprintf(out, "%s: %v\n", ref, e)
				}
				for _, w := range res.Warnings {
					fmt.Fprintf(out, "%s: [warning] node %s: %s\n", ref, w.NodeID.Short(), w.Message)
				}
				if !res.OK() {
					failed++
					continue
				}
				fmt.Fprintf(out, "%s: ok (%d nodes)\n", ref, g.Len())
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errInvalid, failed, len(args))
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// meshes
// ---------------------------------------------------------------------------

func newMeshesCmd(a *app) *cobra.Command {
	var indent bool
	cmd := &cobra.Command{
		Use:   "meshes <preset|file>",
		Short: "Tessellate every box in a scene and print the world-space meshes as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.load(args[0])
			if err != nil {
				return err
			}
			meshes, err := tessellate.Tessellate(g, tessellate.NewMesher(sdfx.New(a.cfg.Render.MeshCells)))
			if err != nil {
				return err
			}
			out := make([]*MeshData, 0, len(meshes))
			for i, m := range meshes {
				out = append(out, meshData(m, interp.Palette[i%len(interp.Palette)]))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if indent {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&indent, "indent", false, "indent the JSON output")
	return cmd
}
