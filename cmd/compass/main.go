package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/compass/pkg/config"
	"github.com/chazu/compass/pkg/engine"
	"github.com/chazu/compass/pkg/graph"
	"github.com/chazu/compass/pkg/logging"
	"github.com/chazu/compass/pkg/server"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/spf13/cobra"
)

var errScript = errors.New("script failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "compass",
		Short: "Compass - ruler constructions from scripts",
		Long: `Compass evaluates construction scripts of points and lines, resolves their
dependencies and serves live editing sessions over WebSocket.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file")

	evalCmd := &cobra.Command{
		Use:   "eval FILE",
		Short: "Evaluate a script and print the resolved objects",
		Args:  cobra.ExactArgs(1),
		RunE:  runEval,
	}
	evalCmd.Flags().Bool("json", false, "Print the full result as JSON")

	snapCmd := &cobra.Command{
		Use:   "snap FILE",
		Short: "Snap a pixel position against an evaluated script",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnap,
	}
	snapCmd.Flags().Float64("x", 0, "Cursor x in pixels")
	snapCmd.Flags().Float64("y", 0, "Cursor y in pixels")

	checkCmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Evaluate a script and report validation findings",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	rootCmd.AddCommand(evalCmd, snapCmd, checkCmd, serveCmd)
	return rootCmd
}

// setup loads the config named by --config and installs the logger.
func setup(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to read --config flag: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.SetLogger(logging.NewText(os.Stderr, level))
	return cfg, nil
}

func newApp(cfg *config.Config) *server.App {
	return server.NewApp(engine.NewEngineWith(cfg.SketchOptions(), cfg.EvalTimeout))
}

func readScript(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(src), nil
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to read --json flag: %w", err)
	}
	src, err := readScript(args[0])
	if err != nil {
		return err
	}

	res := newApp(cfg).Evaluate(src)
	out := cmd.OutOrStdout()
	if asJSON {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		printErrors(cmd.ErrOrStderr(), res.Errors)
		for _, o := range res.Objects {
			label := o.Style.Label
			if label == "" {
				label = "-"
			}
			fmt.Fprintf(out, "%-5s %-6s %-8s %-40s %s\n", o.Handle, o.Kind, label, o.Definition, formatGeometry(o.Geometry))
		}
		printWarnings(cmd.ErrOrStderr(), res.Warnings)
	}
	if !res.OK() {
		return errScript
	}
	return nil
}

func runSnap(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	x, err := cmd.Flags().GetFloat64("x")
	if err != nil {
		return fmt.Errorf("failed to read --x flag: %w", err)
	}
	y, err := cmd.Flags().GetFloat64("y")
	if err != nil {
		return fmt.Errorf("failed to read --y flag: %w", err)
	}
	src, err := readScript(args[0])
	if err != nil {
		return err
	}

	res := newApp(cfg).Snap(src, v2.Vec{X: x, Y: y})
	if !res.OK() {
		printErrors(cmd.ErrOrStderr(), res.Errors)
		return errScript
	}
	return writeJSON(cmd.OutOrStdout(), res.Target)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	src, err := readScript(args[0])
	if err != nil {
		return err
	}

	res := newApp(cfg).Evaluate(src)
	out := cmd.OutOrStdout()
	printErrors(out, res.Errors)
	printWarnings(out, res.Warnings)
	if !res.OK() {
		return errScript
	}
	fmt.Fprintf(out, "ok: %d objects, %d warnings\n", len(res.Objects), len(res.Warnings))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(newApp(cfg), server.Options{
		Addr:           cfg.Addr,
		AllowedOrigins: cfg.AllowedOrigins,
		Sketch:         cfg.SketchOptions(),
	})
	return srv.Run(ctx)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printErrors(w io.Writer, errs []server.EvalErrorData) {
	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(w, "error: line %d: %s\n", e.Line, e.Message)
		} else {
			fmt.Fprintf(w, "error: %s\n", e.Message)
		}
	}
}

func printWarnings(w io.Writer, warns []server.EvalErrorData) {
	for _, e := range warns {
		fmt.Fprintf(w, "warning: %s\n", e.Message)
	}
}

func formatGeometry(g *graph.Geometry) string {
	if g == nil {
		return "absent"
	}
	if g.Kind == graph.KindPoint {
		return fmt.Sprintf("(%.4g, %.4g)", g.Point.X, g.Point.Y)
	}
	return fmt.Sprintf("through (%.4g, %.4g) dir (%.4g, %.4g)",
		g.Line.Origin.X, g.Line.Origin.Y, g.Line.Direction.X, g.Line.Direction.Y)
}
