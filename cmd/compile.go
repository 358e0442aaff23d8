package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scadform/scadform/internal/build"
	"github.com/scadform/scadform/internal/config"
	"github.com/scadform/scadform/internal/deps"
	"github.com/scadform/scadform/internal/params"
	"github.com/scadform/scadform/internal/types"
)

var compileCmd = &cobra.Command{
	Use:   "compile <file.scad>",
	Short: "Compile a model to an artifact",
	Long: `Compile an OpenSCAD source file to a mesh artifact in one shot,
without starting the server. Overrides are applied on the engine invocation
line the same way the compile channel applies them.

Examples:
  scadform compile caixa.scad -o caixa.stl
  scadform compile caixa.scad -s lado=42 -s cor=vermelho`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringP("output", "o", "", "Artifact output path (default <file>.stl)")
	compileCmd.Flags().StringArrayP("set", "s", nil, "Parameter override as name=value, repeatable")
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	sets, _ := cmd.Flags().GetStringArray("set")
	overrides, err := parseOverrides(sets)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = strings.TrimSuffix(args[0], ".scad") + ".stl"
	}

	logger := newLogger(cfg)
	factory := build.NewFactory(build.EngineConfig{
		Command:        cfg.Engine.Command,
		OutputFlag:     cfg.Engine.OutputFlag,
		DefineFlag:     cfg.Engine.DefineFlag,
		LibraryPathEnv: cfg.Engine.LibraryPathEnv,
	}, logger)
	depCache := deps.NewCache(deps.Host{
		ListingURL: cfg.Library.ListingURL,
		FileURL:    cfg.Library.FileURL,
	}, http.DefaultClient, logger)
	orch := build.NewOrchestrator(
		factory,
		depCache,
		deps.Library{Name: cfg.Library.Name, Version: cfg.Library.Version},
		build.NewArtifactCache(1),
		logger,
	)

	ctx := context.Background()
	if cfg.Engine.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Engine.Timeout)
		defer cancel()
	}

	// Engine output goes straight to the terminal.
	sink := build.LogFunc(func(text string, severity types.LogSeverity) {
		if severity == types.LogError {
			fmt.Fprintln(os.Stderr, text)
			return
		}
		fmt.Println(text)
	})

	result, err := orch.Compile(ctx, types.CompileRequest{
		Source:    string(source),
		Overrides: overrides,
	}, sink)
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, result.Artifact, 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}

	fmt.Printf("Wrote %s (%d bytes, engine exit %d)\n", output, len(result.Artifact), result.ExitStatus)
	return nil
}

func parseOverrides(sets []string) ([]types.Override, error) {
	overrides := make([]types.Override, 0, len(sets))
	for _, set := range sets {
		name, raw, found := strings.Cut(set, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid override %q, expected name=value", set)
		}
		value, paramType := params.ParseOverrideValue(raw)
		overrides = append(overrides, types.Override{Name: name, Value: value, Type: paramType})
	}
	return overrides, nil
}
