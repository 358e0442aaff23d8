package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/scadform/scadform/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Scaffold a scadform project",
	Long: `Create a .scadform.yml with the default configuration and an example
annotated model, ready for 'scadform serve'. Existing files are left alone
unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite existing files")
	initCmd.Flags().Bool("minimal", false, "Write only the config file")
}

const exampleModel = `// Modelo de exemplo: uma caixa parametrizada.

// [Dimensions]
// Edge length of the box
lado = 20; // [10:100]
// Wall thickness
parede = 2; // [0.5:0.5:5]

// [Appearance]
// Overall shape
formato = "redondo"; // [redondo, quadrado]
// Include a lid
com_tampa = true;

module caixa() {
	difference() {
		cube([lado, lado, lado]);
		translate([parede, parede, parede])
			cube([lado - 2 * parede, lado - 2 * parede, lado]);
	}
}

caixa();
`

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	force, _ := cmd.Flags().GetBool("force")
	minimal, _ := cmd.Flags().GetBool("minimal")

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	if err := writeScaffold(filepath.Join(dir, ".scadform.yml"), data, force); err != nil {
		return err
	}

	if !minimal {
		if err := writeScaffold(filepath.Join(dir, "example.scad"), []byte(exampleModel), force); err != nil {
			return err
		}
	}

	fmt.Printf("Initialized scadform project in %s\n", dir)
	fmt.Println("Next: scadform serve")
	return nil
}

func writeScaffold(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("Skipping %s (already exists)\n", path)
			return nil
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("Created %s\n", path)
	return nil
}
