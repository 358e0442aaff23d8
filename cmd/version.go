package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scadform/scadform/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().Bool("json", false, "Emit version information as JSON")
	versionCmd.Flags().Bool("short", false, "Print only the version string")
}

func runVersion(cmd *cobra.Command, args []string) error {
	if short, _ := cmd.Flags().GetBool("short"); short {
		fmt.Println(version.Short())
		return nil
	}

	info := version.Get()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Printf("scadform %s\n", version.Short())
	fmt.Printf("  commit:   %s\n", info.GitCommit)
	fmt.Printf("  go:       %s\n", info.GoVersion)
	fmt.Printf("  platform: %s\n", info.Platform)
	return nil
}
