package build

import (
	"github.com/scadform/scadform/internal/params"
	"github.com/scadform/scadform/internal/types"
)

// buildArgs constructs the engine invocation argument list: the input path,
// the output flag/value pair, then one define flag/value pair per override.
// Override value expressions are serialized exactly as source synthesis
// serializes them, so `name="valor"`, `name=true`, `name=0.5`.
func buildArgs(config EngineConfig, inputPath, outputPath string, overrides []types.Override) []string {
	args := make([]string, 0, 3+2*len(overrides))
	args = append(args, inputPath, config.OutputFlag, outputPath)
	for _, o := range overrides {
		args = append(args, config.DefineFlag, o.Name+"="+params.FormatValue(o.Value, o.Type))
	}
	return args
}
