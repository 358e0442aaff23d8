package params

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestExtractSynthesizeProperties tests invariant properties of the
// extract/synthesize pair.
func TestExtractSynthesizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	identGen := gen.RegexMatch(`^[a-z][a-z0-9_]{0,15}$`).SuchThat(func(s string) bool {
		return s != "module" && s != "function"
	})

	// Property 1: unchanged synthesis reproduces the source byte for byte
	// for any well-formed single-line assignment.
	properties.Property("unchanged synthesis is identity", prop.ForAll(
		func(name string, value float64, min int, max int) bool {
			source := fmt.Sprintf("%s = %v; // [%d:%d]\n", name, value, min, max)
			ds := Extract(source)
			if len(ds) != 1 {
				return false
			}
			return Synthesize(source, ds) == source
		},
		identGen,
		gen.Float64Range(-1e6, 1e6),
		gen.IntRange(-1000, 1000),
		gen.IntRange(-1000, 1000),
	))

	// Property 2: sigil-prefixed identifiers never appear in the extracted
	// set, for any input built around them.
	properties.Property("sigil identifiers are never extracted", prop.ForAll(
		func(name string, value float64) bool {
			source := fmt.Sprintf("$%s = %v;\nkeep = 1;\n", name, value)
			for _, d := range Extract(source) {
				if strings.HasPrefix(d.Name, "$") || d.Name != "keep" {
					return false
				}
			}
			return true
		},
		identGen,
		gen.Float64Range(-1e6, 1e6),
	))

	// Property 3: an edited value lands between the operator and the
	// delimiter while every other line stays untouched.
	properties.Property("edits are confined to the recorded line", prop.ForAll(
		func(name string, before float64, after float64) bool {
			source := fmt.Sprintf("antes = 1;\n%s = %v; // x\ndepois = 2;\n", name, before)
			ds := Extract(source)
			if len(ds) != 3 {
				return false
			}
			ds[1].Value = after

			lines := strings.Split(Synthesize(source, ds), "\n")
			return lines[0] == "antes = 1;" &&
				lines[2] == "depois = 2;" &&
				strings.HasPrefix(lines[1], name+" = ") &&
				strings.HasSuffix(lines[1], "; // x")
		},
		gen.RegexMatch(`^[a-z][a-z0-9_]{0,15}$`).SuchThat(func(s string) bool {
			return s != "antes" && s != "depois" && s != "module" && s != "function"
		}),
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
	))

	// Property 4: extraction order equals first-occurrence order.
	properties.Property("descriptor order follows source order", prop.ForAll(
		func(names []string) bool {
			seen := map[string]bool{}
			var b strings.Builder
			var unique []string
			for _, n := range names {
				if n == "module" || n == "function" || seen[n] {
					continue
				}
				seen[n] = true
				unique = append(unique, n)
				fmt.Fprintf(&b, "%s = 1;\n", n)
			}
			ds := Extract(b.String())
			if len(ds) != len(unique) {
				return false
			}
			for i, d := range ds {
				if d.Name != unique[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.RegexMatch(`^[a-z][a-z0-9_]{0,8}$`)),
	))

	properties.TestingRun(t)
}
