package params

import (
	"strings"
	"testing"
)

// FuzzExtract feeds arbitrary source text through the extractor and checks
// the invariants that must hold for any input: no panics, sigil identifiers
// never surface, range and enumeration population stays exclusive, and
// unchanged synthesis is an identity transform.
func FuzzExtract(f *testing.F) {
	f.Add("tamanho_cubo = 30; // [10:100]\n")
	f.Add("// [Geral]\nformato = \"redondo\"; // [redondo, quadrado]\n")
	f.Add("$fn = 64;\nmodule caixa() {}\n")
	f.Add("a = 1; // [1:alto]\n")
	f.Add("x = \"a;b\"; // c\n")
	f.Add("")

	f.Fuzz(func(t *testing.T, source string) {
		ds := Extract(source)

		for _, d := range ds {
			if strings.HasPrefix(d.Name, "$") {
				t.Fatalf("sigil identifier extracted: %q", d.Name)
			}
			hasRange := d.Min != nil || d.Max != nil || d.Step != nil
			if hasRange && d.Options != nil {
				t.Fatalf("descriptor %q carries both range and options", d.Name)
			}
			if d.SourceLine < 0 || d.SourceLine >= len(strings.Split(source, "\n")) {
				t.Fatalf("descriptor %q anchored outside source", d.Name)
			}
		}

		if got := Synthesize(source, ds); got != source {
			t.Fatalf("unchanged synthesis diverged:\n got: %q\nwant: %q", got, source)
		}
	})
}
