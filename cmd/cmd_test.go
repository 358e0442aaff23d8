package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scadform/scadform/internal/params"
	"github.com/scadform/scadform/internal/types"
)

func TestParseOverrides(t *testing.T) {
	overrides, err := parseOverrides([]string{
		"lado=42",
		"com_tampa=true",
		"formato=quadrado",
		`cor="azul"`,
	})
	require.NoError(t, err)
	require.Len(t, overrides, 4)

	assert.Equal(t, types.Override{Name: "lado", Value: float64(42), Type: types.ParamNumber}, overrides[0])
	assert.Equal(t, types.Override{Name: "com_tampa", Value: true, Type: types.ParamBool}, overrides[1])
	assert.Equal(t, types.Override{Name: "formato", Value: "quadrado", Type: types.ParamString}, overrides[2])
	assert.Equal(t, types.Override{Name: "cor", Value: "azul", Type: types.ParamString}, overrides[3])
}

func TestParseOverridesRejectsMalformed(t *testing.T) {
	_, err := parseOverrides([]string{"lado"})
	assert.Error(t, err)

	_, err = parseOverrides([]string{"=42"})
	assert.Error(t, err)
}

func TestConstraintFormatting(t *testing.T) {
	min, max, step := 10.0, 100.0, 0.5

	ranged := types.ParameterDescriptor{Min: &min, Max: &max}
	assert.Equal(t, "[10:100]", constraint(ranged))

	stepped := types.ParameterDescriptor{Min: &min, Max: &max, Step: &step}
	assert.Equal(t, "[10:0.5:100]", constraint(stepped))

	choices := types.ParameterDescriptor{Options: []any{"redondo", "quadrado"}}
	assert.Equal(t, "[redondo, quadrado]", constraint(choices))

	assert.Equal(t, "", constraint(types.ParameterDescriptor{}))
}

func TestInitScaffold(t *testing.T) {
	dir := t.TempDir()

	rootCmd.SetArgs([]string{"init", dir})
	require.NoError(t, rootCmd.Execute())

	cfgData, err := os.ReadFile(filepath.Join(dir, ".scadform.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfgData), "openscad")

	modelData, err := os.ReadFile(filepath.Join(dir, "example.scad"))
	require.NoError(t, err)

	// The scaffolded model must itself be customizable, with every
	// parameter grouped under its section header.
	descriptors := params.Extract(string(modelData))
	require.NotEmpty(t, descriptors)
	sections := make(map[string]string, len(descriptors))
	for _, d := range descriptors {
		sections[d.Name] = d.Section
	}
	assert.Equal(t, "Dimensions", sections["lado"])
	assert.Equal(t, "Dimensions", sections["parede"])
	assert.Equal(t, "Appearance", sections["formato"])
	assert.Equal(t, "Appearance", sections["com_tampa"])
	for name, section := range sections {
		assert.NotEmpty(t, section, "parameter %s has no section", name)
	}
}
