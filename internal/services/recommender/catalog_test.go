package recommender

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Len(t, c.Crops, 22)
	assert.Len(t, c.Fertilizers, 6)
	assert.NoError(t, c.Validate())
}

func TestLoadCatalog_EmptyPath(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), c)
}

func TestLoadCatalog_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
crops: [sorghum, millet, barley, oats]
fertilizers:
  - name: Compost
    lo_base: 100
    lo_span: 50
    hi_base: 150
    hi_span: 50
  - name: Urea
    lo_base: 10
    lo_span: 10
    hi_base: 20
    hi_span: 10
`), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sorghum", "millet", "barley", "oats"}, c.Crops)
	require.Len(t, c.Fertilizers, 2)
	assert.Equal(t, FertilizerProfile{Name: "Compost", LoBase: 100, LoSpan: 50, HiBase: 150, HiSpan: 50}, c.Fertilizers[0])
}

func TestParseCatalog_Invalid(t *testing.T) {
	cases := map[string]string{
		"too few crops":   "crops: [a, b]\nfertilizers: [{name: x}, {name: y}]",
		"duplicate crop":  "crops: [a, b, A]\nfertilizers: [{name: x}, {name: y}]",
		"one fertilizer":  "crops: [a, b, c]\nfertilizers: [{name: x}]",
		"inverted range":  "crops: [a, b, c]\nfertilizers: [{name: x, lo_base: 30, hi_base: 10}, {name: y}]",
		"not yaml at all": "crops: [a, b",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
