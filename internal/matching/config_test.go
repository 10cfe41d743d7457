package matching

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWeightsFromFile_JSON(t *testing.T) {
	path := writeFile(t, "weights.json", `{"price": 30, "location": 10}`)

	w, err := LoadWeightsFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 30.0, w.Price)
	assert.Equal(t, 10.0, w.Location)
	assert.Equal(t, DefaultWeights().Bedrooms, w.Bedrooms, "unset fields keep defaults")
}

func TestLoadWeightsFromFile_YAML(t *testing.T) {
	path := writeFile(t, "weights.yaml", "bathrooms: 12\nbathrooms_near_miss: 6\n")

	w, err := LoadWeightsFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 12.0, w.Bathrooms)
	assert.Equal(t, 6.0, w.BathroomsNearMiss)
	assert.Equal(t, 25.0, w.Price)
}

func TestLoadWeightsFromFile_Errors(t *testing.T) {
	_, err := LoadWeightsFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	w, err := LoadWeightsFromFile(writeFile(t, "bad.json", `{"price": "lots"}`))
	assert.Error(t, err)
	assert.Equal(t, DefaultWeights(), w)

	w, err = LoadWeightsFromFile(writeFile(t, "neg.yml", "price: -1\n"))
	assert.Error(t, err)
	assert.Equal(t, DefaultWeights(), w)

	_, err = LoadWeightsFromFile(writeFile(t, "near.json", `{"bedrooms": 5, "bedrooms_near_miss": 10}`))
	assert.Error(t, err)
}

func TestWeights_Fingerprint(t *testing.T) {
	a := DefaultWeights()
	b := DefaultWeights()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)

	b.Price = 26
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
