package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

func TestNormalizeGeography(t *testing.T) {
	got, err := NormalizeGeography([]string{"ny", " ca "})
	require.NoError(t, err)
	assert.Equal(t, []string{"NY", "CA"}, got)

	got, err = NormalizeGeography([]string{"Nationwide"})
	require.NoError(t, err)
	assert.Equal(t, []string{model.GeographyNationwide}, got)

	_, err = NormalizeGeography([]string{"NY", "nationwide"})
	assert.Error(t, err, "nationwide cannot be combined with states")

	_, err = NormalizeGeography([]string{"ZZ"})
	assert.Error(t, err)

	_, err = NormalizeGeography(nil)
	assert.Error(t, err)
}
