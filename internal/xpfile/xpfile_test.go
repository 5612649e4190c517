package xpfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/experiences/internal/types"
)

func TestLoad_Valid(t *testing.T) {
	exps, err := Load(filepath.Join("testdata", "valid.yaml"))
	require.NoError(t, err)
	require.Len(t, exps, 2)

	sale := exps[0]
	assert.Equal(t, "sale", sale.ID)
	assert.Equal(t, types.TypeBanner, sale.Type)
	assert.Equal(t, "Sale", sale.Content["title"])
	require.NotNil(t, sale.Targeting.URL)
	assert.Equal(t, "/shop", sale.Targeting.URL.Contains)
	assert.Equal(t, `referrer.contains("google")`, sale.Targeting.Expression)
	require.NotNil(t, sale.Frequency)
	assert.Equal(t, types.FrequencyRule{Max: 3, Per: types.WindowDay}, *sale.Frequency)
	assert.Equal(t, 10, sale.Priority)

	welcome := exps[1]
	assert.Equal(t, types.TypeModal, welcome.Type)
	assert.True(t, welcome.Targeting.IsEmpty())
	assert.Nil(t, welcome.Frequency)
}

func TestLoad_SchemaErrors(t *testing.T) {
	tests := []struct {
		file      string
		wantIndex int
		wantID    string
	}{
		{"unknown_field.yaml", 0, "sale"},
		{"bad_window.yaml", 1, "monthly"},
		{"duplicate.yaml", 1, "sale"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := Load(filepath.Join("testdata", tt.file))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchema)

			var entryErr *EntryError
			require.True(t, errors.As(err, &entryErr))
			assert.Equal(t, tt.wantIndex, entryErr.Index)
			assert.Equal(t, tt.wantID, entryErr.ID)
		})
	}
}

func TestParse_Inline(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"empty list", "experiences: []\n", false},
		{"missing type", "experiences:\n  - id: x\n", true},
		{"unknown type", "experiences:\n  - id: x\n    type: popup\n", true},
		{"zero max", "experiences:\n  - id: x\n    type: banner\n    frequency: {max: 0, per: day}\n", true},
		{"empty id", "experiences:\n  - id: \"\"\n    type: banner\n", true},
		{"malformed yaml", "experiences: [", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_ShippedPromotions(t *testing.T) {
	exps, err := Load(filepath.Join("..", "..", "examples", "promotions.yaml"))
	require.NoError(t, err)

	ids := make([]string, 0, len(exps))
	for _, e := range exps {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"flash-sale", "cookie-consent", "feature-launch", "announcement", "compact-promo"}, ids)
}
