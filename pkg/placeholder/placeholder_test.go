package placeholder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	globals := map[string]string{"Region": "emea", "Year": "2026"}
	locals := map[string]string{"Client": "acme"}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"no tokens", "/data/in", "/data/in"},
		{"global token", "/data/[$Region]/in", "/data/emea/in"},
		{"local token", "/data/[#Client]/in", "/data/acme/in"},
		{"mixed tokens", "[$Region]/[#Client]/[$Year]", "emea/acme/2026"},
		{"repeated token", "[$Region]-[$Region]", "emea-emea"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.template, globals, locals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_MissingGlobal(t *testing.T) {
	_, err := Resolve("/data/[$Region]/in", nil, nil)
	require.Error(t, err)
	var miss *MissingError
	require.ErrorAs(t, err, &miss)
	assert.Equal(t, "global", miss.Scope)
	assert.Equal(t, "Region", miss.Name)
	assert.Equal(t, `global variable "Region" not found for placeholder [$Region]`, err.Error())
}

func TestResolve_MissingLocal(t *testing.T) {
	_, err := Resolve("/data/[#Client]/in", nil, nil)
	require.Error(t, err)
	assert.Equal(t, `local variable "Client" not found for placeholder [#Client]`, err.Error())
}

func TestResolve_CaseSensitive(t *testing.T) {
	_, err := Resolve("[$region]", map[string]string{"Region": "emea"}, nil)
	require.Error(t, err)
}

func TestFindMissing_ScanOrder(t *testing.T) {
	errs := FindMissing("[$A]/[#B]/[$C]", map[string]string{"C": "x"}, nil)
	require.Len(t, errs, 2)

	var first, second *MissingError
	require.ErrorAs(t, errs[0], &first)
	require.ErrorAs(t, errs[1], &second)
	assert.Equal(t, "A", first.Name)
	assert.Equal(t, "global", first.Scope)
	assert.Equal(t, "B", second.Name)
	assert.Equal(t, "local", second.Scope)
}

// FindMissing returning nothing must guarantee that Resolve succeeds on the
// same inputs and leaves no token behind.
func TestFindMissing_AgreesWithResolve(t *testing.T) {
	globals := map[string]string{"A": "1"}
	locals := map[string]string{"B": "2"}
	template := "x/[$A]/[#B]/y"

	require.Empty(t, FindMissing(template, globals, locals))

	got, err := Resolve(template, globals, locals)
	require.NoError(t, err)
	assert.Equal(t, "x/1/2/y", got)
	assert.NotContains(t, got, "[")
}

func TestFindMissing_IgnoresMalformedTokens(t *testing.T) {
	// Tokens without the scope sigil or with non-word characters are literal.
	errs := FindMissing("[Region]/[$a-b]", nil, nil)
	assert.Empty(t, errs)
}
