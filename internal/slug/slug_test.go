package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "simple", raw: "acme", want: "acme"},
		{name: "with hyphen", raw: "acme-sports", want: "acme-sports"},
		{name: "with digits", raw: "club-99", want: "club-99"},
		{name: "uppercase is canonicalized", raw: "ACME", want: "acme"},
		{name: "surrounding whitespace trimmed", raw: "  acme  ", want: "acme"},
		{name: "too short", raw: "ab", wantErr: true},
		{name: "too long", raw: strings.Repeat("a", 41), wantErr: true},
		{name: "leading hyphen", raw: "-acme", wantErr: true},
		{name: "trailing hyphen", raw: "acme-", wantErr: true},
		{name: "double hyphen", raw: "acme--sports", wantErr: true},
		{name: "underscore", raw: "acme_sports", wantErr: true},
		{name: "spaces inside", raw: "acme sports", wantErr: true},
		{name: "reserved word", raw: "admin", wantErr: true},
		{name: "reserved word postgres", raw: "postgres", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveDatabaseName(t *testing.T) {
	require.Equal(t, "tenant_acme", DeriveDatabaseName("acme"))
	require.Equal(t, "tenant_acme_sports", DeriveDatabaseName("acme-sports"))

	// Deterministic: same input, same output.
	require.Equal(t, DeriveDatabaseName("club-99"), DeriveDatabaseName("club-99"))
}

func TestDeriveDatabaseNameLength(t *testing.T) {
	long := strings.Repeat("a", 40)
	name := DeriveDatabaseName(long)
	require.LessOrEqual(t, len(name), 63)
	require.True(t, strings.HasPrefix(name, "tenant_"))
}
