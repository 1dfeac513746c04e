package identity_test

import (
	"testing"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/stretchr/testify/require"
)

func TestParseClass(t *testing.T) {
	tests := []struct {
		input   string
		want    identity.Class
		wantErr bool
	}{
		{"staff", identity.Staff, false},
		{"TEAM", identity.Team, false},
		{"  team ", identity.Team, false},
		{"admin", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := identity.ParseClass(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
