package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttempt_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []Phase
		valid bool
	}{
		{name: "plain request", path: []Phase{PhaseDone}, valid: true},
		{name: "refresh and retry", path: []Phase{PhaseRefreshPending, PhaseRetrying, PhaseDone}, valid: true},
		{name: "refresh failed", path: []Phase{PhaseRefreshPending, PhaseFailed}, valid: true},
		{name: "retry without refresh", path: []Phase{PhaseRetrying}, valid: false},
		{name: "second refresh after retry", path: []Phase{PhaseRefreshPending, PhaseRetrying, PhaseRefreshPending}, valid: false},
		{name: "done is final", path: []Phase{PhaseDone, PhaseRefreshPending}, valid: false},
		{name: "failed is final", path: []Phase{PhaseRefreshPending, PhaseFailed, PhaseRetrying}, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &attempt{phase: PhaseNormal}
			var err error
			for _, p := range tt.path {
				if err = a.advance(p); err != nil {
					break
				}
			}
			if tt.valid {
				require.NoError(t, err)
				require.Equal(t, tt.path[len(tt.path)-1], a.phase)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestAttempt_CanRefreshOnlyFromNormal(t *testing.T) {
	a := &attempt{phase: PhaseNormal}
	require.True(t, a.canRefresh())

	require.NoError(t, a.advance(PhaseRefreshPending))
	require.False(t, a.canRefresh())
	require.NoError(t, a.advance(PhaseRetrying))
	require.False(t, a.canRefresh())
}
