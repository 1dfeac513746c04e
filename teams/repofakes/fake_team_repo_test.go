package teamrepofakes_test

import (
	"testing"

	autherrors "github.com/jrsteele09/rally-session/internal/errors"
	"github.com/jrsteele09/rally-session/teams"
	teamrepofakes "github.com/jrsteele09/rally-session/teams/repofakes"
	"github.com/stretchr/testify/require"
)

func TestFakeTeamRepo(t *testing.T) {
	repo := teamrepofakes.NewFakeTeamRepo()

	alpha := &teams.Team{Name: "Team Alpha", AccessCode: " abcd-1234 "}
	require.NoError(t, repo.Upsert(alpha))
	require.Equal(t, 1, alpha.ID)
	require.Equal(t, "ABCD-1234", alpha.AccessCode)

	beta := &teams.Team{Name: "Team Beta", AccessCode: "BETA-0001"}
	require.NoError(t, repo.Upsert(beta))
	require.Equal(t, 2, beta.ID)

	found, err := repo.GetByAccessCode("ABCD-1234")
	require.NoError(t, err)
	require.Equal(t, "Team Alpha", found.Name)

	_, err = repo.GetByAccessCode("WRONG")
	require.ErrorIs(t, err, autherrors.ErrInvalidAccessCode)

	err = repo.Upsert(&teams.Team{Name: "Copycat", AccessCode: "abcd-1234"})
	require.ErrorIs(t, err, autherrors.ErrInvalidAccessCode)

	// Changing the code releases the old one
	require.NoError(t, repo.Upsert(&teams.Team{ID: 1, Name: "Team Alpha", AccessCode: "ALPHA-2"}))
	_, err = repo.GetByAccessCode("ABCD-1234")
	require.Error(t, err)

	list, err := repo.List(1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Team Beta", list[0].Name)

	_, err = repo.Get(99)
	require.ErrorIs(t, err, autherrors.ErrTeamNotFound)
}
