package teamrepofakes

import (
	"sort"
	"sync"

	autherrors "github.com/jrsteele09/rally-session/internal/errors"
	"github.com/jrsteele09/rally-session/teams"
)

var _ teams.Repo = (*FakeTeamRepo)(nil)

type FakeTeamRepo struct {
	teams  map[int]*teams.Team
	codes  map[string]int // normalized access code to team id
	nextID int
	lock   sync.RWMutex
}

func NewFakeTeamRepo() teams.Repo {
	return &FakeTeamRepo{
		teams:  make(map[int]*teams.Team),
		codes:  make(map[string]int),
		nextID: 1,
	}
}

func (tr *FakeTeamRepo) Upsert(team *teams.Team) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	code := teams.NormalizeAccessCode(team.AccessCode)
	if code == "" {
		return autherrors.Wrapf(autherrors.ErrInvalidAccessCode, "team %q has no access code", team.Name)
	}
	if id, ok := tr.codes[code]; ok && id != team.ID {
		return autherrors.Wrapf(autherrors.ErrInvalidAccessCode, "access code already used by team %d", id)
	}
	if team.ID == 0 {
		team.ID = tr.nextID
	}
	if team.ID >= tr.nextID {
		tr.nextID = team.ID + 1
	}
	if previous, ok := tr.teams[team.ID]; ok {
		delete(tr.codes, teams.NormalizeAccessCode(previous.AccessCode))
	}

	team.AccessCode = code
	tr.teams[team.ID] = team
	tr.codes[code] = team.ID
	return nil
}

func (tr *FakeTeamRepo) Get(teamID int) (*teams.Team, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	team, ok := tr.teams[teamID]
	if !ok {
		return nil, autherrors.ErrTeamNotFound
	}
	return team, nil
}

func (tr *FakeTeamRepo) GetByAccessCode(code string) (*teams.Team, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	id, ok := tr.codes[teams.NormalizeAccessCode(code)]
	if !ok {
		return nil, autherrors.ErrInvalidAccessCode
	}
	return tr.teams[id], nil
}

func (tr *FakeTeamRepo) List(offset, limit int) ([]*teams.Team, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	list := make([]*teams.Team, 0, len(tr.teams))
	for _, t := range tr.teams {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})

	if offset >= len(list) {
		return nil, nil
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end], nil
}
