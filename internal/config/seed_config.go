package config

import "strconv"

type SeedConfig interface {
	GetAdminUsername() string
	GetAdminPassword() string
	GetSeedTeamID() int
	GetSeedTeamName() string
	GetSeedTeamCode() string
}

type Seed struct{}

var _ SeedConfig = Seed{}

func (Seed) GetAdminUsername() string {
	return GetEnv("ADMIN_USERNAME", "admin")
}

func (Seed) GetAdminPassword() string {
	return GetEnv("ADMIN_PASSWORD", "admin")
}

func (Seed) GetSeedTeamID() int {
	id, err := strconv.Atoi(GetEnv("SEED_TEAM_ID", "1"))
	if err != nil || id <= 0 {
		return 1
	}
	return id
}

func (Seed) GetSeedTeamName() string {
	return GetEnv("SEED_TEAM_NAME", "Team Alpha")
}

func (Seed) GetSeedTeamCode() string {
	return GetEnv("SEED_TEAM_CODE", "ABCD-1234")
}
