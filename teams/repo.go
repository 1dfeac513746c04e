package teams

type Repo interface {
	// Upsert stores team, assigning the next ID when team.ID is zero
	Upsert(team *Team) error
	Get(teamID int) (*Team, error)
	GetByAccessCode(code string) (*Team, error)
	List(offset, limit int) ([]*Team, error)
}
