// internal/gateway/games.go
package gateway

import (
	"github.com/gamehall/gamehall/internal/models"
)

// GetGameByName returns a game by its unique name, or nil when absent.
func (g *Gateway) GetGameByName(name string) (*models.Game, error) {
	return g.getGame(
		"SELECT id, name, description, OwnerId, LatestVersion, min_players, max_players FROM Game WHERE name = ? LIMIT 1",
		name)
}

// GetGameByID returns a game by id, or nil when absent.
func (g *Gateway) GetGameByID(id int64) (*models.Game, error) {
	return g.getGame(
		"SELECT id, name, description, OwnerId, LatestVersion, min_players, max_players FROM Game WHERE id = ? LIMIT 1",
		id)
}

func (g *Gateway) getGame(query string, args ...any) (*models.Game, error) {
	rows, err := g.Exec(query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &models.Game{
		ID:            rowInt(r, 0),
		Name:          rowString(r, 1),
		Description:   rowString(r, 2),
		OwnerID:       rowInt(r, 3),
		LatestVersion: rowString(r, 4),
		MinPlayers:    rowInt(r, 5),
		MaxPlayers:    rowInt(r, 6),
	}, nil
}

// ListGames returns (id, name) of every game in the catalog.
func (g *Gateway) ListGames() ([]models.Game, error) {
	rows, err := g.Exec("SELECT id, name FROM Game")
	if err != nil {
		return nil, err
	}
	games := make([]models.Game, 0, len(rows))
	for _, r := range rows {
		games = append(games, models.Game{ID: rowInt(r, 0), Name: rowString(r, 1)})
	}
	return games, nil
}

// GamesByOwner returns every game owned by the developer.
func (g *Gateway) GamesByOwner(ownerID int64) ([]models.Game, error) {
	rows, err := g.Exec(
		"SELECT id, name, description, OwnerId, LatestVersion FROM Game WHERE OwnerId = ?",
		ownerID)
	if err != nil {
		return nil, err
	}
	games := make([]models.Game, 0, len(rows))
	for _, r := range rows {
		games = append(games, models.Game{
			ID:            rowInt(r, 0),
			Name:          rowString(r, 1),
			Description:   rowString(r, 2),
			OwnerID:       rowInt(r, 3),
			LatestVersion: rowString(r, 4),
		})
	}
	return games, nil
}

// InsertGame creates a game row and returns its id.
func (g *Gateway) InsertGame(name, description string, ownerID int64, latestVersion string) (int64, error) {
	rows, err := g.Exec(
		"INSERT INTO Game (name, description, OwnerId, LatestVersion) VALUES (?, ?, ?, ?) RETURNING id",
		name, description, ownerID, latestVersion)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, &DBError{Msg: "game insert returned no id"}
	}
	return rowInt(rows[0], 0), nil
}

// UpdateGameLatestVersion repoints a game's LatestVersion, used both on
// upload of a newer version and on deletion promotion.
func (g *Gateway) UpdateGameLatestVersion(gameID int64, version string) error {
	_, err := g.Exec("UPDATE Game SET LatestVersion = ? WHERE id = ?", version, gameID)
	return err
}

// DeleteGame removes the game row. Versions are deleted separately first.
func (g *Gateway) DeleteGame(gameID int64) error {
	_, err := g.Exec("DELETE FROM Game WHERE id = ?", gameID)
	return err
}

// InsertGameVersion appends a version row for the game.
func (g *Gateway) InsertGameVersion(gameID int64, version, command string) error {
	_, err := g.Exec(
		"INSERT INTO GameVersion (gameId, VersionNumber, Command) VALUES (?, ?, ?)",
		gameID, version, command)
	return err
}

// GetVersion returns the version row, or nil when absent.
func (g *Gateway) GetVersion(gameID int64, version string) (*models.GameVersion, error) {
	rows, err := g.Exec(
		"SELECT id, gameId, VersionNumber, Command, UploadDate FROM GameVersion WHERE gameId = ? AND VersionNumber = ? LIMIT 1",
		gameID, version)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return scanVersion(rows[0]), nil
}

// OrderedVersions returns a game's versions by UploadDate descending, so
// index 0 is the promotion candidate.
func (g *Gateway) OrderedVersions(gameID int64) ([]models.GameVersion, error) {
	rows, err := g.Exec(
		"SELECT id, gameId, VersionNumber, Command, UploadDate FROM GameVersion WHERE gameId = ? ORDER BY UploadDate DESC, id DESC",
		gameID)
	if err != nil {
		return nil, err
	}
	versions := make([]models.GameVersion, 0, len(rows))
	for _, r := range rows {
		versions = append(versions, *scanVersion(r))
	}
	return versions, nil
}

// DeleteVersionByID removes one version row.
func (g *Gateway) DeleteVersionByID(versionID int64) error {
	_, err := g.Exec("DELETE FROM GameVersion WHERE id = ?", versionID)
	return err
}

// DeleteVersionsByGame removes every version of a game.
func (g *Gateway) DeleteVersionsByGame(gameID int64) error {
	_, err := g.Exec("DELETE FROM GameVersion WHERE gameId = ?", gameID)
	return err
}

// VersionNumbers returns the plain version strings of a game.
func (g *Gateway) VersionNumbers(gameID int64) ([]string, error) {
	rows, err := g.Exec("SELECT VersionNumber FROM GameVersion WHERE gameId = ?", gameID)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(rows))
	for _, r := range rows {
		versions = append(versions, rowString(r, 0))
	}
	return versions, nil
}

func scanVersion(row []any) *models.GameVersion {
	return &models.GameVersion{
		ID:         rowInt(row, 0),
		GameID:     rowInt(row, 1),
		Version:    rowString(row, 2),
		Command:    rowString(row, 3),
		UploadDate: rowString(row, 4),
	}
}
