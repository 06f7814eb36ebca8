// internal/gateway/users.go
package gateway

import (
	"github.com/gamehall/gamehall/internal/models"
)

// FindUserByName returns the user with the given name, or nil when absent.
// Names are the uniqueness key for registration.
func (g *Gateway) FindUserByName(name string) (*models.User, error) {
	rows, err := g.Exec(
		"SELECT id, name, passwordHash, status, role FROM User WHERE name = ? LIMIT 1",
		name)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return scanUser(rows[0]), nil
}

// FindUserByID returns the user with the given id, or nil when absent.
func (g *Gateway) FindUserByID(id int64) (*models.User, error) {
	rows, err := g.Exec(
		"SELECT id, name, passwordHash, status, role FROM User WHERE id = ? LIMIT 1",
		id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return scanUser(rows[0]), nil
}

// InsertUser creates a user and returns its id.
func (g *Gateway) InsertUser(name, passwordHash, role string) (int64, error) {
	rows, err := g.Exec(
		"INSERT INTO User (name, passwordHash, role) VALUES (?, ?, ?) RETURNING id",
		name, passwordHash, role)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, &DBError{Msg: "insert returned no id"}
	}
	return rowInt(rows[0], 0), nil
}

// UpdateUserStatus flips a user between online and offline.
func (g *Gateway) UpdateUserStatus(id int64, status string) error {
	_, err := g.Exec("UPDATE User SET status = ? WHERE id = ?", status, id)
	return err
}

// ListOnlinePlayers returns online users, developers filtered out.
func (g *Gateway) ListOnlinePlayers() ([]models.User, error) {
	rows, err := g.Exec(
		"SELECT id, name FROM User WHERE status = 'online' AND role != 'developer'")
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, models.User{ID: rowInt(r, 0), Name: rowString(r, 1)})
	}
	return users, nil
}

func scanUser(row []any) *models.User {
	return &models.User{
		ID:           rowInt(row, 0),
		Name:         rowString(row, 1),
		PasswordHash: rowString(row, 2),
		Status:       rowString(row, 3),
		Role:         rowString(row, 4),
	}
}
