// internal/models/models.go
package models

// User is a row in the User table. Users are never deleted; login and
// logout flip Status between online and offline.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	Status       string `json:"status"` // 'online' | 'offline'
	Role         string `json:"role"`   // 'player' | 'developer'
}

// Game is an uploaded game. LatestVersion always names an existing
// GameVersion row; deleting the last version deletes the game.
type Game struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	OwnerID       int64  `json:"ownerId"`
	LatestVersion string `json:"latestVersion"`
	MinPlayers    int64  `json:"minPlayers"`
	MaxPlayers    int64  `json:"maxPlayers"`
}

// GameVersion rows are ordered by UploadDate descending; the most recent
// remaining row is promoted when the latest version is removed.
type GameVersion struct {
	ID         int64  `json:"id"`
	GameID     int64  `json:"gameId"`
	Version    string `json:"version"`
	Command    string `json:"command"`
	UploadDate string `json:"uploadDate"`
}

// Room groups users for a match. A room always has at least one member;
// the last leave deletes it.
type Room struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	HostUserID int64  `json:"hostUserId"`
	Visibility string `json:"visibility"` // 'public' | 'private'
	Status     string `json:"status"`     // 'idle' | 'playing'
	GameID     int64  `json:"gameId"`
}

// RoomListing is a row of list_rooms, joined with the game name.
type RoomListing struct {
	RoomID     int64
	Name       string
	HostID     int64
	Visibility string
	Status     string
	GameID     int64
	GameName   string
}

// RoomMember is one (room, user) membership with the user's name resolved.
type RoomMember struct {
	UserID int64
	Name   string
}

// Invite is a directional room invitation.
type Invite struct {
	ID     int64
	RoomID int64
	FromID int64
	ToID   int64
}

// InviteListing is a row of list_invite with room and game metadata.
type InviteListing struct {
	RoomID   int64
	FromID   int64
	FromName string
	InviteID int64
	RoomName string
	GameID   int64
	GameName string
}

// JoinRequest asks a public room's host for admission. ToID is the host.
type JoinRequest struct {
	ID     int64
	RoomID int64
	FromID int64
	ToID   int64
}

// RequestListing is a row of list_request as seen by the host.
type RequestListing struct {
	RoomID    int64
	FromID    int64
	FromName  string
	RequestID int64
}

// Comment is an append-only game review with a 1..5 score.
type Comment struct {
	ID        int64
	UserName  string
	Content   string
	Score     int64
	Timestamp string
}
