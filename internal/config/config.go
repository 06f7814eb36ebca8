// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config collects the environment-driven settings shared by the lobby,
// developer and database services. Load it once per process; binaries
// import godotenv/autoload so a local .env file is honored.
type Config struct {
	DBHost string
	DBPort int
	DBPath string

	LobbyHost string
	LobbyPort int

	// ServerIP is the address handed to game clients when a match starts.
	ServerIP string

	DeveloperPort int

	// TempDir receives inbound file frames and package extraction scratch.
	TempDir string

	// StorageDir is the root of uploaded game packages:
	// <StorageDir>/<ownerUserId>/<gameName>/<version>/
	StorageDir string

	// Token is stamped into every outbound frame.
	Token string
}

// Load reads the recognized environment variables, applying defaults for
// anything unset.
func Load() Config {
	return Config{
		DBHost:        getenv("DB_IP", "127.0.0.1"),
		DBPort:        getenvInt("DB_PORT", 20010),
		DBPath:        getenv("DB_PATH", "data/gamehall.db"),
		LobbyHost:     getenv("LOBBY_IP", "0.0.0.0"),
		LobbyPort:     getenvInt("LOBBY_PORT", 20012),
		ServerIP:      getenv("SERVER_IP", "127.0.0.1"),
		DeveloperPort: getenvInt("DEVELOPER_SERVER_PORT", 20013),
		TempDir:       getenv("TEMP_DIR", "temp"),
		StorageDir:    getenv("DOWNLOAD_BASE_DIR", "uploaded_games"),
		Token:         os.Getenv("TOKEN"),
	}
}

// DBAddr is the dial address of the database service.
func (c Config) DBAddr() string {
	return fmt.Sprintf("%s:%d", c.DBHost, c.DBPort)
}

// LobbyAddr is the listen address of the lobby service.
func (c Config) LobbyAddr() string {
	return fmt.Sprintf("%s:%d", c.LobbyHost, c.LobbyPort)
}

// DeveloperAddr is the listen address of the developer service.
func (c Config) DeveloperAddr() string {
	return fmt.Sprintf("%s:%d", c.LobbyHost, c.DeveloperPort)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
