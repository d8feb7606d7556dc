package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forumgate/forumgate/internal/config"
	"github.com/forumgate/forumgate/internal/forum"
	"github.com/forumgate/forumgate/internal/forum/mssql"
	"github.com/forumgate/forumgate/internal/forum/mysql"
	"github.com/forumgate/forumgate/internal/forum/postgres"
	"github.com/forumgate/forumgate/internal/forum/sqlite"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag,
// the FORUMGATE_DATA_DIR env var, or ~/.forumgate as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("FORUMGATE_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.forumgate"
}

// openConfigStore opens the SQLite gateway store, defaulting to ~/.forumgate
// if no data dir was specified.
func openConfigStore() (*config.Store, error) {
	return config.NewStore(resolveDataDir())
}

// newForumRegistry creates a forum registry with all supported board
// database drivers registered.
func newForumRegistry() *forum.Registry {
	registry := forum.NewRegistry()
	registry.RegisterDriver("mysql", mysql.New)
	registry.RegisterDriver("postgres", postgres.New)
	registry.RegisterDriver("sqlite", sqlite.New)
	registry.RegisterDriver("mssql", mssql.New)
	return registry
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "forumgate.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

func logFilePath() string {
	return filepath.Join(resolveDataDir(), "forumgate.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
