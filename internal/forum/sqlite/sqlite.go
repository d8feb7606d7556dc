// Package sqlite connects to boards running on SQLite. Mostly useful for
// small boards and for tests, which point the gateway at a file or an
// in-memory database.
package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/forumgate/forumgate/internal/forum"
)

type Connector struct {
	*forum.SQLForum
}

func New() forum.Forum { return &Connector{} }

// Connect opens the database file named by the DSN, or ":memory:". Query
// parameters like ?_journal_mode=WAL pass through to the driver.
func (c *Connector) Connect(cfg forum.ConnConfig) error {
	db, err := sqlx.Connect("sqlite", cfg.DSN)
	if err != nil {
		return fmt.Errorf("sqlite connect: %w", err)
	}
	cfg.Apply(db)

	c.SQLForum = forum.NewSQLForum(db, "sqlite", cfg.TablePrefix)
	return nil
}

func (c *Connector) DriverName() string { return "sqlite" }
