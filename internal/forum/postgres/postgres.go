// Package postgres connects to boards running on PostgreSQL via the pgx
// driver in database/sql compatibility mode.
package postgres

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/forumgate/forumgate/internal/forum"
)

type Connector struct {
	*forum.SQLForum
}

func New() forum.Forum { return &Connector{} }

func (c *Connector) Connect(cfg forum.ConnConfig) error {
	db, err := sqlx.Connect("pgx", forum.SanitizeDSN("postgres", cfg.DSN))
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	cfg.Apply(db)

	c.SQLForum = forum.NewSQLForum(db, "pgx", cfg.TablePrefix)
	return nil
}

func (c *Connector) DriverName() string { return "postgres" }
