// Package mysql connects to boards running on MySQL or MariaDB, the most
// common deployment.
package mysql

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/forumgate/forumgate/internal/forum"
)

type Connector struct {
	*forum.SQLForum
}

func New() forum.Forum { return &Connector{} }

// Connect opens the pool. The DSN is normalized so the tcp() wrapper the
// driver requires may be omitted in config.
func (c *Connector) Connect(cfg forum.ConnConfig) error {
	db, err := sqlx.Connect("mysql", forum.SanitizeDSN("mysql", cfg.DSN))
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	cfg.Apply(db)

	c.SQLForum = forum.NewSQLForum(db, "mysql", cfg.TablePrefix)
	return nil
}

func (c *Connector) DriverName() string { return "mysql" }
