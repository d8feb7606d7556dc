// Package mssql connects to boards running on Microsoft SQL Server.
package mssql

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/forumgate/forumgate/internal/forum"
)

type Connector struct {
	*forum.SQLForum
}

func New() forum.Forum { return &Connector{} }

func (c *Connector) Connect(cfg forum.ConnConfig) error {
	db, err := sqlx.Connect("sqlserver", forum.SanitizeDSN("mssql", cfg.DSN))
	if err != nil {
		return fmt.Errorf("mssql connect: %w", err)
	}
	cfg.Apply(db)

	c.SQLForum = forum.NewSQLForum(db, "sqlserver", cfg.TablePrefix)
	return nil
}

func (c *Connector) DriverName() string { return "mssql" }
