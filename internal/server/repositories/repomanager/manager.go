// Package repomanager defines the factory through which services obtain
// repositories bound to either the shared connection pool or a transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/chatter/internal/dbx"
	"github.com/dmitrijs2005/chatter/internal/server/repositories/chats"
	"github.com/dmitrijs2005/chatter/internal/server/repositories/messages"
	"github.com/dmitrijs2005/chatter/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/chatter/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to the provided DBTX, so the
// same code path works on *sql.DB and inside a transaction.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Chats(db dbx.DBTX) chats.Repository
	Messages(db dbx.DBTX) messages.Repository

	// RunMigrations brings the schema up to date.
	RunMigrations(ctx context.Context, db *sql.DB) error
}
