package repository

import (
	"context"
)

// CommandKind selects how raw passthrough SQL text is interpreted
type CommandKind int

const (
	// CommandText executes the SQL string as-is
	CommandText CommandKind = iota
	// CommandProcedure treats the SQL string as a stored procedure name
	// and renders a CALL statement for it
	CommandProcedure
)

// Command is a raw parameterized statement for operations outside the
// generic CRUD surface
type Command struct {
	Kind CommandKind
	SQL  string // statement text, or procedure name for CommandProcedure
	Args []any
}

// NewCommand builds a text command
func NewCommand(sql string, args ...any) Command {
	return Command{Kind: CommandText, SQL: sql, Args: args}
}

// NewProcedure builds a stored-procedure command
func NewProcedure(name string, args ...any) Command {
	return Command{Kind: CommandProcedure, SQL: name, Args: args}
}

// text renders the executable statement for the command
func (c Command) text() string {
	if c.Kind == CommandProcedure {
		return "CALL " + c.SQL + "(" + placeholders(len(c.Args)) + ")"
	}
	return c.SQL
}

// Repository defines the generic repository contract for one entity type
// bound to one table. Not-found and zero-rows-affected are reported as
// nil/false results, never as errors.
type Repository[T any] interface {
	// Queries
	GetByID(ctx context.Context, id int64) (*T, error)
	// GetByIDs returns a slice aligned positionally with ids: a missing
	// id yields a nil slot, never a shorter slice.
	GetByIDs(ctx context.Context, ids []int64) ([]*T, error)
	GetAll(ctx context.Context) ([]T, error)
	Count(ctx context.Context) (int64, error)
	Exists(ctx context.Context, id int64) (bool, error)

	// Commands
	Add(ctx context.Context, entity *T) (int64, error)
	AddAll(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) (bool, error)
	UpdateAll(ctx context.Context, entities []*T) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context, ids []int64) (bool, error)

	// Raw passthroughs
	Execute(ctx context.Context, cmd Command) (int64, error)
	ExecuteScalar(ctx context.Context, dest any, cmd Command) error
	// ExecuteBatch runs all commands inside one transaction
	ExecuteBatch(ctx context.Context, cmds []Command) error
}
