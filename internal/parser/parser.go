// Package parser parses raw PostgreSQL (pg_query) and MySQL (vitess) SQL so
// migrations can be inspected and generated SQL validated.
package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ParseResult holds the parsed AST and original SQL.
type ParseResult struct {
	Stmts []*pg_query.RawStmt
	SQL   string
}

// Parse parses a PostgreSQL SQL string and returns the AST.
// Returns an empty result (zero statements) for empty or whitespace-only input.
func Parse(sql string) (*ParseResult, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return &ParseResult{SQL: sql}, nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	return &ParseResult{
		Stmts: tree.Stmts,
		SQL:   sql,
	}, nil
}

// RequiresNoTransaction parses the SQL and reports whether any statement is
// one PostgreSQL refuses to run inside a transaction block: CREATE or DROP
// INDEX CONCURRENTLY, VACUUM, CREATE or DROP DATABASE, ALTER SYSTEM.
func RequiresNoTransaction(sql string) (bool, error) {
	result, err := Parse(sql)
	if err != nil {
		return false, fmt.Errorf("parsing SQL for transaction detection: %w", err)
	}

	for _, stmt := range result.Stmts {
		switch node := stmt.Stmt.Node.(type) {
		case *pg_query.Node_IndexStmt:
			if node.IndexStmt != nil && node.IndexStmt.Concurrent {
				return true, nil
			}
		case *pg_query.Node_DropStmt:
			if node.DropStmt != nil && node.DropStmt.Concurrent {
				return true, nil
			}
		case *pg_query.Node_VacuumStmt, *pg_query.Node_CreatedbStmt,
			*pg_query.Node_DropdbStmt, *pg_query.Node_AlterSystemStmt:
			return true, nil
		}
	}

	return false, nil
}
