package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"
)

// ParseMySQL splits a MySQL script into statements and parses each one.
// Empty input yields no statements.
func ParseMySQL(sql string) ([]sqlparser.Statement, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, nil
	}

	p := sqlparser.NewTestParser()

	pieces, err := p.SplitStatementToPieces(sql)
	if err != nil {
		return nil, fmt.Errorf("splitting MySQL statements: %w", err)
	}

	stmts := make([]sqlparser.Statement, 0, len(pieces))

	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}

		stmt, err := p.Parse(piece)
		if err != nil {
			return nil, fmt.Errorf("parsing MySQL statement %q: %w", piece, err)
		}

		stmts = append(stmts, stmt)
	}

	return stmts, nil
}
