package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/aqasim81/schema-migrator/internal/parser"
)

func TestParseMySQL(t *testing.T) {
	t.Parallel()

	stmts, err := parser.ParseMySQL("CREATE TABLE `Blogs` (`Id` int NOT NULL AUTO_INCREMENT, PRIMARY KEY (`Id`));\n" +
		"ALTER TABLE `Blogs` ADD `Url` varchar(200) NULL;\n" +
		"DROP TABLE `Posts`;\n")

	require.NoError(t, err)
	require.Len(t, stmts, 3)

	_, ok := stmts[0].(*sqlparser.CreateTable)
	assert.True(t, ok, "expected CreateTable")

	_, ok = stmts[1].(*sqlparser.AlterTable)
	assert.True(t, ok, "expected AlterTable")

	_, ok = stmts[2].(*sqlparser.DropTable)
	assert.True(t, ok, "expected DropTable")
}

func TestParseMySQL_empty(t *testing.T) {
	t.Parallel()

	stmts, err := parser.ParseMySQL(" \n ")

	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestParseMySQL_invalid(t *testing.T) {
	t.Parallel()

	_, err := parser.ParseMySQL("CREATE TABLE (;")

	require.Error(t, err)
}
