package sqlserver_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/differ"
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
	"github.com/aqasim81/schema-migrator/internal/sqlgen"
	"github.com/aqasim81/schema-migrator/internal/sqlgen/sqlserver"
)

func generate(t *testing.T, idempotent bool, ops ...operations.Operation) []sqlgen.Command {
	t.Helper()

	cmds, err := sqlgen.New(sqlserver.New(), sqlgen.WithIdempotent(idempotent)).Generate(ops)
	require.NoError(t, err)

	return cmds
}

func sqlOf(cmds []sqlgen.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.SQL
	}

	return out
}

func postsTable() schema.Table {
	return schema.Table{
		Name: "Posts",
		Columns: []schema.Column{
			{Name: "Id", Type: schema.Int32(), Identity: true},
			{Name: "BlogId", Type: schema.Int32()},
			{Name: "Title", Type: schema.String(200), Nullable: true},
			{Name: "Published", Type: schema.Boolean(), DefaultValue: ptr(schema.BoolValue(false))},
		},
		PrimaryKey: &schema.Key{Name: "PK_Posts", Columns: []string{"Id"}},
		ForeignKeys: []schema.ForeignKey{{
			Name:             "FK_Posts_Blogs_BlogId",
			Columns:          []string{"BlogId"},
			PrincipalTable:   "Blogs",
			PrincipalColumns: []string{"Id"},
			OnDelete:         schema.Cascade,
		}},
	}
}

func ptr[T any](v T) *T { return &v }

const dropTitleDefault = "DECLARE @var sysname;\n" +
	"SELECT @var = [d].[name]\n" +
	"FROM [sys].[default_constraints] [d]\n" +
	"INNER JOIN [sys].[columns] [c] ON [d].[parent_column_id] = [c].[column_id] AND [d].[parent_object_id] = [c].[object_id]\n" +
	"WHERE ([d].[parent_object_id] = OBJECT_ID(N'[Posts]') AND [c].[name] = N'Title');\n" +
	"IF @var IS NOT NULL EXEC(N'ALTER TABLE [Posts] DROP CONSTRAINT [' + @var + '];');\n"

func TestGenerate_CreateTable(t *testing.T) {
	t.Parallel()

	table := postsTable()
	table.Comment = "Blog posts"

	cmds := generate(t, false, operations.CreateTable{Table: table})

	assert.Equal(t, []string{
		"CREATE TABLE [Posts] (\n" +
			"    [Id] int NOT NULL IDENTITY,\n" +
			"    [BlogId] int NOT NULL,\n" +
			"    [Title] nvarchar(200) NULL,\n" +
			"    [Published] bit NOT NULL DEFAULT CAST(0 AS bit),\n" +
			"    CONSTRAINT [FK_Posts_Blogs_BlogId] FOREIGN KEY ([BlogId]) REFERENCES [Blogs] ([Id]) ON DELETE CASCADE,\n" +
			"    CONSTRAINT [PK_Posts] PRIMARY KEY ([Id])\n" +
			");\n",
		"DECLARE @defaultSchema sysname = SCHEMA_NAME();\n" +
			"EXEC sp_addextendedproperty 'MS_Description', N'Blog posts', 'SCHEMA', @defaultSchema, 'TABLE', N'Posts';\n",
	}, sqlOf(cmds))

	for _, c := range cmds {
		assert.Equal(t, sqlgen.BoundaryAlone, c.Boundary)
		assert.Equal(t, operations.KindCreateTable, c.Operation.Kind())
	}
}

func TestGenerate_idempotentGuards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		op   operations.Operation
		want string
	}{
		{
			name: "drop table",
			op:   operations.DropTable{TableRef: operations.On("", "Posts")},
			want: "IF OBJECT_ID(N'[Posts]') IS NOT NULL\n" +
				"BEGIN\n" +
				"    DROP TABLE [Posts];\n" +
				"END;\n",
		},
		{
			name: "add column",
			op: operations.AddColumn{
				TableRef: operations.On("blog", "Posts"),
				Column:   schema.Column{Name: "Slug", Type: schema.AnsiString(100), Nullable: true},
			},
			want: "IF COL_LENGTH(N'[blog].[Posts]', N'Slug') IS NULL\n" +
				"BEGIN\n" +
				"    ALTER TABLE [blog].[Posts] ADD [Slug] varchar(100) NULL;\n" +
				"END;\n",
		},
		{
			name: "create index",
			op: operations.CreateIndex{
				TableRef: operations.On("", "Posts"),
				Index:    schema.Index{Name: "IX_Posts_BlogId", Columns: []string{"BlogId"}},
			},
			want: "IF NOT EXISTS (SELECT * FROM [sys].[indexes] WHERE [name] = N'IX_Posts_BlogId' AND [object_id] = OBJECT_ID(N'[Posts]'))\n" +
				"BEGIN\n" +
				"    CREATE INDEX [IX_Posts_BlogId] ON [Posts] ([BlogId]);\n" +
				"END;\n",
		},
		{
			name: "drop sequence",
			op:   operations.DropSequence{Name: "OrderNumbers"},
			want: "IF OBJECT_ID(N'[OrderNumbers]', N'SO') IS NOT NULL\n" +
				"BEGIN\n" +
				"    DROP SEQUENCE [OrderNumbers];\n" +
				"END;\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, []string{tt.want}, sqlOf(generate(t, true, tt.op)))
		})
	}
}

func TestGenerate_renames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		op   operations.Operation
		want []string
	}{
		{
			name: "column",
			op:   operations.RenameColumn{TableRef: operations.On("", "Posts"), Name: "Title", NewName: "Heading"},
			want: []string{"EXEC sp_rename N'[Posts].[Title]', N'Heading', N'COLUMN';\n"},
		},
		{
			name: "index",
			op: operations.RenameIndex{
				TableRef: operations.On("blog", "Posts"), Name: "IX_A", NewName: "IX_B",
				Index: schema.Index{Name: "IX_B", Columns: []string{"Title"}},
			},
			want: []string{"EXEC sp_rename N'[blog].[Posts].[IX_A]', N'IX_B', N'INDEX';\n"},
		},
		{
			name: "table to another schema",
			op: operations.RenameTable{
				TableRef: operations.On("dbo", "Posts"), NewSchema: "archive", NewName: "OldPosts",
			},
			want: []string{
				"EXEC sp_rename N'[dbo].[Posts]', N'OldPosts';\n",
				"ALTER SCHEMA [archive] TRANSFER [dbo].[OldPosts];\n",
			},
		},
		{
			name: "table to the default schema",
			op: operations.RenameTable{
				TableRef: operations.On("archive", "Posts"), NewName: "Posts",
			},
			want: []string{
				"DECLARE @defaultSchema sysname = SCHEMA_NAME();\n" +
					"EXEC(N'ALTER SCHEMA [' + @defaultSchema + N'] TRANSFER [archive].[Posts];');\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, sqlOf(generate(t, false, tt.op)))
		})
	}
}

func TestGenerate_DropColumnDropsDefaultConstraintFirst(t *testing.T) {
	t.Parallel()

	cmds := generate(t, false, operations.DropColumn{TableRef: operations.On("", "Posts"), Name: "Title"})

	assert.Equal(t, []string{
		dropTitleDefault,
		"ALTER TABLE [Posts] DROP COLUMN [Title];\n",
	}, sqlOf(cmds))
}

func TestGenerate_AlterColumn(t *testing.T) {
	t.Parallel()

	old := schema.Column{Name: "Title", Type: schema.String(200), Nullable: true}
	changed := schema.Column{Name: "Title", Type: schema.String(300), DefaultValue: ptr(schema.StringValue(""))}

	cmds := generate(t, false, operations.AlterColumn{TableRef: operations.On("", "Posts"), Old: old, New: changed})

	assert.Equal(t, []string{
		dropTitleDefault,
		"ALTER TABLE [Posts] ALTER COLUMN [Title] nvarchar(300) NOT NULL;\n",
		"ALTER TABLE [Posts] ADD DEFAULT N'' FOR [Title];\n",
	}, sqlOf(cmds))
}

func TestGenerate_AlterColumnIdentityRebuilds(t *testing.T) {
	t.Parallel()

	old := schema.Column{Name: "Number", Type: schema.Int32()}
	changed := schema.Column{Name: "Number", Type: schema.Int32(), Identity: true}

	cmds := generate(t, false, operations.AlterColumn{TableRef: operations.On("", "Posts"), Old: old, New: changed})

	got := sqlOf(cmds)
	require.Len(t, got, 3)
	assert.Contains(t, got[1], "ALTER TABLE [Posts] DROP COLUMN [Number];")
	assert.Equal(t, "ALTER TABLE [Posts] ADD [Number] int NOT NULL IDENTITY;\n", got[2])

	for _, c := range cmds {
		assert.Equal(t, operations.KindAlterColumn, c.Operation.Kind())
	}
}

func TestGenerate_CreateIndexOptions(t *testing.T) {
	t.Parallel()

	cmds := generate(t, false, operations.CreateIndex{
		TableRef: operations.On("", "Posts"),
		Index: schema.Index{
			Name:        "IX_Posts_Title",
			Columns:     []string{"Title"},
			Unique:      true,
			Filter:      "[Title] IS NOT NULL",
			Annotations: schema.Annotations{sqlserver.AnnotationClustered: schema.BoolValue(false)},
		},
	})

	assert.Equal(t, []string{
		"CREATE UNIQUE NONCLUSTERED INDEX [IX_Posts_Title] ON [Posts] ([Title]) WHERE [Title] IS NOT NULL;\n",
	}, sqlOf(cmds))
}

func TestGenerate_DropIndexIsScopedToTable(t *testing.T) {
	t.Parallel()

	cmds := generate(t, false, operations.DropIndex{TableRef: operations.On("blog", "Posts"), Name: "IX_Posts_Title"})

	assert.Equal(t, []string{"DROP INDEX [IX_Posts_Title] ON [blog].[Posts];\n"}, sqlOf(cmds))
}

func TestGenerate_sequences(t *testing.T) {
	t.Parallel()

	seq := schema.Sequence{Schema: "sales", Name: "OrderNumbers", Type: schema.Int64(), StartValue: 1, IncrementBy: 1}
	restarted := seq
	restarted.StartValue = 1000
	bounded := restarted
	bounded.MaxValue = ptr(int64(9999))
	bounded.Cyclic = true

	cmds := generate(t, false,
		operations.EnsureSchema{Name: "sales"},
		operations.CreateSequence{Sequence: seq},
		operations.AlterSequence{Old: seq, New: restarted},
		operations.AlterSequence{Old: seq, New: bounded},
	)

	assert.Equal(t, []string{
		"IF SCHEMA_ID(N'sales') IS NULL EXEC(N'CREATE SCHEMA [sales];');\n",
		"CREATE SEQUENCE [sales].[OrderNumbers] AS bigint START WITH 1 INCREMENT BY 1 NO MINVALUE NO MAXVALUE NO CYCLE;\n",
		"ALTER SEQUENCE [sales].[OrderNumbers] RESTART WITH 1000;\n",
		"ALTER SEQUENCE [sales].[OrderNumbers] RESTART WITH 1000;\n",
		"ALTER SEQUENCE [sales].[OrderNumbers] INCREMENT BY 1 NO MINVALUE MAXVALUE 9999 CYCLE;\n",
	}, sqlOf(cmds))
}

func TestGenerate_CommentChanges(t *testing.T) {
	t.Parallel()

	cmds := generate(t, false,
		operations.AlterTable{TableRef: operations.On("blog", "Posts"), Comment: "", OldComment: "Posts"},
		operations.AlterTable{TableRef: operations.On("blog", "Posts"), Comment: "Same", OldComment: "Same"},
	)

	assert.Equal(t, []string{
		"EXEC sp_dropextendedproperty 'MS_Description', 'SCHEMA', N'blog', 'TABLE', N'Posts';\n",
	}, sqlOf(cmds))
}

func TestGenerate_rejectsLongIdentifiers(t *testing.T) {
	t.Parallel()

	table := postsTable()
	table.Name = strings.Repeat("p", 129)

	cmds, err := sqlgen.New(sqlserver.New()).Generate([]operations.Operation{
		operations.EnsureSchema{Name: "blog"},
		operations.CreateTable{Table: table},
	})

	require.ErrorIs(t, err, sqlgen.ErrUnsupportedOperation)
	assert.Nil(t, cmds)

	var unsupported *sqlgen.UnsupportedOperationError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, sqlserver.Name, unsupported.Dialect)
	assert.Equal(t, operations.KindCreateTable, unsupported.Kind)
}

func TestScript_appendsGO(t *testing.T) {
	t.Parallel()

	cmds := generate(t, false,
		operations.DropTable{TableRef: operations.On("", "A")},
		operations.DropTable{TableRef: operations.On("", "B")},
	)

	assert.Equal(t,
		"DROP TABLE [A];\nGO\n\nDROP TABLE [B];\nGO\n\n",
		sqlgen.Script(cmds, sqlserver.New()))
}

func TestDialect_Literal(t *testing.T) {
	t.Parallel()

	d := sqlserver.New()
	at := time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)

	tests := []struct {
		name string
		v    schema.Value
		typ  schema.ColumnType
		want string
	}{
		{name: "null", v: schema.NullValue(), typ: schema.String(0), want: "NULL"},
		{name: "unicode", v: schema.StringValue("O'Brien"), typ: schema.String(0), want: "N'O''Brien'"},
		{name: "ansi", v: schema.StringValue("x"), typ: schema.AnsiString(10), want: "'x'"},
		{name: "true", v: schema.BoolValue(true), typ: schema.Boolean(), want: "CAST(1 AS bit)"},
		{name: "int", v: schema.IntValue(-7), typ: schema.Int64(), want: "-7"},
		{name: "float", v: schema.FloatValue(0.25), typ: schema.Float64(), want: "0.25"},
		{name: "bytes", v: schema.BytesValue([]byte{1, 0xab}), typ: schema.Binary(0), want: "0x01AB"},
		{name: "date", v: schema.TimeValue(at), typ: schema.Date(), want: "'2024-01-02'"},
		{name: "datetime", v: schema.TimeValue(at), typ: schema.DateTime(), want: "'2024-01-02T03:04:05.0000006'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := d.Literal(tt.v, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialect_StoreType(t *testing.T) {
	t.Parallel()

	d := sqlserver.New()

	tests := []struct {
		typ  schema.ColumnType
		want string
	}{
		{typ: schema.String(0), want: "nvarchar(max)"},
		{typ: schema.String(4000), want: "nvarchar(4000)"},
		{typ: schema.String(4001), want: "nvarchar(max)"},
		{typ: schema.AnsiString(8000), want: "varchar(8000)"},
		{typ: schema.FixedString(3), want: "nchar(3)"},
		{typ: schema.Decimal(0, 0), want: "decimal(18,2)"},
		{typ: schema.Decimal(10, 4), want: "decimal(10,4)"},
		{typ: schema.GUID(), want: "uniqueidentifier"},
		{typ: schema.Binary(16), want: "varbinary(16)"},
		{typ: schema.DateTimeOffset(), want: "datetimeoffset"},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			t.Parallel()

			got, err := d.StoreType(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := d.StoreType(schema.ColumnType{})
	require.ErrorIs(t, err, schema.ErrInvalidType)
}

func titledPosts(required bool) *schema.Snapshot {
	return schema.NewBuilder().
		Table("", "posts", func(tb *schema.TableBuilder) {
			tb.Column("id", schema.Int32()).Identity()

			title := tb.Column("title", schema.String(200))
			if required {
				title.Default(schema.StringValue(""))
			} else {
				title.Nullable()
			}

			tb.PrimaryKey("id")
			tb.Index("title").Named("IX_posts_title")
		}).
		MustBuild()
}

func diffSQL(t *testing.T, from, to *schema.Snapshot) []string {
	t.Helper()

	gen := sqlgen.New(sqlserver.New())

	ops, err := differ.New(differ.WithTarget(gen)).Diff(from, to)
	require.NoError(t, err)

	cmds, err := gen.Generate(ops)
	require.NoError(t, err)

	return sqlOf(cmds)
}

func TestDiff_nullabilityChangeRebuildsCoveringIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		from, to *schema.Snapshot
		alter    string
	}{
		{
			name:  "to required",
			from:  titledPosts(false),
			to:    titledPosts(true),
			alter: "ALTER TABLE [posts] ALTER COLUMN [title] nvarchar(200) NOT NULL;",
		},
		{
			name:  "to nullable",
			from:  titledPosts(true),
			to:    titledPosts(false),
			alter: "ALTER TABLE [posts] ALTER COLUMN [title] nvarchar(200) NULL;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			script := strings.Join(diffSQL(t, tt.from, tt.to), "")

			drop := strings.Index(script, "DROP INDEX [IX_posts_title] ON [posts];")
			alter := strings.Index(script, tt.alter)
			create := strings.Index(script, "CREATE INDEX [IX_posts_title] ON [posts] ([title]);")

			require.NotEqual(t, -1, drop, script)
			require.NotEqual(t, -1, alter, script)
			require.NotEqual(t, -1, create, script)
			assert.Less(t, drop, alter, "the index goes before ALTER COLUMN")
			assert.Less(t, alter, create, "the index comes back after ALTER COLUMN")
		})
	}
}

func TestDiff_defaultChangeKeepsCoveringIndex(t *testing.T) {
	t.Parallel()

	to := titledPosts(true)
	to.Tables[0].Columns[1].DefaultValue = ptr(schema.StringValue("untitled"))

	script := strings.Join(diffSQL(t, titledPosts(true), to), "")

	assert.NotContains(t, script, "DROP INDEX")
	assert.NotContains(t, script, "ALTER COLUMN")
	assert.Contains(t, script, "ADD DEFAULT N'untitled' FOR [title];")
}

func TestAlterBlockedByIndex(t *testing.T) {
	t.Parallel()

	base := schema.Column{Name: "title", Type: schema.String(200), Nullable: true}

	tests := []struct {
		name string
		edit func(*schema.Column)
		want bool
	}{
		{name: "nullability", edit: func(c *schema.Column) { c.Nullable = false }, want: true},
		{name: "collation", edit: func(c *schema.Column) { c.Collation = "Latin1_General_BIN" }, want: true},
		{name: "type", edit: func(c *schema.Column) { c.Type = schema.String(400) }, want: true},
		{name: "default", edit: func(c *schema.Column) { c.DefaultValue = ptr(schema.StringValue("x")) }},
		{name: "comment", edit: func(c *schema.Column) { c.Comment = "headline" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := base.Clone()
			tt.edit(&n)

			assert.Equal(t, tt.want, sqlserver.New().AlterBlockedByIndex(&base, &n))
		})
	}
}
