package differ_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/differ"
	"github.com/aqasim81/schema-migrator/internal/operations"
	"github.com/aqasim81/schema-migrator/internal/schema"
)

type transferTarget bool

func (t transferTarget) SupportsSchemaTransfer() bool { return bool(t) }

func kinds(ops []operations.Operation) []operations.Kind {
	out := make([]operations.Kind, len(ops))
	for i, op := range ops {
		out[i] = op.Kind()
	}

	return out
}

func blogs(t *schema.TableBuilder) {
	t.Column("Id", schema.Int32()).Identity()
	t.Column("Url", schema.String(200))
	t.PrimaryKey("Id")
}

func posts(t *schema.TableBuilder) {
	t.Column("Id", schema.Int32()).Identity()
	t.Column("BlogId", schema.Int32())
	t.PrimaryKey("Id")
	t.ForeignKey([]string{"BlogId"}, "", "Blogs", "Id").OnDelete(schema.Cascade)
	t.Index("BlogId")
}

func TestDiff_createTablesFromEmpty(t *testing.T) {
	t.Parallel()

	model := schema.NewBuilder().Table("", "Blogs", blogs).Table("", "Posts", posts).MustBuild()

	ops, err := differ.Diff(nil, model)
	require.NoError(t, err)

	assert.Equal(t, []operations.Kind{
		operations.KindCreateTable,
		operations.KindCreateTable,
		operations.KindCreateIndex,
	}, kinds(ops))

	create := ops[1].(operations.CreateTable)
	assert.Equal(t, "Posts", create.Table.Name)
	assert.Empty(t, create.Table.Indexes, "indexes are created separately")
	require.Len(t, create.Table.ForeignKeys, 1)
	assert.Equal(t, "FK_Posts_Blogs_BlogId", create.Table.ForeignKeys[0].Name)
}

func TestDiff_principalCreatedBeforeDependent(t *testing.T) {
	t.Parallel()

	model := schema.NewBuilder().Table("", "Posts", posts).Table("", "Blogs", blogs).MustBuild()

	ops, err := differ.Diff(nil, model)
	require.NoError(t, err)
	require.Len(t, ops, 3)

	assert.Equal(t, schema.QualifiedName{Name: "Blogs"}, ops[0].Target())
	assert.Equal(t, schema.QualifiedName{Name: "Posts"}, ops[1].Target())
	assert.Equal(t, operations.KindCreateIndex, ops[2].Kind())
}

func cyclic(b *schema.Builder) *schema.Builder {
	return b.
		Table("", "A", func(t *schema.TableBuilder) {
			t.Column("Id", schema.Int32())
			t.Column("BId", schema.Int32()).Nullable()
			t.PrimaryKey("Id")
			t.ForeignKey([]string{"BId"}, "", "B", "Id")
		}).
		Table("", "B", func(t *schema.TableBuilder) {
			t.Column("Id", schema.Int32())
			t.Column("AId", schema.Int32()).Nullable()
			t.PrimaryKey("Id")
			t.ForeignKey([]string{"AId"}, "", "A", "Id")
		})
}

func TestDiff_foreignKeyCycleOnCreate(t *testing.T) {
	t.Parallel()

	ops, err := differ.Diff(nil, cyclic(schema.NewBuilder()).MustBuild())
	require.NoError(t, err)

	assert.Equal(t, []operations.Kind{
		operations.KindCreateTable,
		operations.KindCreateTable,
		operations.KindAddForeignKey,
		operations.KindAddForeignKey,
	}, kinds(ops))

	assert.Empty(t, ops[0].(operations.CreateTable).Table.ForeignKeys)
	assert.Equal(t, "FK_A_B_BId", ops[2].(operations.AddForeignKey).ForeignKey.Name)
}

func TestDiff_foreignKeyCycleOnDrop(t *testing.T) {
	t.Parallel()

	ops, err := differ.Diff(cyclic(schema.NewBuilder()).MustBuild(), nil)
	require.NoError(t, err)

	assert.Equal(t, []operations.Kind{
		operations.KindDropForeignKey,
		operations.KindDropForeignKey,
		operations.KindDropTable,
		operations.KindDropTable,
	}, kinds(ops))
}

func TestDiff_dropsDependentBeforePrincipal(t *testing.T) {
	t.Parallel()

	model := schema.NewBuilder().Table("", "Blogs", blogs).Table("", "Posts", posts).MustBuild()

	ops, err := differ.Diff(model, nil)
	require.NoError(t, err)

	require.Len(t, ops, 2)
	assert.Equal(t, operations.DropTable{TableRef: operations.On("", "Posts")}, ops[0])
	assert.Equal(t, operations.DropTable{TableRef: operations.On("", "Blogs")}, ops[1])
}

func TestDiff_identicalSnapshotsProduceNothing(t *testing.T) {
	t.Parallel()

	a := schema.NewBuilder().Table("", "Blogs", blogs).Table("", "Posts", posts).MustBuild()
	b := schema.NewBuilder().Table("", "Blogs", blogs).Table("", "Posts", posts).MustBuild()

	ops, err := differ.Diff(a, b)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestDiff_columnChanges(t *testing.T) {
	t.Parallel()

	from := schema.NewBuilder().Table("", "Blogs", blogs).MustBuild()
	to := schema.NewBuilder().Table("", "Blogs", func(t *schema.TableBuilder) {
		t.Column("Id", schema.Int32()).Identity()
		t.Column("Url", schema.String(500)).Nullable()
		t.Column("Rating", schema.Int32()).Default(schema.IntValue(0))
		t.PrimaryKey("Id")
	}).MustBuild()

	ops, err := differ.Diff(from, to)
	require.NoError(t, err)

	require.Equal(t, []operations.Kind{operations.KindAlterColumn, operations.KindAddColumn}, kinds(ops))

	alter := ops[0].(operations.AlterColumn)
	assert.Equal(t, "Url", alter.Old.Name)
	assert.Equal(t, schema.String(200), alter.Old.Type)
	assert.False(t, alter.Old.Nullable)
	assert.Equal(t, schema.String(500), alter.New.Type)
	assert.True(t, alter.New.Nullable)

	add := ops[1].(operations.AddColumn)
	assert.Equal(t, "Rating", add.Column.Name)
	assert.Equal(t, schema.IntValue(0), *add.Column.DefaultValue)
}

func renameColumnModels() (*schema.Snapshot, *schema.Snapshot) {
	from := schema.NewBuilder().Table("", "People", func(t *schema.TableBuilder) {
		t.Column("Id", schema.Int32())
		t.Column("Name", schema.String(50))
		t.PrimaryKey("Id")
	}).MustBuild()
	to := schema.NewBuilder().Table("", "People", func(t *schema.TableBuilder) {
		t.Column("Id", schema.Int32())
		t.Column("FullName", schema.String(50))
		t.PrimaryKey("Id")
	}).MustBuild()

	return from, to
}

func TestDiff_columnRename(t *testing.T) {
	t.Parallel()

	from, to := renameColumnModels()

	ops, err := differ.Diff(from, to)
	require.NoError(t, err)

	assert.Equal(t, []operations.Operation{
		operations.RenameColumn{TableRef: operations.On("", "People"), Name: "Name", NewName: "FullName"},
	}, ops)
}

func TestDiff_columnRenameDetectionDisabled(t *testing.T) {
	t.Parallel()

	from, to := renameColumnModels()
	opts := differ.DefaultRenameOptions()
	opts.Columns = false

	ops, err := differ.New(differ.WithRenameDetection(opts)).Diff(from, to)
	require.NoError(t, err)

	assert.Equal(t, []operations.Kind{operations.KindAddColumn, operations.KindDropColumn}, kinds(ops))
}

func renameTableModels() (*schema.Snapshot, *schema.Snapshot) {
	columns := func(t *schema.TableBuilder) {
		t.Column("Id", schema.Int32())
		t.Column("Name", schema.String(100))
		t.Column("Email", schema.String(100)).Nullable()
		t.PrimaryKey("Id")
	}

	return schema.NewBuilder().Table("", "Customers", columns).MustBuild(),
		schema.NewBuilder().Table("", "Clients", columns).MustBuild()
}

func TestDiff_tableRename(t *testing.T) {
	t.Parallel()

	from, to := renameTableModels()

	ops, err := differ.Diff(from, to)
	require.NoError(t, err)

	require.Equal(t, []operations.Kind{
		operations.KindDropPrimaryKey,
		operations.KindRenameTable,
		operations.KindAddPrimaryKey,
	}, kinds(ops))

	assert.Equal(t, operations.DropPrimaryKey{TableRef: operations.On("", "Customers"), Name: "PK_Customers"}, ops[0])
	assert.Equal(t, operations.RenameTable{TableRef: operations.On("", "Customers"), NewName: "Clients"}, ops[1])
	assert.Equal(t, "PK_Clients", ops[2].(operations.AddPrimaryKey).Key.Name)
}

func TestDiff_tableRenameBelowThreshold(t *testing.T) {
	t.Parallel()

	from, to := renameTableModels()
	opts := differ.DefaultRenameOptions()
	opts.MinSharedColumns = 4

	ops, err := differ.New(differ.WithRenameDetection(opts)).Diff(from, to)
	require.NoError(t, err)

	assert.Equal(t, []operations.Kind{operations.KindCreateTable, operations.KindDropTable}, kinds(ops))
}

func TestDiff_schemaMove(t *testing.T) {
	t.Parallel()

	orders := func(t *schema.TableBuilder) {
		t.Column("Id", schema.Int32())
		t.PrimaryKey("Id").Named("PK_Orders")
	}
	from := schema.NewBuilder().Table("", "Orders", orders).MustBuild()
	to := schema.NewBuilder().Table("sales", "Orders", orders).MustBuild()

	t.Run("without schema transfer", func(t *testing.T) {
		t.Parallel()

		ops, err := differ.Diff(from, to)
		require.NoError(t, err)

		assert.Equal(t, []operations.Kind{
			operations.KindEnsureSchema,
			operations.KindCreateTable,
			operations.KindDropTable,
		}, kinds(ops))
	})

	t.Run("with schema transfer", func(t *testing.T) {
		t.Parallel()

		ops, err := differ.New(differ.WithTarget(transferTarget(true))).Diff(from, to)
		require.NoError(t, err)

		assert.Equal(t, []operations.Operation{
			operations.EnsureSchema{Name: "sales"},
			operations.RenameTable{TableRef: operations.On("", "Orders"), NewSchema: "sales", NewName: "Orders"},
		}, ops)
	})
}

func TestDiff_keyColumnTypeChangeRebuildsDependents(t *testing.T) {
	t.Parallel()

	from := schema.NewBuilder().Table("", "Blogs", blogs).Table("", "Posts", func(t *schema.TableBuilder) {
		t.Column("Id", schema.Int32())
		t.Column("BlogId", schema.Int32())
		t.PrimaryKey("Id")
		t.ForeignKey([]string{"BlogId"}, "", "Blogs", "Id")
	}).MustBuild()

	to := schema.NewBuilder().Table("", "Blogs", func(t *schema.TableBuilder) {
		t.Column("Id", schema.Int64()).Identity()
		t.Column("Url", schema.String(200))
		t.PrimaryKey("Id")
	}).Table("", "Posts", func(t *schema.TableBuilder) {
		t.Column("Id", schema.Int32())
		t.Column("BlogId", schema.Int64())
		t.PrimaryKey("Id")
		t.ForeignKey([]string{"BlogId"}, "", "Blogs", "Id")
	}).MustBuild()

	ops, err := differ.Diff(from, to)
	require.NoError(t, err)

	assert.Equal(t, []operations.Kind{
		operations.KindDropForeignKey,
		operations.KindDropPrimaryKey,
		operations.KindAlterColumn,
		operations.KindAlterColumn,
		operations.KindAddPrimaryKey,
		operations.KindAddForeignKey,
	}, kinds(ops))

	assert.Equal(t, schema.QualifiedName{Name: "Blogs"}, ops[2].Target())
	assert.Equal(t, schema.QualifiedName{Name: "Posts"}, ops[3].Target())
}

func TestDiff_indexChanges(t *testing.T) {
	t.Parallel()

	table := func(name string, cols ...string) func(*schema.TableBuilder) {
		return func(t *schema.TableBuilder) {
			t.Column("Id", schema.Int32())
			t.Column("Name", schema.String(50))
			t.Column("Email", schema.String(50))
			t.PrimaryKey("Id")
			t.Index(cols...).Named(name)
		}
	}

	tests := []struct {
		name string
		from func(*schema.TableBuilder)
		to   func(*schema.TableBuilder)
		want []operations.Operation
	}{
		{
			name: "rename only",
			from: table("IX_Old", "Name"),
			to:   table("IX_New", "Name"),
			want: []operations.Operation{
				operations.RenameIndex{
					TableRef: operations.On("", "T"),
					Name:     "IX_Old",
					NewName:  "IX_New",
					Index:    schema.Index{Name: "IX_New", Columns: []string{"Name"}},
				},
			},
		},
		{
			name: "columns change",
			from: table("IX_T", "Name"),
			to:   table("IX_T", "Email"),
			want: []operations.Operation{
				operations.DropIndex{TableRef: operations.On("", "T"), Name: "IX_T"},
				operations.CreateIndex{
					TableRef: operations.On("", "T"),
					Index:    schema.Index{Name: "IX_T", Columns: []string{"Email"}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ops, err := differ.Diff(
				schema.NewBuilder().Table("", "T", tt.from).MustBuild(),
				schema.NewBuilder().Table("", "T", tt.to).MustBuild(),
			)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ops)
		})
	}
}

func TestDiff_sequences(t *testing.T) {
	t.Parallel()

	from := schema.NewBuilder().
		Sequence("", "Orders", nil).
		Sequence("", "Legacy", nil).
		MustBuild()
	to := schema.NewBuilder().
		Sequence("", "Orders", func(s *schema.SequenceBuilder) { s.IncrementBy(10) }).
		Sequence("billing", "Invoices", nil).
		MustBuild()

	ops, err := differ.Diff(from, to)
	require.NoError(t, err)

	assert.Equal(t, []operations.Kind{
		operations.KindEnsureSchema,
		operations.KindAlterSequence,
		operations.KindCreateSequence,
		operations.KindDropSequence,
	}, kinds(ops))
	assert.Equal(t, int64(10), ops[1].(operations.AlterSequence).New.IncrementBy)
	assert.Equal(t, operations.DropSequence{Name: "Legacy"}, ops[3])
}

func TestDiff_tableComment(t *testing.T) {
	t.Parallel()

	from := schema.NewBuilder().Table("", "Blogs", blogs).MustBuild()
	to := schema.NewBuilder().Table("", "Blogs", func(t *schema.TableBuilder) {
		blogs(t)
		t.Comment("All blogs")
	}).MustBuild()

	ops, err := differ.Diff(from, to)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	alter := ops[0].(operations.AlterTable)
	assert.Equal(t, "All blogs", alter.Comment)
	assert.Empty(t, alter.OldComment)
}

func TestDiff_invalidSnapshot(t *testing.T) {
	t.Parallel()

	bad := &schema.Snapshot{Tables: []schema.Table{
		{Name: "A", Columns: []schema.Column{{Name: "Id", Type: schema.Int32()}}},
		{Name: "A", Columns: []schema.Column{{Name: "Id", Type: schema.Int32()}}},
	}}

	_, err := differ.Diff(nil, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrInvalidModel)

	_, err = differ.Diff(bad, nil)
	assert.ErrorIs(t, err, schema.ErrInvalidModel)
}

func TestDiffPair(t *testing.T) {
	t.Parallel()

	model := schema.NewBuilder().Table("", "Blogs", blogs).MustBuild()

	up, down, err := differ.New().DiffPair(nil, model)
	require.NoError(t, err)

	assert.Equal(t, []operations.Kind{operations.KindCreateTable}, kinds(up))
	assert.Equal(t, []operations.Operation{operations.DropTable{TableRef: operations.On("", "Blogs")}}, down)
}

// alterTarget is a database that refuses nullability changes under an index
// and, when recreate is set, rebuilds tables instead of altering them.
type alterTarget struct {
	recreate bool
}

func (alterTarget) SupportsSchemaTransfer() bool { return false }

func (a alterTarget) RebuildsTables() bool { return a.recreate }

func (alterTarget) AlterNeedsIndexRebuild(old, cur *schema.Column) bool {
	return old.Nullable != cur.Nullable
}

func titledPosts(fn func(t *schema.TableBuilder)) *schema.Snapshot {
	return schema.NewBuilder().Table("", "posts", func(t *schema.TableBuilder) {
		t.Column("id", schema.Int32()).Identity()
		t.PrimaryKey("id")
		fn(t)
	}).MustBuild()
}

func nullableTitle(t *schema.TableBuilder) {
	t.Column("title", schema.String(200)).Nullable()
	t.Index("title").Named("IX_posts_title")
}

func requiredTitle(t *schema.TableBuilder) {
	t.Column("title", schema.String(200)).Default(schema.StringValue(""))
	t.Index("title").Named("IX_posts_title")
}

func TestDiff_alterUnderIndexRecreatesIndex(t *testing.T) {
	t.Parallel()

	from, to := titledPosts(nullableTitle), titledPosts(requiredTitle)

	ops, err := differ.New(differ.WithTarget(alterTarget{})).Diff(from, to)
	require.NoError(t, err)

	assert.Equal(t, []operations.Kind{
		operations.KindDropIndex,
		operations.KindAlterColumn,
		operations.KindCreateIndex,
	}, kinds(ops))

	ops, err = differ.Diff(from, to)
	require.NoError(t, err)
	assert.Equal(t, []operations.Kind{operations.KindAlterColumn}, kinds(ops), "no target keeps the index")

	ops, err = differ.New(differ.WithTarget(alterTarget{})).Diff(to, from)
	require.NoError(t, err)
	assert.Equal(t, []operations.Kind{
		operations.KindDropIndex,
		operations.KindAlterColumn,
		operations.KindCreateIndex,
	}, kinds(ops), "down")
}

func TestDiff_recreatedTable(t *testing.T) {
	t.Parallel()

	from, to := titledPosts(nullableTitle), titledPosts(requiredTitle)

	ops, err := differ.New(differ.WithTarget(alterTarget{recreate: true})).Diff(from, to)
	require.NoError(t, err)
	require.Equal(t, []operations.Kind{operations.KindRebuildTable, operations.KindCreateIndex}, kinds(ops))

	rb := ops[0].(operations.RebuildTable)
	assert.Equal(t, operations.On("", "posts"), rb.TableRef)
	assert.Equal(t, []string{"id", "title"}, rb.Sources)
	assert.True(t, rb.Old.Columns[1].Nullable)
	assert.False(t, rb.New.Columns[1].Nullable)
	assert.Equal(t, "IX_posts_title", ops[1].(operations.CreateIndex).Index.Name)
}

func TestDiff_recreatedTableCopiesRenamedColumns(t *testing.T) {
	t.Parallel()

	from := titledPosts(func(t *schema.TableBuilder) {
		t.Column("name", schema.String(200)).Nullable()
	})
	to := titledPosts(func(t *schema.TableBuilder) {
		t.Column("title", schema.String(200)).Nullable()
		t.Column("slug", schema.String(50))
	})

	ops, err := differ.New(differ.WithTarget(alterTarget{recreate: true})).Diff(from, to)
	require.NoError(t, err)
	require.Equal(t, []operations.Kind{operations.KindRebuildTable}, kinds(ops))

	assert.Equal(t, []string{"id", "name", ""}, ops[0].(operations.RebuildTable).Sources)
}

func TestDiff_recreateDecisions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		to   func(t *schema.TableBuilder)
		want []operations.Kind
	}{
		{
			name: "comment only",
			to: func(t *schema.TableBuilder) {
				t.Column("title", schema.String(200)).Nullable().Comment("headline")
				t.Index("title").Named("IX_posts_title")
			},
			want: []operations.Kind{operations.KindAlterColumn},
		},
		{
			name: "nullable column added",
			to: func(t *schema.TableBuilder) {
				nullableTitle(t)
				t.Column("body", schema.String(0)).Nullable()
			},
			want: []operations.Kind{operations.KindAddColumn},
		},
		{
			name: "required column without default",
			to: func(t *schema.TableBuilder) {
				nullableTitle(t)
				t.Column("body", schema.String(0))
			},
			want: []operations.Kind{operations.KindRebuildTable, operations.KindCreateIndex},
		},
		{
			name: "unique constraint added",
			to: func(t *schema.TableBuilder) {
				nullableTitle(t)
				t.Unique("title")
			},
			want: []operations.Kind{operations.KindRebuildTable, operations.KindCreateIndex},
		},
		{
			name: "index only",
			to: func(t *schema.TableBuilder) {
				nullableTitle(t)
				t.Index("id", "title").Named("IX_posts_id_title")
			},
			want: []operations.Kind{operations.KindCreateIndex},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ops, err := differ.New(differ.WithTarget(alterTarget{recreate: true})).
				Diff(titledPosts(nullableTitle), titledPosts(tt.to))
			require.NoError(t, err)
			assert.Equal(t, tt.want, kinds(ops))
		})
	}
}
