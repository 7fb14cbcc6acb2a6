package schema_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/schema"
)

const blogYAML = `
annotations:
  Product: "7.0.0"
tables:
  - name: Blogs
    comment: All blogs
    columns:
      - name: Id
        type: int32
        identity: true
      - name: Url
        type: string(200)
      - name: Rating
        type: decimal(5,2)
        default: 2.5
      - name: Created
        type: datetime
        default: 2024-01-02T03:04:05Z
      - name: Active
        type: bool
        default: true
      - name: Hash
        type: binary(4)
        default: "0xCAFEBABE"
        nullable: true
    primary_key:
      columns: [Id]
    indexes:
      - columns: [Url]
        unique: true
        filter: "[Url] IS NOT NULL"
        annotations:
          SqlServer:Clustered: false
  - schema: blog
    name: Posts
    columns:
      - name: Id
        type: int64
      - name: BlogId
        type: int32
      - name: Body
        store_type: text
        nullable: true
    primary_key:
      columns: [Id]
    foreign_keys:
      - columns: [BlogId]
        principal_table: Blogs
        principal_columns: [Id]
        on_delete: cascade
sequences:
  - name: Numbers
    start: 10
    increment: 5
`

func TestParse(t *testing.T) {
	t.Parallel()

	s, err := schema.Parse([]byte(blogYAML))
	require.NoError(t, err)

	require.Len(t, s.Tables, 2)
	assert.Equal(t, schema.StringValue("7.0.0"), s.Annotations["Product"])

	blogs := s.Tables[0]
	assert.Equal(t, "All blogs", blogs.Comment)
	assert.Equal(t, "PK_Blogs", blogs.PrimaryKey.Name)
	assert.True(t, blogs.Columns[0].Identity)
	assert.Equal(t, schema.String(200), blogs.Columns[1].Type)
	assert.Equal(t, schema.FloatValue(2.5), *blogs.Columns[2].DefaultValue)
	assert.True(t, blogs.Columns[3].DefaultValue.Time.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Equal(t, schema.BoolValue(true), *blogs.Columns[4].DefaultValue)
	assert.Equal(t, []byte{0xCA, 0xFE, 0xBA, 0xBE}, blogs.Columns[5].DefaultValue.Bytes)
	assert.Equal(t, "IX_Blogs_Url", blogs.Indexes[0].Name)
	assert.False(t, blogs.Indexes[0].Annotations.Bool("SqlServer:Clustered", true))

	posts := s.Tables[1]
	assert.Equal(t, "blog", posts.Schema)
	assert.Equal(t, "PK_blog_Posts", posts.PrimaryKey.Name)
	assert.Equal(t, schema.UnknownType, posts.Columns[2].Type.Kind)
	assert.Equal(t, "text", posts.Columns[2].StoreType)
	assert.Equal(t, schema.Cascade, posts.ForeignKeys[0].OnDelete)

	require.Len(t, s.Sequences, 1)
	assert.Equal(t, int64(10), s.Sequences[0].StartValue)
	assert.Equal(t, int64(5), s.Sequences[0].IncrementBy)
	assert.Equal(t, schema.Int64(), s.Sequences[0].Type)
}

func TestParse_errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "bad type",
			content: "tables:\n  - name: T\n    columns:\n      - name: A\n        type: varchar(10)\n",
			wantErr: schema.ErrInvalidType,
		},
		{
			name:    "bad default",
			content: "tables:\n  - name: T\n    columns:\n      - name: A\n        type: int32\n        default: abc\n",
			wantErr: schema.ErrInvalidModel,
		},
		{
			name:    "bad action",
			content: "tables:\n  - name: T\n    columns:\n      - name: A\n        type: int32\n    foreign_keys:\n      - columns: [A]\n        principal_table: T\n        principal_columns: [A]\n        on_delete: explode\n",
			wantErr: schema.ErrInvalidModel,
		},
		{
			name:    "invalid model",
			content: "tables:\n  - name: T\n    columns:\n      - name: A\n        type: int32\n      - name: A\n        type: int32\n",
			wantErr: schema.ErrInvalidModel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := schema.Parse([]byte(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMarshal_roundTrip(t *testing.T) {
	t.Parallel()

	original, err := schema.Parse([]byte(blogYAML))
	require.NoError(t, err)

	data, err := schema.Marshal(original)
	require.NoError(t, err)

	decoded, err := schema.Parse(data)
	require.NoError(t, err)

	require.Len(t, decoded.Tables, len(original.Tables))

	for i := range original.Tables {
		want, got := original.Tables[i], decoded.Tables[i]
		assert.Equal(t, want.QualifiedName(), got.QualifiedName())
		require.Len(t, got.Columns, len(want.Columns))

		for j := range want.Columns {
			assert.True(t, want.Columns[j].Equal(&got.Columns[j]), "column %s", want.Columns[j].Name)
		}

		assert.True(t, want.PrimaryKey.Equal(got.PrimaryKey))

		for j := range want.Indexes {
			assert.True(t, want.Indexes[j].Equal(&got.Indexes[j]))
		}

		for j := range want.ForeignKeys {
			assert.True(t, want.ForeignKeys[j].Equal(&got.ForeignKeys[j]))
		}
	}

	assert.True(t, original.Annotations.Equal(decoded.Annotations))
	assert.True(t, original.Sequences[0].Equal(&decoded.Sequences[0]))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(blogYAML), 0o600))

	s, err := schema.Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Tables, 2)

	_, err = schema.Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
