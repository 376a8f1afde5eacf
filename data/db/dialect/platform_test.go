package dialect

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "batchinsert/data/db"
	appErrors "batchinsert/errors"
)

// fakeDatabase 只用于类型断言，不会被调用
type fakeDatabase struct{}

func (fakeDatabase) Query(context.Context, string, ...any) (core.IRows, error) { return nil, nil }
func (fakeDatabase) QueryRow(context.Context, string, ...any) core.IRow        { return nil }
func (fakeDatabase) Exec(context.Context, string, ...any) (sql.Result, error)  { return nil, nil }
func (fakeDatabase) Begin(context.Context) (core.ITransaction, error)          { return nil, nil }
func (fakeDatabase) BeginTx(context.Context, *sql.TxOptions) (core.ITransaction, error) {
	return nil, nil
}
func (fakeDatabase) Ping(context.Context) error { return nil }
func (fakeDatabase) Close() error               { return nil }
func (fakeDatabase) Raw() any                   { return nil }

type namedDB struct {
	fakeDatabase
	name string
}

func (d namedDB) GetDialectName() string { return d.name }

func TestNewPlatform(t *testing.T) {
	t.Run("已知方言", func(t *testing.T) {
		for name, want := range map[string]Name{
			"mysql":      NameMySQL,
			"postgresql": NamePostgres,
			"sqlite3":    NameSQLite,
		} {
			p, err := NewPlatform(name)
			require.NoError(t, err)
			assert.Equal(t, want, p.Name())
		}
	})

	t.Run("未知方言为配置错误", func(t *testing.T) {
		p, err := NewPlatform("oracle")
		assert.Nil(t, p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
		assert.True(t, appErrors.IsConfiguration(err))
		assert.Contains(t, err.Error(), `"oracle"`)
	})

	t.Run("从连接推断", func(t *testing.T) {
		p, err := PlatformFor(namedDB{name: "sqlite"})
		require.NoError(t, err)
		assert.Equal(t, NameSQLite, p.Name())

		_, err = PlatformFor(fakeDatabase{})
		assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
	})
}

func TestPlatformKeywords(t *testing.T) {
	tests := []struct {
		platform                     Platform
		def, ignore, upsert, replace string
	}{
		{MySQLPlatform{}, "INSERT", "INSERT IGNORE", "INSERT", "REPLACE"},
		{PostgresPlatform{}, "INSERT", "INSERT", "INSERT", "REPLACE"},
		{SQLitePlatform{}, "INSERT", "INSERT OR IGNORE", "INSERT", "INSERT OR REPLACE"},
	}
	for _, tt := range tests {
		t.Run(string(tt.platform.Name()), func(t *testing.T) {
			assert.Equal(t, tt.def, tt.platform.DefaultInsertKeyword())
			assert.Equal(t, tt.ignore, tt.platform.IgnoreInsertKeyword())
			assert.Equal(t, tt.upsert, tt.platform.UpsertInsertKeyword())
			assert.Equal(t, tt.replace, tt.platform.ReplaceInsertKeyword())
			assert.Empty(t, tt.platform.DefaultPostClause())
			assert.Empty(t, tt.platform.ReplacePostClause())
		})
	}
}

func TestMySQLPlatform_UpsertPostClause(t *testing.T) {
	clause := MySQLPlatform{}.UpsertPostClause("users", UpsertFields{
		Update:   []string{"name", "email"},
		Merge:    []string{"tags"},
		Conflict: []string{"id"},
	})

	want := "ON DUPLICATE KEY UPDATE " +
		"tags = JSON_ARRAY_APPEND(tags, '$', JSON_UNQUOTE(JSON_EXTRACT(VALUES(tags), '$'))), " +
		"name = VALUES(name), email = VALUES(email)"
	assert.Equal(t, want, clause)
	assert.NotContains(t, clause, "tags = VALUES(tags)")
	assert.Empty(t, MySQLPlatform{}.IgnorePostClause([]string{"id"}))
	assert.Empty(t, MySQLPlatform{}.UpsertPostClause("users", UpsertFields{}))
}

func TestPostgresPlatform_PostClauses(t *testing.T) {
	p := PostgresPlatform{}

	clause := p.UpsertPostClause("users", UpsertFields{
		Update:   []string{"name"},
		Merge:    []string{"tags"},
		Conflict: []string{"tenant_id", "email"},
	})
	assert.Equal(t,
		"ON CONFLICT (tenant_id, email) DO UPDATE SET tags = users.tags || excluded.tags, name = excluded.name",
		clause)
	assert.Equal(t, "ON CONFLICT (tenant_id,email) DO NOTHING", p.IgnorePostClause([]string{"tenant_id", "email"}))
	assert.Equal(t, "ON CONFLICT (id) DO NOTHING", p.UpsertPostClause("users", UpsertFields{Conflict: []string{"id"}}))
}

func TestSQLitePlatform_PostClauses(t *testing.T) {
	p := SQLitePlatform{}

	clause := p.UpsertPostClause("users", UpsertFields{
		Update:   []string{"name"},
		Merge:    []string{"tags"},
		Conflict: []string{"id"},
	})
	assert.Equal(t,
		"ON CONFLICT (id) DO UPDATE SET tags = json_insert(users.tags, '$[#]', json(excluded.tags)), name = excluded.name",
		clause)
	assert.Empty(t, p.IgnorePostClause([]string{"id"}))
}

func TestFirstGeneratedID(t *testing.T) {
	assert.Equal(t, int64(48), PostgresPlatform{}.FirstGeneratedID(50, 3))
	assert.Equal(t, int64(48), SQLitePlatform{}.FirstGeneratedID(50, 3))
	assert.Equal(t, int64(50), MySQLPlatform{}.FirstGeneratedID(50, 3))
	assert.Equal(t, int64(7), SQLitePlatform{}.FirstGeneratedID(7, 0))
}
