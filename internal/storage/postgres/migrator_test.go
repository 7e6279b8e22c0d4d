package postgres

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsFromFS_Success(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0002_tracking_index.up.sql":   {Data: []byte("CREATE INDEX a ON orders (status);")},
		"sql/migrations/0002_tracking_index.down.sql": {Data: []byte("DROP INDEX IF EXISTS a;")},
		"sql/migrations/0001_init.up.sql":             {Data: []byte("CREATE TABLE orders (id INT);")},
		"sql/migrations/0001_init.down.sql":           {Data: []byte("DROP TABLE IF EXISTS orders;")},
	}

	migrations, err := loadMigrationsFromFS(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	require.Equal(t, int64(1), migrations[0].Version)
	require.Equal(t, "tracking_index", migrations[1].Name)
}

func TestLoadMigrationsFromFS_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		fsys fstest.MapFS
		want string
	}{
		"missing down": {
			fsys: fstest.MapFS{"sql/migrations/0001_init.up.sql": {Data: []byte("SELECT 1;")}},
			want: "both up and down",
		},
		"invalid name": {
			fsys: fstest.MapFS{"sql/migrations/not_a_migration.sql": {Data: []byte("SELECT 1;")}},
			want: "invalid migration file name",
		},
		"empty body": {
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":   {Data: []byte("   \n")},
				"sql/migrations/0001_init.down.sql": {Data: []byte("SELECT 1;")},
			},
			want: "empty",
		},
		"name mismatch": {
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":    {Data: []byte("SELECT 1;")},
				"sql/migrations/0001_other.down.sql": {Data: []byte("SELECT 1;")},
			},
			want: "name mismatch",
		},
		"no files": {
			fsys: fstest.MapFS{},
			want: "no migration files",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadMigrationsFromFS(tt.fsys)
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestEmbeddedMigrationsCoverSchema(t *testing.T) {
	migrations, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	up := migrations[0].UpSQL
	for _, table := range []string{"orders", "order_items", "timeline_events", "outbox_messages", "idempotency_keys"} {
		require.Contains(t, up, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestMigrationState(t *testing.T) {
	migrations := []migration{{Version: 1, Name: "init"}, {Version: 2, Name: "tracking_index"}}

	state := migrationState(migrations, map[int64]bool{1: true})
	require.Equal(t, int64(1), state.Version)
	require.Equal(t, 1, state.Applied)
	require.Equal(t, 2, state.Available)
	require.Equal(t, []string{"0002_tracking_index"}, state.Pending)

	state = migrationState(migrations, map[int64]bool{1: true, 2: true})
	require.Empty(t, state.Pending)
}

func TestNewestFirstLimitsRollback(t *testing.T) {
	applied := map[int64]bool{1: true, 3: true, 2: true}

	require.Equal(t, []int64{3, 2}, newestFirst(applied, 2))
	require.Equal(t, []int64{3, 2, 1}, newestFirst(applied, 10))
	require.Empty(t, newestFirst(map[int64]bool{}, 1))
}
