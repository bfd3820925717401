package procedure_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/procedure"
	"github.com/JonMunkholm/lending/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Postgres(t *testing.T) {
	pool := testdb.Pool(t)
	testdb.DropTables(t, pool, "it_status")
	ctx := context.Background()

	t.Cleanup(func() {
		pool.Exec(context.Background(), "DROP PROCEDURE IF EXISTS it_fill_status")     //nolint:errcheck
		pool.Exec(context.Background(), "DROP FUNCTION IF EXISTS it_count_rows_table") //nolint:errcheck
	})

	scripts := fstest.MapFS{
		"fill.sql": {Data: []byte(`
CREATE OR REPLACE PROCEDURE it_fill_status() LANGUAGE plpgsql AS $$
BEGIN
	CREATE TABLE IF NOT EXISTS it_status (id int);
	INSERT INTO it_status SELECT generate_series(1, 3);
END $$;`)},
		"count.sql": {Data: []byte(`
CREATE OR REPLACE FUNCTION it_count_rows_table(t text) RETURNS bigint LANGUAGE plpgsql AS $$
DECLARE n bigint;
BEGIN
	EXECUTE format('SELECT count(*) FROM %I', t) INTO n;
	RETURN n;
END $$;`)},
	}
	r := procedure.NewRunner(pool, scripts, config.DefaultConstants())

	require.NoError(t, r.Install(ctx, "it_fill_status", "fill.sql"))
	require.NoError(t, r.InstallFunction(ctx, "it_count_rows_table", "count.sql"))

	// Installing twice replaces the procedure.
	require.NoError(t, r.Install(ctx, "it_fill_status", "fill.sql"))
	require.NoError(t, r.Call(ctx, "it_fill_status"))

	n, err := r.CountRows(ctx, "it_count_rows_table", "it_status")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = r.TableCount(ctx, "it_status")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, r.Truncate(ctx, "it_status"))
	n, err = r.TableCount(ctx, "it_status")
	require.NoError(t, err)
	assert.Zero(t, n)

	err = r.Call(ctx, "it_missing_proc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
