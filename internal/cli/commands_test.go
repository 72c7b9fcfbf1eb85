package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stocklog/internal/intake"
	"github.com/roach88/stocklog/internal/query"
	"github.com/roach88/stocklog/internal/record"
)

const lampBatch = `
context: {admin: true}
actor_id: 5
events:
  - type: entity.pre_save
    entity: {id: 11, name: Lamp, sku: LMP-1, quantity: 4}
  - type: entity.quantity_set
    entity: {id: 11, name: Lamp, sku: LMP-1, quantity: 9}
`

func TestMigrate(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, "migrate", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "Schema version 4 (sqlite3)\n", out)

	out, err = execute(t, "--format", "json", "migrate", "--db", db)
	require.NoError(t, err)
	var res MigrateResult
	decodeData(t, out, &res)
	assert.Equal(t, MigrateResult{Driver: "sqlite3", SchemaVersion: 4}, res)
}

func TestIngestAndQuery(t *testing.T) {
	db := tempDB(t)
	batch := writeFile(t, t.TempDir(), "lamp.yaml", lampBatch)

	out, err := execute(t, "ingest", "--db", db, batch)
	require.NoError(t, err)
	assert.Contains(t, out, "2 event(s), 2 applied, 0 skipped")
	assert.Contains(t, out, "Committed: 1")

	out, err = execute(t, "query", "--db", db, "--sku", "lmp")
	require.NoError(t, err)
	assert.Contains(t, out, "Lamp (#11)")
	assert.Contains(t, out, "+5")
	assert.Contains(t, out, "Manual edit: admin panel")
	assert.Contains(t, out, "Page 1 of 1 (1 records)")

	out, err = execute(t, "--format", "json", "query", "--db", db, "--entity", "11")
	require.NoError(t, err)
	var res query.Result
	decodeData(t, out, &res)
	require.Len(t, res.Records, 1)
	r := res.Records[0]
	assert.Equal(t, record.Int64(4), r.OldQuantity)
	assert.Equal(t, int64(9), r.NewQuantity)
	assert.Equal(t, record.KindManual, r.Kind)
	assert.Equal(t, record.Int64(5), r.ActorID)
	assert.NotEmpty(t, r.UnitID)
}

func TestIngest_SecondUnitUsesStoredBaseline(t *testing.T) {
	db := tempDB(t)
	dir := t.TempDir()

	_, err := execute(t, "ingest", "--db", db, writeFile(t, dir, "lamp.yaml", lampBatch))
	require.NoError(t, err)

	// No snapshot in this unit: the old quantity comes from the last record.
	next := writeFile(t, dir, "next.json", `{"events":[
	  {"type":"api.update","request":{"method":"patch","route":"/v3/products/11"},
	   "entity":{"id":11,"name":"Lamp","sku":"LMP-1","quantity":7}}]}`)
	out, err := execute(t, "--format", "json", "ingest", "--db", db, next)
	require.NoError(t, err)
	var sum intake.Summary
	decodeData(t, out, &sum)
	assert.Equal(t, 1, sum.Stats.Committed)

	out, err = execute(t, "--format", "json", "query", "--db", db, "--kind", "rest_api")
	require.NoError(t, err)
	var res query.Result
	decodeData(t, out, &res)
	require.Len(t, res.Records, 1)
	assert.Equal(t, record.Int64(9), res.Records[0].OldQuantity)
	assert.Equal(t, int64(-2), res.Records[0].Delta)
	assert.Equal(t, "API: PATCH /v3/products/11", res.Records[0].Reason)
}

func TestIngest_Errors(t *testing.T) {
	_, err := execute(t, "ingest", "--db", tempDB(t), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read batch")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "ingest", "--db", tempDB(t))
	require.Error(t, err)
}

func TestQuery_Empty(t *testing.T) {
	out, err := execute(t, "query", "--db", tempDB(t))
	require.NoError(t, err)
	assert.Equal(t, "No records found.\n", out)
}

func TestSettings(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, "settings", "get", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "trace-origin: false\n", out)

	out, err = execute(t, "settings", "set", "trace-origin", "true", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "trace-origin: true\n", out)

	out, err = execute(t, "--format", "json", "settings", "get", "--db", db)
	require.NoError(t, err)
	var s record.Settings
	decodeData(t, out, &s)
	assert.True(t, s.TraceOrigin)
}

func TestSettings_Errors(t *testing.T) {
	db := tempDB(t)

	_, err := execute(t, "settings", "set", "colour", "blue", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown setting "colour"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "settings", "set", "trace-origin", "maybe", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestJSONErrorEnvelope(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
		exit int
	}{
		{"config", []string{"--format", "json", "--config", "/nonexistent/stocklog.yaml", "migrate"}, CodeConfig, ExitCommandError},
		{"batch", []string{"--format", "json", "ingest", "--db", tempDB(t), "/nonexistent/batch.yaml"}, CodeInput, ExitCommandError},
		{"setting", []string{"--format", "json", "settings", "set", "colour", "blue", "--db", tempDB(t)}, CodeInput, ExitCommandError},
		{"database", []string{"--format", "json", "migrate", "--db", filepath.Join(t.TempDir(), "missing", "dir", "x.db")}, CodeStore, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, err.Error(), resp.Error.Message)
		})
	}
}

func TestTextErrorsLeaveStdoutEmpty(t *testing.T) {
	out, err := execute(t, "settings", "set", "colour", "blue", "--db", tempDB(t))
	require.Error(t, err)
	assert.Empty(t, out)
}
