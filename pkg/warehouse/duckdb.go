package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logflow/pmdiscover/pkg/config"
	"github.com/logflow/pmdiscover/pkg/eventlog"
)

// DuckDB reads events from a local Parquet, CSV or JSON export of the
// canonical view. The source must carry canon_case_id, activity and ts.
type DuckDB struct {
	db     *sql.DB
	source string
	now    func() time.Time
}

// NewDuckDB opens an in-memory DuckDB over source, a file path or glob.
func NewDuckDB(source string, now func() time.Time) (*DuckDB, error) {
	if source == "" {
		return nil, fmt.Errorf("duckdb source is required")
	}
	if now == nil {
		now = time.Now
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	return &DuckDB{db: db, source: source, now: now}, nil
}

// Name returns "duckdb".
func (d *DuckDB) Name() string {
	return config.WarehouseDuckDB
}

// SQL returns the statement Query runs. The window start is bound as the
// only parameter.
func (d *DuckDB) SQL() string {
	return "SELECT CAST(canon_case_id AS VARCHAR) AS case_id,\n" +
		"       CAST(activity AS VARCHAR) AS activity,\n" +
		"       CAST(ts AS TIMESTAMP) AS ts\n" +
		"FROM " + scanExpr(d.source) + "\n" +
		"WHERE CAST(ts AS TIMESTAMP) >= CAST(? AS TIMESTAMP)"
}

// scanExpr picks the DuckDB reader for a source by extension.
func scanExpr(source string) string {
	lit := quoteLiteral(source)
	switch strings.ToLower(filepath.Ext(source)) {
	case ".csv", ".tsv":
		return "read_csv_auto(" + lit + ")"
	case ".json", ".ndjson", ".jsonl":
		return "read_json_auto(" + lit + ")"
	case ".parquet":
		return "read_parquet(" + lit + ")"
	default:
		// A bare name is a table or view in an attached database.
		return quoteIdent(source)
	}
}

// Query returns events whose ts falls inside the lookback window ending now.
func (d *DuckDB) Query(ctx context.Context, lookbackDays int) (*eventlog.Frame, error) {
	since := d.now().UTC().Add(-time.Duration(lookbackDays) * 24 * time.Hour)

	rows, err := d.db.QueryContext(ctx, d.SQL(), since.Format("2006-01-02 15:04:05.999999"))
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	frame := &eventlog.Frame{
		Columns: []string{eventlog.SourceCaseID, eventlog.SourceActivity, eventlog.SourceTimestamp},
	}
	for rows.Next() {
		var caseID, activity sql.NullString
		var ts sql.NullTime
		if err := rows.Scan(&caseID, &activity, &ts); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var tsValue interface{}
		if ts.Valid {
			tsValue = ts.Time
		}
		frame.Rows = append(frame.Rows, []interface{}{caseID.String, activity.String, tsValue})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return frame, nil
}

// Close closes the database.
func (d *DuckDB) Close() error {
	return d.db.Close()
}
