package jobevents

// eventColumns is the column list for the job events table (6 columns)
const eventColumns = `job_id, counter, start_line, end_line, uuid, stdout`

// CreateTableQuery returns the DDL for the job events table. Rows are
// deduplicated per (job_id, counter), so replays of the same output are harmless.
func CreateTableQuery(tableName string) string {
	return `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		job_id     String,
		counter    Int64,
		start_line Int64,
		end_line   Int64,
		uuid       String,
		stdout     String
	) ENGINE = ReplacingMergeTree
	ORDER BY (job_id, counter)`
}

// InsertQueryForBatch returns the INSERT query without VALUES clause (for PrepareBatch)
func InsertQueryForBatch(tableName string) string {
	return `INSERT INTO ` + tableName + ` (` + eventColumns + `)`
}

// RangeQuery selects one job's events with counter in [?, ?], ascending.
// Expects job_id, low and high.
func RangeQuery(tableName string) string {
	return `SELECT counter, start_line, end_line, uuid, stdout FROM ` + tableName + ` FINAL
		WHERE job_id = ? AND counter BETWEEN ? AND ?
		ORDER BY counter ASC`
}

// FirstPageQuery selects the first ? events of a job, ascending. Expects job_id and limit.
func FirstPageQuery(tableName string) string {
	return `SELECT counter, start_line, end_line, uuid, stdout FROM ` + tableName + ` FINAL
		WHERE job_id = ?
		ORDER BY counter ASC
		LIMIT ?`
}

// LastPageQuery selects the last ? events of a job, descending. Expects job_id and limit.
func LastPageQuery(tableName string) string {
	return `SELECT counter, start_line, end_line, uuid, stdout FROM ` + tableName + ` FINAL
		WHERE job_id = ?
		ORDER BY counter DESC
		LIMIT ?`
}

// MaxCounterQuery selects the highest counter of a job, 0 if it has no events.
func MaxCounterQuery(tableName string) string {
	return `SELECT max(counter) FROM ` + tableName + ` WHERE job_id = ?`
}
