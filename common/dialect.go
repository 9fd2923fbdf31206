package common

// UsingSQLite / UsingMySQL / UsingPostgreSQL record which SQL dialect the
// process connected to, set once by model.InitDB (which also logs them), so
// code that needs the dialect can read it instead of re-parsing the DSN.
var (
	UsingSQLite     = true
	UsingMySQL      = false
	UsingPostgreSQL = false
)

// SQLitePath is the on-disk path used when DatabaseURL selects the sqlite
// dialect (empty or a "sqlite:" / "file:" DSN).
var SQLitePath = "./data/gateway.db"

