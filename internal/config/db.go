package config

// Store engines.
const (
	EngineMongoDB  = "mongodb"
	EngineSQLite   = "sqlite"
	EngineMySQL    = "mysql"
	EnginePostgres = "postgres"
)

// DB holds the database configuration settings.
type DB struct {
	Engine   string // mongodb, sqlite, mysql or postgres
	URI      string // full connection string, overrides the discrete fields
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSL      bool
	PoolSize uint64
	Extras   string // extra DSN parameters for the sql engines
	Timeout  int    // connect timeout in seconds
}
