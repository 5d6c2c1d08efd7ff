package persistence

import (
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var postgresDialect = dialect{
	driver:   "postgres",
	idColumn: "BIGSERIAL PRIMARY KEY",
	placeholder: func(position int) string {
		return fmt.Sprintf("$%d", position)
	},
}

// NewPostgresStore opens a journal in the PostgreSQL database named by
// connectionString
func NewPostgresStore(connectionString string) (*SQLStore, error) {
	if connectionString == "" {
		connectionString = "host=localhost user=gridrealm password=gridrealm dbname=gridrealm sslmode=disable"
	}
	return openSQLStore(postgresDialect, connectionString)
}
