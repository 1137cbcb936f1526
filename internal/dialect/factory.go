package dialect

import "fmt"

// GetDialect returns the Dialect implementation for a database/sql driver name.
func GetDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlserver", "mssql":
		return &MSSQLDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q: only sqlserver is supported", driver)
	}
}

// Ensure interface implementation
var _ Dialect = (*MSSQLDialect)(nil)
