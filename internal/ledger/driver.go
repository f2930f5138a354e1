package ledger

import (
	"database/sql"
	"fmt"
	"strings"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

// DriverName is the SQLite driver registered for the ledger.
const DriverName = "sqlite3_plextera_ledger"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("resource_key", resourceKey, true); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "already exists") {
					return nil
				}
				return fmt.Errorf("register resource_key SQL function: %w", err)
			}
			return nil
		},
	})
}

// resourceKey is the human-readable handle used in sweep output.
func resourceKey(kind, id string) string {
	return kind + "/" + id
}

func commonParams() string {
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func appendParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}
