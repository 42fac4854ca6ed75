package sqlstore

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

// dialect holds what differs between the SQL drivers.
type dialect struct {
	name    string
	driver  string
	keyType string
	columns map[types.FieldKind]string
	quote   func(ident string) string
	bind    func(n int) string // n is 1-based
}

var sqliteDialect = dialect{
	name:    "sqlite",
	driver:  "sqlite",
	keyType: "TEXT",
	columns: map[types.FieldKind]string{
		types.KindString:  "TEXT",
		types.KindInteger: "INTEGER",
		types.KindNumber:  "REAL",
		types.KindBoolean: "INTEGER",
	},
	quote: doubleQuote,
	bind:  func(int) string { return "?" },
}

var mysqlDialect = dialect{
	name:    "mysql",
	driver:  "mysql",
	keyType: "VARCHAR(36)",
	columns: map[types.FieldKind]string{
		types.KindString:  "TEXT",
		types.KindInteger: "BIGINT",
		types.KindNumber:  "DOUBLE",
		types.KindBoolean: "BOOLEAN",
	},
	quote: func(ident string) string {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	},
	bind: func(int) string { return "?" },
}

var postgresDialect = dialect{
	name:    "postgres",
	driver:  "postgres",
	keyType: "TEXT",
	columns: map[types.FieldKind]string{
		types.KindString:  "TEXT",
		types.KindInteger: "BIGINT",
		types.KindNumber:  "DOUBLE PRECISION",
		types.KindBoolean: "BOOLEAN",
	},
	quote: pq.QuoteIdentifier,
	bind:  func(n int) string { return fmt.Sprintf("$%d", n) },
}

func doubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// createTable returns the DDL for one record type.
func (d dialect) createTable(rt types.RecordType) string {
	cols := []string{fmt.Sprintf("%s %s PRIMARY KEY", d.quote(keyColumn), d.keyType)}
	for _, f := range rt.Fields() {
		cols = append(cols, fmt.Sprintf("%s %s", d.quote(f.Name), d.columns[f.Kind]))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.quote(rt.Name()), strings.Join(cols, ", "))
}

// selectColumns returns "id", then every field, quoted and comma separated.
func (d dialect) selectColumns(rt types.RecordType) string {
	cols := []string{d.quote(keyColumn)}
	for _, f := range rt.Fields() {
		cols = append(cols, d.quote(f.Name))
	}
	return strings.Join(cols, ", ")
}

func (d dialect) selectByKey(rt types.RecordType) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		d.selectColumns(rt), d.quote(rt.Name()), d.quote(keyColumn), d.bind(1))
}

func (d dialect) selectChildren(rt types.RecordType, foreignKey string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
		d.selectColumns(rt), d.quote(rt.Name()), d.quote(foreignKey), d.bind(1), d.quote(keyColumn))
}

func (d dialect) insert(rt types.RecordType) string {
	cols := []string{d.quote(keyColumn)}
	binds := []string{d.bind(1)}
	for i, f := range rt.Fields() {
		cols = append(cols, d.quote(f.Name))
		binds = append(binds, d.bind(i+2))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.quote(rt.Name()), strings.Join(cols, ", "), strings.Join(binds, ", "))
}

// update binds the field values first and the key last.
func (d dialect) update(rt types.RecordType) string {
	fields := rt.Fields()
	sets := make([]string, len(fields))
	for i, f := range fields {
		sets[i] = fmt.Sprintf("%s = %s", d.quote(f.Name), d.bind(i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		d.quote(rt.Name()), strings.Join(sets, ", "), d.quote(keyColumn), d.bind(len(fields)+1))
}

func (d dialect) deleteByKey(rt types.RecordType) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", d.quote(rt.Name()), d.quote(keyColumn), d.bind(1))
}

// mysqlDSN normalises a MySQL DSN: times are parsed, UPDATE reports matched
// rather than changed rows, and database overrides the DSN's schema when set.
func mysqlDSN(dsn, database string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	if database != "" {
		cfg.DBName = database
	}
	return cfg.FormatDSN(), nil
}

// postgresDSN accepts URL or key/value connection strings; database
// overrides the dbname when set.
func postgresDSN(dsn, database string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		kv, err := pq.ParseURL(dsn)
		if err != nil {
			return "", fmt.Errorf("parsing postgres url: %w", err)
		}
		dsn = kv
	}
	if database != "" {
		dsn = strings.TrimSpace(dsn + " dbname=" + quoteConnValue(database))
	}
	return dsn, nil
}

func quoteConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
