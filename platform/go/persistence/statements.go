package persistence

import "strings"

// splitStatements breaks an embedded SQL asset into individual statements so
// they can be executed one by one inside a transaction. Statements must not
// contain literal semicolons (none of the bundled DDL does).
func splitStatements(sql string) []string {
	raw := strings.Split(sql, ";")
	statements := make([]string, 0, len(raw))
	for _, s := range raw {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}
