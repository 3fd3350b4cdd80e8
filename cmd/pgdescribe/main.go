// Command pgdescribe reports the parameter and column types of SQL
// statements as a Postgres server sees them, along with whether each column
// can be NULL.
//
//	pgdescribe describe "SELECT id, text FROM tweet WHERE id = $1"
//	pgdescribe describe --save < query.sql
//	pgdescribe describe --offline < query.sql
//	pgdescribe serve --config pgdescribe.yaml
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
