// Command migrate diffs, renders, analyzes, and applies schema migrations.
package main

import "github.com/aqasim81/schema-migrator/internal/cli"

func main() {
	cli.Execute()
}
