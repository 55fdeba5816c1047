package main

import (
	"io"

	md "github.com/nao1215/markdown"
)

// writeTable renders header and rows as a markdown table.
func writeTable(w io.Writer, header []string, rows [][]string) error {
	return md.NewMarkdown(w).Table(md.TableSet{Header: header, Rows: rows}).Build()
}
