package main

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/starford/siphon/internal/builder"
	"github.com/starford/siphon/internal/collection"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func collectionsTable(idx *collection.Index) string {
	rows := make([][]string, 0, idx.Len())
	for _, name := range idx.Names() {
		members := idx.Members(name)
		rows = append(rows, []string{name, strconv.Itoa(len(members)), strings.Join(members, ", ")})
	}
	return renderTable([]string{"Collection", "Poems", "Members"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft})
}

func reportTable(report *builder.Report) string {
	rows := make([][]string, 0, len(report.Outputs))
	for _, o := range report.Outputs {
		status := "skipped"
		switch {
		case o.Written:
			status = "written"
		case o.Unchanged:
			status = "unchanged"
		}
		rows = append(rows, []string{o.Collection, strconv.Itoa(o.Members), status, o.Path})
	}
	return renderTable([]string{"Collection", "Poems", "Status", "Path"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft})
}
