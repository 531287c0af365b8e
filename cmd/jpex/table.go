package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/John-Robertt/JPEX/internal/domain"
)

// renderRows 把工作集渲染为终端表格。
// mapcode 列：非法值后缀 "(!)"；NOTE 列承载错误首句 / 消歧候选数。
func renderRows(rows []domain.Row) string {
	headers := []string{"ID", "STATUS", "PLACE", "MAPCODE", "TELEPHONE", "ADDRESS", "NOTE"}

	body := make([][]string, 0, len(rows))
	for _, r := range rows {
		name := r.DisplayName
		if name == "" {
			name = r.Candidate.MainName
		}

		mc := r.EffectiveMapcode()
		if r.MapcodeInvalid {
			mc += " (!)"
		}

		note := ""
		switch r.State.Status {
		case domain.StatusError:
			note = firstSentence(r.State.Message)
		case domain.StatusDisambiguation:
			note = fmt.Sprintf("%d 个候选待选择（jpex select %s <n>）", len(r.State.Matches), r.ID)
		}

		body = append(body, []string{
			r.ID,
			r.State.Status,
			name,
			mc,
			r.EffectiveTelephone(),
			r.EffectiveAddress(),
			truncate(note, 80),
		})
	}

	return renderTable(headers, body, []columnAlignment{alignRight})
}

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
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
