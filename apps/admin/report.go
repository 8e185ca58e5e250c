package main

import (
	"context"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/masomo-erp/core/marks"
)

const (
	internalsSheet  = "Internal Totals"
	componentsSheet = "Component Totals"
)

var (
	internalsHeader  = []string{"Student", "CIE", "Best Part A", "Best Part B", "Total"}
	componentsHeader = []string{"Student", "Assignments", "Quizzes", "Seminars", "CIE", "Overall"}
)

func formatMark(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

func internalRows(totals []marks.InternalTotal) [][]string {
	rows := make([][]string, 0, len(totals))
	for _, it := range totals {
		rows = append(rows, []string{
			it.Key.StudentID,
			strconv.Itoa(it.Key.CIENo),
			formatMark(it.BestPartA),
			formatMark(it.BestPartB),
			strconv.Itoa(it.Total),
		})
	}
	return rows
}

func componentRows(totals []marks.ComponentTotal) [][]string {
	rows := make([][]string, 0, len(totals))
	for _, ct := range totals {
		rows = append(rows, []string{
			ct.Key.StudentID,
			formatMark(ct.Assignments),
			formatMark(ct.Quizzes),
			formatMark(ct.Seminars),
			formatMark(ct.CIE),
			formatMark(ct.Overall),
		})
	}
	return rows
}

// report prints the internal and component totals of a subject, or exports them to xlsxPath.
func (cli *commandLine) report(subjectID string, cieNo int, xlsxPath string) error {
	ctx := context.Background()
	internals, err := cli.svc.Totals(ctx, marks.TotalFilter{SubjectID: subjectID, CIENo: cieNo})
	if err != nil {
		return errors.Wrap(err, "querying internal totals")
	}
	components, err := cli.svc.ComponentTotals(ctx, subjectID)
	if err != nil {
		return errors.Wrap(err, "querying component totals")
	}

	if xlsxPath != "" {
		return exportXLSX(xlsxPath, internals, components)
	}

	heading := color.New(color.FgYellow)
	_, _ = heading.Fprintf(cli.out, "\n%s - subject %s\n", internalsSheet, subjectID)
	table := tablewriter.NewWriter(cli.out)
	table.SetHeader(internalsHeader)
	table.AppendBulk(internalRows(internals))
	table.Render()

	_, _ = heading.Fprintf(cli.out, "\n%s - subject %s\n", componentsSheet, subjectID)
	table = tablewriter.NewWriter(cli.out)
	table.SetHeader(componentsHeader)
	table.AppendBulk(componentRows(components))
	table.Render()
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string) error {
	index, err := f.NewSheet(sheet)
	if err != nil {
		return errors.Wrapf(err, "creating sheet %q", sheet)
	}
	f.SetActiveSheet(index)

	for r, row := range append([][]string{header}, rows...) {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			// marks are stored as numbers so they can be summed in the spreadsheet
			var v interface{} = val
			if r > 0 && c > 0 {
				if n, err := strconv.ParseFloat(val, 64); err == nil {
					v = n
				}
			}
			if err = f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func exportXLSX(path string, internals []marks.InternalTotal, components []marks.ComponentTotal) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := writeSheet(f, internalsSheet, internalsHeader, internalRows(internals)); err != nil {
		return err
	}
	if err := writeSheet(f, componentsSheet, componentsHeader, componentRows(components)); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return errors.Wrap(err, "deleting default sheet")
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrap(err, "saving xlsx file")
	}
	return nil
}
