package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Assignments"

type column struct {
	title string
	width float64
	value func(r *Row) any
}

func dateCell(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format("2006-01-02")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

var columns = []column{
	{"Assignment ID", 16, func(r *Row) any { return r.AssignmentID }},
	{"Status", 12, func(r *Row) any { return r.Status }},
	{"Type", 14, func(r *Row) any { return r.AssignmentType }},
	{"Active", 8, func(r *Row) any { return yesNo(r.IsActive) }},
	{"Overdue", 9, func(r *Row) any { return yesNo(r.IsOverdue) }},
	{"Asset Tag", 14, func(r *Row) any { return r.DeviceAssetTag }},
	{"Device", 24, func(r *Row) any { return r.DeviceName }},
	{"Serial Number", 20, func(r *Row) any { return r.DeviceSerial }},
	{"Assignee", 24, func(r *Row) any { return r.AssigneeName }},
	{"Employee Number", 16, func(r *Row) any { return r.AssigneeNumber }},
	{"Department", 22, func(r *Row) any { return r.AssigneeDepartment }},
	{"Assigned By", 20, func(r *Row) any { return r.AssignedByName }},
	{"Location", 20, func(r *Row) any {
		if r.LocationCode == "" {
			return ""
		}
		return r.LocationCode + " " + r.LocationName
	}},
	{"Assigned Date", 13, func(r *Row) any { return dateCell(&r.AssignedDate) }},
	{"Expected Return", 15, func(r *Row) any { return dateCell(r.ExpectedReturnDate) }},
	{"Actual Return", 13, func(r *Row) any { return dateCell(r.ActualReturnDate) }},
	{"Purpose", 30, func(r *Row) any { return r.Purpose }},
	{"Condition Out", 13, func(r *Row) any { return r.ConditionAtAssignment }},
	{"Condition In", 13, func(r *Row) any { return r.ConditionAtReturn }},
	{"Emergency Contact", 20, func(r *Row) any { return r.EmergencyContactName }},
	{"Emergency Phone", 16, func(r *Row) any { return r.EmergencyContactPhone }},
	{"Return Notes", 30, func(r *Row) any { return r.ReturnNotes }},
	{"Notes", 40, func(r *Row) any { return r.Notes }},
}

// Headers — заголовки листа в порядке колонок.
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.title
	}
	return out
}

// WriteXLSX пишет один лист: заголовок с закреплённой строкой, дальше строки.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, c := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, c.title); err != nil {
			return fmt.Errorf("header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, c.width); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for ri := range rows {
		values := make([]any, len(columns))
		for ci, c := range columns {
			values[ci] = c.value(&rows[ri])
		}
		cell, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("row %d: %w", ri+2, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	_, err = f.WriteTo(w)
	return err
}
