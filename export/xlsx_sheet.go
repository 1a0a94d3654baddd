package export

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	excelMaxRows     = 1048576
	defaultSheetName = "Sheet1"
)

// SheetStyle describes how a written sheet is presented.
type SheetStyle struct {
	HeaderFill   string
	HeaderFont   string
	BorderColor  string
	MinWidth     float64
	MaxWidth     float64
	FreezeHeader bool
	AutoFilter   bool
	Highlight    *Highlight
}

// Highlight colors data rows by comparing fields against Value. Rows where
// every field in Fields equals Value exactly get MatchFill, all others get
// MissFill.
type Highlight struct {
	Fields    []int
	Value     string
	MatchFill string
	MissFill  string
}

// DefaultSheetStyle returns the stock presentation: a bold white-on-blue
// header, thin borders, fitted widths, a frozen header row, an autofilter
// and up/up status highlighting on the second and third fields.
func DefaultSheetStyle() *SheetStyle {
	return &SheetStyle{
		HeaderFill:   "#4F81BD",
		HeaderFont:   "#FFFFFF",
		BorderColor:  "#000000",
		MinWidth:     8,
		MaxWidth:     60,
		FreezeHeader: true,
		AutoFilter:   true,
		Highlight: &Highlight{
			Fields:    []int{1, 2},
			Value:     "up",
			MatchFill: "#C6EFCE",
			MissFill:  "#FFC7CE",
		},
	}
}

type sheetLayout struct {
	header   bool
	dataRows int
	width    int
	widths   []int
}

// writeSheet fills an empty worksheet and applies style. The header row is
// written when header is true and the schema has columns.
func writeSheet(ctx context.Context, file *excelize.File, sheet string, schema Schema, rows RowIterator, header bool, maxRows int, style *SheetStyle) (RenderStats, error) {
	layout := sheetLayout{}
	rowIndex := 1

	if header && schema.Width() > 0 {
		labels := schema.headerRow(0)
		if err := setRow(file, sheet, rowIndex, labels); err != nil {
			return RenderStats{}, err
		}
		layout.header = true
		layout.observe(labels)
		rowIndex++
	}

	if maxRows <= 0 || maxRows > excelMaxRows-rowIndex+1 {
		maxRows = excelMaxRows - rowIndex + 1
	}

	stats := RenderStats{}
	for {
		row, ok, err := nextRow(ctx, rows)
		if err != nil {
			return stats, err
		}
		if !ok {
			break
		}
		stats.Rows++
		if stats.Rows > int64(maxRows) {
			return stats, NewError(KindValidation, "max rows exceeded", nil)
		}
		if err := setRow(file, sheet, rowIndex, row); err != nil {
			return stats, err
		}
		layout.observe(row)
		layout.dataRows++
		rowIndex++
	}

	if style != nil {
		if err := applySheetStyle(file, sheet, layout, style); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func setRow(file *excelize.File, sheet string, rowIndex int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, rowIndex)
	if err != nil {
		return err
	}
	return file.SetSheetRow(sheet, cell, &values)
}

func (l *sheetLayout) observe(values []string) {
	if len(values) > l.width {
		l.width = len(values)
	}
	for len(l.widths) < len(values) {
		l.widths = append(l.widths, 0)
	}
	for i, value := range values {
		if n := utf8.RuneCountInString(value); n > l.widths[i] {
			l.widths[i] = n
		}
	}
}

func (l sheetLayout) lastRow() int {
	if l.header {
		return l.dataRows + 1
	}
	return l.dataRows
}

func (l sheetLayout) firstDataRow() int {
	if l.header {
		return 2
	}
	return 1
}

func applySheetStyle(file *excelize.File, sheet string, layout sheetLayout, style *SheetStyle) error {
	if layout.width == 0 || layout.lastRow() == 0 {
		return nil
	}
	lastCol, err := excelize.ColumnNumberToName(layout.width)
	if err != nil {
		return err
	}
	border := thinBorders(style.BorderColor)

	if layout.header {
		headerID, err := file.NewStyle(&excelize.Style{
			Border:    border,
			Font:      &excelize.Font{Bold: true, Color: style.HeaderFont},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{style.HeaderFill}},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		})
		if err != nil {
			return err
		}
		if err := file.SetCellStyle(sheet, "A1", lastCol+"1", headerID); err != nil {
			return err
		}
	}

	if layout.dataRows > 0 {
		bodyID, err := file.NewStyle(&excelize.Style{Border: border})
		if err != nil {
			return err
		}
		first := fmt.Sprintf("A%d", layout.firstDataRow())
		last := fmt.Sprintf("%s%d", lastCol, layout.lastRow())
		if err := file.SetCellStyle(sheet, first, last, bodyID); err != nil {
			return err
		}
	}

	for i, chars := range layout.widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := file.SetColWidth(sheet, name, name, fitWidth(chars, style.MinWidth, style.MaxWidth)); err != nil {
			return err
		}
	}

	if style.FreezeHeader && layout.header {
		if err := file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
			Selection:   []excelize.Selection{{SQRef: "A2", ActiveCell: "A2", Pane: "bottomLeft"}},
		}); err != nil {
			return err
		}
	}

	if style.AutoFilter && layout.header {
		ref := fmt.Sprintf("A1:%s%d", lastCol, layout.lastRow())
		if err := file.AutoFilter(sheet, ref, nil); err != nil {
			return err
		}
	}

	if style.Highlight != nil && layout.dataRows > 0 {
		if err := applyHighlight(file, sheet, layout, lastCol, style.Highlight); err != nil {
			return err
		}
	}
	return nil
}

func applyHighlight(file *excelize.File, sheet string, layout sheetLayout, lastCol string, h *Highlight) error {
	formula, err := highlightFormula(h.Fields, h.Value, layout.firstDataRow())
	if err != nil || formula == "" {
		return err
	}
	matchID, err := file.NewConditionalStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{h.MatchFill}},
	})
	if err != nil {
		return err
	}
	missID, err := file.NewConditionalStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{h.MissFill}},
	})
	if err != nil {
		return err
	}
	ref := fmt.Sprintf("A%d:%s%d", layout.firstDataRow(), lastCol, layout.lastRow())
	return file.SetConditionalFormat(sheet, ref, []excelize.ConditionalFormatOptions{
		{Type: "formula", Criteria: formula, Format: matchID},
		{Type: "formula", Criteria: "NOT(" + formula + ")", Format: missID},
	})
}

// highlightFormula builds a case-sensitive row test anchored on the given
// zero-based fields, e.g. AND(EXACT($B2,"up"),EXACT($C2,"up")).
func highlightFormula(fields []int, value string, row int) (string, error) {
	if len(fields) == 0 {
		return "", nil
	}
	literal := `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		col, err := excelize.ColumnNumberToName(field + 1)
		if err != nil {
			return "", NewError(KindValidation, fmt.Sprintf("invalid highlight field %d", field), err)
		}
		terms = append(terms, fmt.Sprintf("EXACT($%s%d,%s)", col, row, literal))
	}
	return "AND(" + strings.Join(terms, ",") + ")", nil
}

func thinBorders(color string) []excelize.Border {
	sides := []string{"left", "top", "right", "bottom"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{Type: side, Color: color, Style: 1}
	}
	return borders
}

func fitWidth(chars int, minWidth, maxWidth float64) float64 {
	width := float64(chars + 2)
	if minWidth > 0 && width < minWidth {
		width = minWidth
	}
	if maxWidth > 0 && width > maxWidth {
		width = maxWidth
	}
	return width
}
