package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the media type of the rendered workbook.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Fiche Contrôle"

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
}

type styles struct {
	title, section, label, value, text, signature int
}

// sheet tracks the write position while a document is laid out in two
// columns, A and B.
type sheet struct {
	f     *excelize.File
	row   int
	style styles
}

// RenderXLSX lays doc out on a single worksheet and returns the workbook.
func RenderXLSX(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open; it is closed explicitly on every path.

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	s := &sheet{f: f, row: 1}
	if err := s.init(); err != nil {
		f.Close()
		return nil, err
	}
	for _, sec := range doc.Sections {
		if err := s.section(sec); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to render %s section: %w", sec.Kind, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *sheet) init() error {
	var err error
	newStyle := func(st *excelize.Style) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = s.f.NewStyle(st)
		return id
	}
	s.style.title = newStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
	s.style.section = newStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
	s.style.label = newStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Border: thinBorder,
	})
	s.style.value = newStyle(&excelize.Style{Border: thinBorder})
	s.style.text = newStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		Border:    thinBorder,
	})
	s.style.signature = newStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top"},
		Border:    thinBorder,
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := s.f.SetColWidth(sheetName, "A", "B", 45); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return nil
}

func (s *sheet) section(sec Section) error {
	switch sec.Kind {
	case SectionHeader:
		return s.header(sec)
	case SectionSignature:
		if err := s.pair(sec.Columns[0], sec.Columns[1], s.style.signature); err != nil {
			return err
		}
		return s.f.SetRowHeight(sheetName, s.row-1, 60)
	}

	if err := s.merged(sec.Title, s.style.section); err != nil {
		return err
	}
	for _, fld := range sec.Fields {
		if err := s.set("A", fld.Label, s.style.label); err != nil {
			return err
		}
		if err := s.set("B", fld.Value, s.style.value); err != nil {
			return err
		}
		s.row++
	}
	if len(sec.Rows) > 0 && len(sec.Columns) == 2 {
		if err := s.pair(sec.Columns[0], sec.Columns[1], s.style.label); err != nil {
			return err
		}
	}
	for _, r := range sec.Rows {
		if len(r) == 1 {
			if err := s.merged(r[0], s.style.value); err != nil {
				return err
			}
			continue
		}
		if err := s.pair(r[0], r[1], s.style.value); err != nil {
			return err
		}
	}
	if sec.Text != "" {
		if err := s.merged(sec.Text, s.style.text); err != nil {
			return err
		}
		return s.f.SetRowHeight(sheetName, s.row-1, 45)
	}
	return nil
}

// header writes the title over both columns and the metadata two per row.
func (s *sheet) header(sec Section) error {
	if err := s.merged(sec.Title, s.style.title); err != nil {
		return err
	}
	if err := s.f.SetRowHeight(sheetName, s.row-1, 28); err != nil {
		return err
	}
	for i := 0; i < len(sec.Fields); i += 2 {
		right := ""
		if i+1 < len(sec.Fields) {
			right = sec.Fields[i+1].Label + " : " + sec.Fields[i+1].Value
		}
		if err := s.pair(sec.Fields[i].Label+" : "+sec.Fields[i].Value, right, s.style.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *sheet) set(col, value string, style int) error {
	cell := fmt.Sprintf("%s%d", col, s.row)
	if err := s.f.SetCellValue(sheetName, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	if err := s.f.SetCellStyle(sheetName, cell, cell, style); err != nil {
		return fmt.Errorf("failed to set style on %s: %w", cell, err)
	}
	return nil
}

func (s *sheet) pair(left, right string, style int) error {
	if err := s.set("A", left, style); err != nil {
		return err
	}
	if err := s.set("B", right, style); err != nil {
		return err
	}
	s.row++
	return nil
}

func (s *sheet) merged(value string, style int) error {
	if err := s.set("A", value, style); err != nil {
		return err
	}
	if err := s.set("B", "", style); err != nil {
		return err
	}
	a, b := fmt.Sprintf("A%d", s.row), fmt.Sprintf("B%d", s.row)
	if err := s.f.MergeCell(sheetName, a, b); err != nil {
		return fmt.Errorf("failed to merge %s:%s: %w", a, b, err)
	}
	s.row++
	return nil
}
