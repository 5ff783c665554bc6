package render

import (
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/jerrinot/pperf/internal/hierarchy"
)

const sheetName = "pperf"

// WriteXLSX saves rows as a spreadsheet at path, one header row followed
// by one row per entry, for analysts who want to pivot/filter results in
// a spreadsheet tool rather than grep fixed-width text.
func WriteXLSX(path string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return errors.Wrap(err, "renaming default sheet")
	}
	if err := writeHeader(f, "Children%", "Self%", "Function"); err != nil {
		return err
	}
	for i, r := range rows {
		row := i + 2
		if err := setRow(f, row, r.ChildrenPct, r.SelfPct, r.Symbol); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// WriteHierarchyXLSX is the spreadsheet counterpart of HierarchyTable:
// one row per target, then one row per callee (and, recursively, per
// nested callee) directly beneath it, with a Role column distinguishing
// the two. Symbols are written without indentation.
func WriteHierarchyXLSX(path string, entries []hierarchy.Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return errors.Wrap(err, "renaming default sheet")
	}
	if err := writeHeader(f, "Children%", "Self%", "Function", "Role"); err != nil {
		return err
	}

	row := 2
	for _, e := range entries {
		childrenPct := e.AdjustedChildrenPct
		if e.IsCaller {
			childrenPct = e.OriginalChildrenPct
		}
		if err := setHierarchyRow(f, row, childrenPct, e.OriginalSelfPct, e.Symbol, "target"); err != nil {
			return err
		}
		row++
		var werr error
		row, werr = writeCalleeRows(f, row, e.Callees)
		if werr != nil {
			return werr
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func writeHeader(f *excelize.File, cols ...string) error {
	for i, col := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, row int, childrenPct, selfPct float64, sym string) error {
	return setCells(f, row, childrenPct, selfPct, sym)
}

// writeCalleeRows writes one "callee" row per relation starting at row,
// then recurses into each relation's own Nested callees-of-callees, and
// returns the next free row.
func writeCalleeRows(f *excelize.File, row int, callees []hierarchy.Relation) (int, error) {
	for _, callee := range callees {
		if err := setHierarchyRow(f, row, callee.RelativePct, 0, callee.Callee, "callee"); err != nil {
			return row, err
		}
		row++
		var err error
		row, err = writeCalleeRows(f, row, callee.Nested)
		if err != nil {
			return row, err
		}
	}
	return row, nil
}

func setHierarchyRow(f *excelize.File, row int, childrenPct, selfPct float64, sym, role string) error {
	if err := setCells(f, row, childrenPct, selfPct, sym); err != nil {
		return err
	}
	cell, err := excelize.CoordinatesToCellName(4, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheetName, cell, role)
}

func setCells(f *excelize.File, row int, childrenPct, selfPct float64, sym string) error {
	values := []any{childrenPct, selfPct, sym}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return err
		}
	}
	return nil
}
