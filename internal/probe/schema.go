package probe

import (
	"fmt"

	"github.com/bowmanjd/busser/internal/storage"
	"github.com/bowmanjd/busser/internal/storage/mssql"
)

// Schema surveys path and returns DDL for table:
//
//	DROP TABLE IF EXISTS t;
//	CREATE TABLE t (a BIT, b NUMERIC(8, 5), ...);
//
// With opt.Chars, types are not inferred and every column is a VARCHAR
// sized to its widest value. opt.Table and opt.Infer are ignored.
func Schema(path, table string, opt Options) (string, error) {
	opt.Table = table
	opt.Infer = !opt.Chars
	sv, err := SurveyFile(path, opt)
	if err != nil {
		return "", err
	}
	return sv.Schema(table, opt.Chars)
}

// TableSpec describes the surveyed columns as a table named table.
func (sv *Survey) TableSpec(table string, chars bool) storage.TableSpec {
	t := storage.TableSpec{Name: table, Columns: make([]storage.ColumnSpec, sv.ColumnCount)}
	for i, name := range sv.Columns {
		t.Columns[i] = storage.ColumnSpec{Name: name, Type: sv.ColumnType(i, chars)}
	}
	return t
}

// Schema renders the survey as DDL for table.
func (sv *Survey) Schema(table string, chars bool) (string, error) {
	ddl, err := mssql.CreateTableSQL(sv.TableSpec(table, chars))
	if err != nil {
		return "", fmt.Errorf("schema for %q: %w", sv.Path, err)
	}
	return ddl, nil
}
