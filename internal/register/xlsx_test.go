package register

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func TestXLSXToCSVPadsRows(t *testing.T) {
	buf := workbook(t, [][]any{
		{"AB12CDE", "2019-01-01", "2025-01-01", "taxi", "Leeds", "PL001", "true"},
		{"XY99ZZZ", "2019-01-01", "2025-01-01", "PHV", "Leeds", "PL002"},
	})

	converted, err := XLSXToCSV(buf)
	if err != nil {
		t.Fatalf("XLSXToCSV returned error: %v", err)
	}
	out, err := io.ReadAll(converted)
	if err != nil {
		t.Fatalf("read converted: %v", err)
	}
	want := "AB12CDE,2019-01-01,2025-01-01,taxi,Leeds,PL001,true\n" +
		"XY99ZZZ,2019-01-01,2025-01-01,PHV,Leeds,PL002,\n"
	if string(out) != want {
		t.Fatalf("unexpected csv:\n%s", out)
	}
}

func TestLicenceParserReadsWorkbook(t *testing.T) {
	buf := workbook(t, [][]any{
		{"AB12CDE", "2019-01-01", "2025-01-01", "taxi", "Leeds", "PL001", "true"},
		{"BADVRM123", "2019-01-01", "2025-01-01", "taxi", "Leeds", "PL002", "false"},
	})

	parsed, err := LicenceParser(nil)(context.Background(), domain.ContentTypeXLSX, buf)
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(parsed.Result.Records) != 1 || len(parsed.Result.Errors) != 1 {
		t.Fatalf("expected 1 record and 1 error, got %+v", parsed.Result)
	}
	if parsed.Identifiers[2] != "BADVRM123" {
		t.Fatalf("expected rejected VRM on line 2, got %v", parsed.Identifiers)
	}
}

func TestXLSXToCSVRejectsGarbage(t *testing.T) {
	if _, err := XLSXToCSV(bytes.NewReader([]byte("not a workbook"))); err == nil {
		t.Fatalf("expected error for non-xlsx input")
	}
}
