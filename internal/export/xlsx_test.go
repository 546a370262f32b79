package export

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/satriahrh/keynotes/internal/transcript"
)

func TestWriteXLSX(t *testing.T) {
	sheet := transcript.Sheet{
		Name:   "Transcript",
		Header: transcript.TranscriptHeader,
		Rows: [][]string{
			{"call.wav", "en-US", "A", "00:00:00.000 - 00:00:04.900", "hi there", "Transcribe"},
			{"call.wav", "en-US", "B", "00:00:05.000 - 00:00:09.000", "bye", "Transcribe"},
		},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sheet); err != nil {
		t.Fatalf("WriteXLSX returned error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetName(0); got != "Transcript" {
		t.Errorf("Expected sheet Transcript, got %q", got)
	}

	rows, err := f.GetRows("Transcript")
	if err != nil {
		t.Fatalf("GetRows returned error: %v", err)
	}
	want := append([][]string{transcript.TranscriptHeader}, sheet.Rows...)
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	styleID, err := f.GetCellStyle("Transcript", "E2")
	if err != nil {
		t.Fatalf("GetCellStyle returned error: %v", err)
	}
	style, err := f.GetStyle(styleID)
	if err != nil {
		t.Fatalf("GetStyle returned error: %v", err)
	}
	if style.Alignment == nil || style.Alignment.Vertical != "top" || !style.Alignment.WrapText {
		t.Errorf("Expected top-aligned wrapped text, got %+v", style.Alignment)
	}
}

func TestWriteXLSXHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf, transcript.Sheet{Header: transcript.KeynoteHeader})
	if err != nil {
		t.Fatalf("WriteXLSX returned error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("GetRows returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected header row only, got %d rows", len(rows))
	}
}
