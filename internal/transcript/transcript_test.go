package transcript

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/satriahrh/keynotes/domain/entities"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name       string
		utterances []entities.AlignedUtterance
		want       string
	}{
		{
			name:       "empty",
			utterances: nil,
			want:       "",
		},
		{
			name: "trims text",
			utterances: []entities.AlignedUtterance{
				{SpeakerLabel: "SPEAKER_00", Text: " hi there "},
				{SpeakerLabel: "SPEAKER_01", Text: "bye"},
			},
			want: "SPEAKER_00: hi there\nSPEAKER_01: bye",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.utterances); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		ts   [2]float64
		want string
	}{
		{[2]float64{0, 4.9}, "00:00:00.000 - 00:00:04.900"},
		{[2]float64{61.25, 3723.5}, "00:01:01.250 - 01:02:03.500"},
		{[2]float64{-1, 0.0004}, "00:00:00.000 - 00:00:00.000"},
	}

	for _, tt := range tests {
		if got := FormatTimestamp(tt.ts); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.ts, got, tt.want)
		}
	}
}

func TestRowsTranscribe(t *testing.T) {
	job := entities.NewTranscriptionJob("call.wav", "en-US", entities.TaskTranscribe, true)
	job.Complete([]entities.AlignedUtterance{
		{SpeakerLabel: "A", Text: "hi there ", Timestamp: [2]float64{0, 4.9}},
		{SpeakerLabel: "B", Text: "bye", Timestamp: [2]float64{5, 9}},
	}, "")

	sheet := Rows(job)

	if diff := cmp.Diff(TranscriptHeader, sheet.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	want := [][]string{
		{"call.wav", "en-US", "A", "00:00:00.000 - 00:00:04.900", "hi there", "Transcribe"},
		{"call.wav", "en-US", "B", "00:00:05.000 - 00:00:09.000", "bye", "Transcribe"},
	}
	if diff := cmp.Diff(want, sheet.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRowsKeynote(t *testing.T) {
	job := entities.NewTranscriptionJob("call.wav", "en-US", entities.TaskKeynote, true)
	job.Complete([]entities.AlignedUtterance{{SpeakerLabel: "A", Text: "hello"}}, "- greeting\n")

	sheet := Rows(job)

	want := [][]string{{"call.wav", "en-US", "- greeting", "Note"}}
	if diff := cmp.Diff(want, sheet.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if sheet.Name != "KeyNotes" {
		t.Errorf("Expected KeyNotes sheet, got %q", sheet.Name)
	}
}
