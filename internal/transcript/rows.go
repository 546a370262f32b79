package transcript

import (
	"strings"

	"github.com/satriahrh/keynotes/domain/entities"
)

// Sheet is a header plus rows of cell values
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Column headers for transcript and keynote sheets
var (
	TranscriptHeader = []string{"Audio", "Language", "Speaker", "Timestamp", "Transcript", "Task"}
	KeynoteHeader    = []string{"Audio", "Language", "KeyNotes", "Task"}
)

// Task labels as they appear in exported sheets
const (
	taskLabelTranscribe = "Transcribe"
	taskLabelKeynote    = "Note"
)

// Rows flattens a finished job into a sheet.
// Transcribe jobs get one row per utterance with the scalar columns repeated on every row.
// Keynote jobs get a single row carrying the summary.
func Rows(job *entities.TranscriptionJob) Sheet {
	if job.Task == entities.TaskKeynote {
		return Sheet{
			Name:   "KeyNotes",
			Header: KeynoteHeader,
			Rows: [][]string{
				{job.AudioName, job.Language, strings.TrimSpace(job.Summary), taskLabelKeynote},
			},
		}
	}

	rows := make([][]string, 0, len(job.Utterances))
	for _, u := range job.Utterances {
		rows = append(rows, []string{
			job.AudioName,
			job.Language,
			u.SpeakerLabel,
			FormatTimestamp(u.Timestamp),
			strings.TrimSpace(u.Text),
			taskLabelTranscribe,
		})
	}

	return Sheet{
		Name:   "Transcript",
		Header: TranscriptHeader,
		Rows:   rows,
	}
}
