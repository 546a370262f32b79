package stt

import (
	"context"
	"fmt"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
)

const (
	defaultMinSpeakers = 1
	defaultMaxSpeakers = 6
)

// Diarize runs recognition with speaker diarization and returns one track per word
func (g *GoogleSpeech) Diarize(ctx context.Context, audioData []byte, config repositories.AudioConfig) ([]entities.RawDiarizationTrack, error) {
	if len(audioData) == 0 {
		return nil, fmt.Errorf("no audio data received")
	}

	recognitionConfig, err := recognitionConfig(config)
	if err != nil {
		return nil, err
	}
	recognitionConfig.EnableWordTimeOffsets = true
	recognitionConfig.DiarizationConfig = diarizationConfig(config)

	resp, err := g.recognize(ctx, recognitionConfig, audioData)
	if err != nil {
		return nil, err
	}

	// Silent audio yields no results; the caller decides what an empty timeline means
	tracks := responseToTracks(resp)

	g.logger.Info("Google diarization finished",
		zap.Int("results", len(resp.Results)),
		zap.Int("tracks", len(tracks)))

	return tracks, nil
}

// TranscribeAndDiarize derives transcript chunks and speaker tracks from a
// single diarization-enabled recognition of the audio
func (g *GoogleSpeech) TranscribeAndDiarize(ctx context.Context, audioData []byte, config repositories.AudioConfig) (*entities.Transcription, []entities.RawDiarizationTrack, error) {
	if len(audioData) == 0 {
		return nil, nil, fmt.Errorf("no audio data received")
	}

	recognitionConfig, err := recognitionConfig(config)
	if err != nil {
		return nil, nil, err
	}
	recognitionConfig.EnableWordTimeOffsets = true
	recognitionConfig.EnableAutomaticPunctuation = true
	recognitionConfig.DiarizationConfig = diarizationConfig(config)

	resp, err := g.recognize(ctx, recognitionConfig, audioData)
	if err != nil {
		return nil, nil, err
	}

	chunks := resultsToChunks(transcriptResults(resp.Results))
	tracks := responseToTracks(resp)

	g.logger.Info("Google recognition with diarization finished",
		zap.Int("results", len(resp.Results)),
		zap.Int("chunks", len(chunks)),
		zap.Int("tracks", len(tracks)))

	return newTranscription(chunks, config), tracks, nil
}

// responseToTracks reads the speaker-tagged words of the last result, which
// carries every word of the audio
func responseToTracks(resp *speechpb.LongRunningRecognizeResponse) []entities.RawDiarizationTrack {
	results := resp.GetResults()
	if len(results) == 0 {
		return []entities.RawDiarizationTrack{}
	}
	last := results[len(results)-1]
	if len(last.Alternatives) == 0 {
		return []entities.RawDiarizationTrack{}
	}
	return wordsToTracks(last.Alternatives[0].Words)
}

// transcriptResults drops the trailing word-list result a diarized response
// appends after the per-utterance results
func transcriptResults(results []*speechpb.SpeechRecognitionResult) []*speechpb.SpeechRecognitionResult {
	if len(results) < 2 {
		return results
	}
	return results[:len(results)-1]
}

func diarizationConfig(config repositories.AudioConfig) *speechpb.SpeakerDiarizationConfig {
	minSpeakers := config.MinSpeakers
	if minSpeakers == 0 {
		minSpeakers = defaultMinSpeakers
	}
	maxSpeakers := config.MaxSpeakers
	if maxSpeakers == 0 {
		maxSpeakers = defaultMaxSpeakers
	}
	if maxSpeakers < minSpeakers {
		maxSpeakers = minSpeakers
	}

	return &speechpb.SpeakerDiarizationConfig{
		EnableSpeakerDiarization: true,
		MinSpeakerCount:          int32(minSpeakers),
		MaxSpeakerCount:          int32(maxSpeakers),
	}
}

// wordsToTracks converts tagged words into diarization tracks.
// Words without a speaker tag are skipped.
func wordsToTracks(words []*speechpb.WordInfo) []entities.RawDiarizationTrack {
	tracks := make([]entities.RawDiarizationTrack, 0, len(words))
	for i, word := range words {
		if word.SpeakerTag == 0 {
			continue
		}
		tracks = append(tracks, entities.RawDiarizationTrack{
			Interval: entities.TimeInterval{
				Start: word.GetStartTime().AsDuration().Seconds(),
				End:   word.GetEndTime().AsDuration().Seconds(),
			},
			TrackID:      fmt.Sprintf("word-%d", i),
			SpeakerLabel: speakerLabel(int(word.SpeakerTag)),
		})
	}
	return tracks
}

// speakerLabel renders Google's 1-based speaker tag in the SPEAKER_00 style
func speakerLabel(tag int) string {
	return fmt.Sprintf("SPEAKER_%02d", tag-1)
}
