package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
)

// GoogleSpeech implements SpeechToText and Diarizer for Google Cloud
type GoogleSpeech struct {
	client *speech.Client
	logger *zap.Logger
}

var (
	_ repositories.SpeechToText          = (*GoogleSpeech)(nil)
	_ repositories.Diarizer              = (*GoogleSpeech)(nil)
	_ repositories.DiarizingSpeechToText = (*GoogleSpeech)(nil)
)

// NewGoogleSpeech creates a Google Cloud Speech client.
// credentialsFile may be empty to use application default credentials.
func NewGoogleSpeech(ctx context.Context, credentialsFile string, logger *zap.Logger) (*GoogleSpeech, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleSpeech{
		client: client,
		logger: logger,
	}, nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeech) Close() error {
	return g.client.Close()
}

// Transcribe runs a long-running recognition and returns one chunk per final result
func (g *GoogleSpeech) Transcribe(ctx context.Context, audioData []byte, config repositories.AudioConfig) (*entities.Transcription, error) {
	if len(audioData) == 0 {
		return nil, fmt.Errorf("no audio data received")
	}

	recognitionConfig, err := recognitionConfig(config)
	if err != nil {
		return nil, err
	}
	recognitionConfig.EnableWordTimeOffsets = true
	recognitionConfig.EnableAutomaticPunctuation = true

	resp, err := g.recognize(ctx, recognitionConfig, audioData)
	if err != nil {
		return nil, err
	}

	chunks := resultsToChunks(resp.Results)

	g.logger.Info("Google transcription finished",
		zap.Int("results", len(resp.Results)),
		zap.Int("chunks", len(chunks)))

	return newTranscription(chunks, config), nil
}

func newTranscription(chunks []entities.ASRChunk, config repositories.AudioConfig) *entities.Transcription {
	var text strings.Builder
	for _, chunk := range chunks {
		text.WriteString(chunk.Text)
	}

	return &entities.Transcription{
		Text:       strings.TrimSpace(text.String()),
		Chunks:     chunks,
		Language:   config.Language,
		SampleRate: config.SampleRate,
	}
}

func (g *GoogleSpeech) recognize(ctx context.Context, config *speechpb.RecognitionConfig, audioData []byte) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := g.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: config,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start recognition: %w", err)
	}

	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for recognition: %w", err)
	}
	return resp, nil
}

func recognitionConfig(config repositories.AudioConfig) (*speechpb.RecognitionConfig, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	return &speechpb.RecognitionConfig{
		Encoding:        encoding,
		SampleRateHertz: int32(config.SampleRate),
		LanguageCode:    config.Language,
	}, nil
}

// resultsToChunks turns each recognition result into a chunk spanning its
// first to last word. Results without word offsets start where the previous
// chunk ended and end at the result end time.
func resultsToChunks(results []*speechpb.SpeechRecognitionResult) []entities.ASRChunk {
	chunks := make([]entities.ASRChunk, 0, len(results))
	previousEnd := 0.0

	for _, result := range results {
		if len(result.Alternatives) == 0 {
			continue
		}
		best := result.Alternatives[0]
		transcript := strings.TrimSpace(best.Transcript)
		if transcript == "" {
			continue
		}

		start, end := previousEnd, result.GetResultEndTime().AsDuration().Seconds()
		if words := best.Words; len(words) > 0 {
			start = words[0].GetStartTime().AsDuration().Seconds()
			end = words[len(words)-1].GetEndTime().AsDuration().Seconds()
		}
		if end < start {
			end = start
		}

		// Leading space keeps grouped utterances readable when chunks are concatenated
		chunks = append(chunks, entities.ASRChunk{
			Timestamp: [2]float64{start, end},
			Text:      " " + transcript,
		})
		previousEnd = end
	}

	return chunks
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
