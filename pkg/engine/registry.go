package engine

import (
	"fmt"

	"github.com/voxhire/voxhire/pkg/configutil"
	"github.com/voxhire/voxhire/pkg/providers/deepgram"
	"github.com/voxhire/voxhire/pkg/providers/elevenlabs"
	"github.com/voxhire/voxhire/pkg/providers/mock"
	"github.com/voxhire/voxhire/pkg/providers/openai"
	"github.com/voxhire/voxhire/pkg/speak"
	"github.com/voxhire/voxhire/pkg/speech"
	"github.com/voxhire/voxhire/pkg/turnapi"
)

type deepgramSettings struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Language       string `mapstructure:"language"`
	SampleRate     int    `mapstructure:"sample_rate"`
	Encoding       string `mapstructure:"encoding"`
	Interim        bool   `mapstructure:"interim"`
	UtteranceEndMS int    `mapstructure:"utterance_end_ms"`
}

type elevenLabsSettings struct {
	APIKey       string `mapstructure:"api_key"`
	VoiceID      string `mapstructure:"voice_id"`
	ModelID      string `mapstructure:"model_id"`
	OutputFormat string `mapstructure:"output_format"`
}

type openAISettings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type httpTurnSettings struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// NewRecognizer builds the speech recognizer named by the vendor config.
func NewRecognizer(vendor VendorConfig, roomID string) (speech.Stream, error) {
	switch vendor.Provider {
	case "deepgram":
		var s deepgramSettings
		if err := configutil.DecodeSettings(vendor.Settings, &s); err != nil {
			return nil, fmt.Errorf("decode deepgram settings: %w", err)
		}
		if err := configutil.RequireString(s.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		return deepgram.New(deepgram.Config{
			APIKey:         s.APIKey,
			Model:          s.Model,
			Language:       s.Language,
			SampleRate:     s.SampleRate,
			Encoding:       s.Encoding,
			Interim:        s.Interim,
			UtteranceEndMS: s.UtteranceEndMS,
			RoomID:         roomID,
		}), nil
	case "mock":
		return mock.NewRecognizer(), nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", vendor.Provider)
	}
}

// NewSynthesizer builds the speech synthesizer named by the vendor config.
func NewSynthesizer(vendor VendorConfig, roomID string) (speak.Synthesizer, error) {
	switch vendor.Provider {
	case "elevenlabs":
		var s elevenLabsSettings
		if err := configutil.DecodeSettings(vendor.Settings, &s); err != nil {
			return nil, fmt.Errorf("decode elevenlabs settings: %w", err)
		}
		if err := configutil.RequireString(s.APIKey, "vendors.tts.settings.api_key"); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(s.VoiceID, "vendors.tts.settings.voice_id"); err != nil {
			return nil, err
		}
		return elevenlabs.New(elevenlabs.Config{
			APIKey:       s.APIKey,
			VoiceID:      s.VoiceID,
			ModelID:      s.ModelID,
			OutputFormat: s.OutputFormat,
			RoomID:       roomID,
		}), nil
	case "mock":
		return mock.NewSynthesizer(0), nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", vendor.Provider)
	}
}

// NewGenerator builds the turn generator named by the vendor config.
func NewGenerator(vendor VendorConfig) (turnapi.Generator, error) {
	switch vendor.Provider {
	case "openai":
		var s openAISettings
		if err := configutil.DecodeSettings(vendor.Settings, &s); err != nil {
			return nil, fmt.Errorf("decode openai settings: %w", err)
		}
		if err := configutil.RequireString(s.APIKey, "vendors.turn.settings.api_key"); err != nil {
			return nil, err
		}
		return openai.New(openai.Config{
			APIKey:  s.APIKey,
			Model:   s.Model,
			BaseURL: s.BaseURL,
		}), nil
	case "http":
		var s httpTurnSettings
		if err := configutil.DecodeSettings(vendor.Settings, &s); err != nil {
			return nil, fmt.Errorf("decode http turn settings: %w", err)
		}
		if err := configutil.RequireString(s.BaseURL, "vendors.turn.settings.base_url"); err != nil {
			return nil, err
		}
		return turnapi.NewHTTPClient(s.BaseURL, nil, turnapi.WithAPIKey(s.APIKey)), nil
	case "mock":
		return mock.NewGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown turn provider %q", vendor.Provider)
	}
}
