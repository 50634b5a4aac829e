package tts

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed voices.yaml
var voicesYAML []byte

// Voice is a provider voice with its language and gender.
type Voice struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Language string `yaml:"language"`
	Gender   string `yaml:"gender"`
}

// Catalog resolves {language, voice type} requests to provider voices.
type Catalog struct {
	voices           map[string][]Voice
	defaultLanguage  string
	defaultVoiceType string
}

// NewCatalog parses the embedded voice table.
func NewCatalog(defaultLanguage, defaultVoiceType string) (*Catalog, error) {
	var voices map[string][]Voice
	if err := yaml.Unmarshal(voicesYAML, &voices); err != nil {
		return nil, fmt.Errorf("failed to parse voice catalog: %w", err)
	}
	if len(voices) == 0 {
		return nil, fmt.Errorf("voice catalog is empty")
	}

	if defaultLanguage == "" {
		defaultLanguage = "en-US"
	}
	if defaultVoiceType == "" {
		defaultVoiceType = "female"
	}

	return &Catalog{
		voices:           voices,
		defaultLanguage:  defaultLanguage,
		defaultVoiceType: defaultVoiceType,
	}, nil
}

// Resolve picks a provider voice for the requested language and voice type.
// Unknown languages fall back to the default locale and unknown voice types
// to the default gender, so resolution never fails for a known provider.
func (c *Catalog) Resolve(provider, language, voiceType string) (Voice, error) {
	list := c.voices[provider]
	if len(list) == 0 {
		return Voice{}, fmt.Errorf("no voices configured for provider %q", provider)
	}

	if language == "" {
		language = c.defaultLanguage
	}
	if voiceType == "" {
		voiceType = c.defaultVoiceType
	}

	if v, ok := findVoice(list, language, voiceType); ok {
		return v, nil
	}
	if v, ok := findVoice(list, language, c.defaultVoiceType); ok {
		return v, nil
	}
	if v, ok := findVoice(list, c.defaultLanguage, voiceType); ok {
		return v, nil
	}
	if v, ok := findVoice(list, c.defaultLanguage, c.defaultVoiceType); ok {
		return v, nil
	}

	return list[0], nil
}

func findVoice(list []Voice, language, gender string) (Voice, bool) {
	for _, v := range list {
		if strings.EqualFold(v.Language, language) && strings.EqualFold(v.Gender, gender) {
			return v, true
		}
	}
	return Voice{}, false
}
