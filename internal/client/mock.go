package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockCompletionClient is the development fallback used when no Groq key
// is configured. It answers planning prompts with a deterministic album
// plan and everything else with placeholder lyrics.
type MockCompletionClient struct{}

func NewMockCompletionClient() *MockCompletionClient {
	return &MockCompletionClient{}
}

func (c *MockCompletionClient) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	prompt := ""
	for _, m := range req.Messages {
		if m.Role == "user" {
			prompt = m.Content
		}
	}

	if strings.Contains(prompt, "Output as JSON") {
		return mockAlbumPlan, nil
	}
	return mockLyrics, nil
}

const mockAlbumPlan = `{
  "title": "Neon Horizons",
  "theme": "Late nights in a city that never lets you rest, and the small hopes that keep you moving.",
  "songs": [
    {"title": "City Lights", "direction": "An upbeat opener about chasing dreams downtown.", "styleTags": ["upbeat", "anthemic"]},
    {"title": "Morning Rain", "direction": "A slower reflection on what the night cost.", "styleTags": ["mellow", "reflective"]},
    {"title": "Crown of Static", "direction": "Defiance against the noise of everyone else's expectations.", "styleTags": ["driving", "bold"]}
  ]
}`

const mockLyrics = `[Verse]
Walking through the city lights
Feeling like we own the night
Nothing's gonna bring us down
We're the kings without a crown

[Chorus]
Stars are shining up above
This is what we're dreaming of
Every moment feels so right
Dancing till the morning light

[Verse]
Shadows stretching down the street
Echoes of a steady beat
Every window tells a tale
Every dream too big to fail

[Chorus]
Stars are shining up above
This is what we're dreaming of
Every moment feels so right
Dancing till the morning light

[Bridge]
Hold on when the night runs long
Turn the silence into song

[Chorus]
Stars are shining up above
This is what we're dreaming of
Every moment feels so right
Dancing till the morning light`

// MockAudioGenerator is the development fallback when no Suno key is
// configured. Jobs complete immediately on the first status poll.
type MockAudioGenerator struct {
	mu   sync.Mutex
	jobs map[string]string // jobID -> title
}

func NewMockAudioGenerator() *MockAudioGenerator {
	return &MockAudioGenerator{jobs: make(map[string]string)}
}

func (m *MockAudioGenerator) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	jobID := uuid.New().String()
	m.mu.Lock()
	m.jobs[jobID] = req.Title
	m.mu.Unlock()
	return &GenerateResponse{JobID: jobID}, nil
}

func (m *MockAudioGenerator) GetStatus(ctx context.Context, jobID string) (*GenerationResult, error) {
	m.mu.Lock()
	_, ok := m.jobs[jobID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown job %s", jobID)
	}
	return &GenerationResult{
		JobID:    jobID,
		Status:   "completed",
		AudioURL: fmt.Sprintf("https://cdn.makeasinger.com/tracks/%s.mp3", jobID),
		Duration: 180.5,
	}, nil
}
