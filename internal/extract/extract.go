package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ldi/telepathic/embed/prompts"
	"github.com/ldi/telepathic/internal/ai"
	"github.com/ldi/telepathic/internal/assist"
	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/pkg/models"
)

// Store persists extraction results.
type Store interface {
	SaveExtraction(ctx context.Context, result *models.ExtractionResult) ([]*models.Task, error)
	SaveTask(ctx context.Context, t *models.Task) (int64, error)
}

// Extractor turns voice memos, photos and free text into projects and tasks.
type Extractor struct {
	ai         ai.Provider
	store      Store
	classifier *assist.Classifier
	now        func() time.Time
}

func NewExtractor(provider ai.Provider, store Store, classifier *assist.Classifier) *Extractor {
	return &Extractor{
		ai:         provider,
		store:      store,
		classifier: classifier,
		now:        time.Now,
	}
}

func (e *Extractor) client() (ai.Client, error) {
	if e.ai == nil || !e.ai.IsInitialized() {
		return nil, ai.ErrNotInitialized
	}
	return e.ai.GetClient()
}

// FromTranscript extracts projects and tasks from spoken text.
func (e *Extractor) FromTranscript(ctx context.Context, transcript string) (*models.ExtractionResult, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return &models.ExtractionResult{}, nil
	}
	client, err := e.client()
	if err != nil {
		return nil, err
	}

	prompt, err := prompts.Render("voice", prompts.Voice, struct {
		Today      string
		Transcript string
	}{e.now().Format("2006-01-02"), transcript})
	if err != nil {
		return nil, fmt.Errorf("failed to render voice prompt: %w", err)
	}

	var result models.ExtractionResult
	if err := client.Structured(ctx, prompt, &result); err != nil {
		return nil, fmt.Errorf("failed to extract tasks: %w", err)
	}
	logging.Info("extract", "Extracted %d projects and %d tasks from transcript", len(result.Projects), len(result.StandaloneTasks))
	return &result, nil
}

// FromAudio transcribes the recording at path and extracts from the text.
func (e *Extractor) FromAudio(ctx context.Context, path string) (*models.ExtractionResult, error) {
	client, err := e.client()
	if err != nil {
		return nil, err
	}
	transcript, err := client.Transcribe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe %s: %w", path, err)
	}
	logging.Debug("extract", "Transcript: %s", logging.Truncate(transcript, 200))
	return e.FromTranscript(ctx, transcript)
}

// FromImage extracts from a photo or screenshot. An empty mimeType is
// sniffed from the data.
func (e *Extractor) FromImage(ctx context.Context, data []byte, mimeType, notes string) (*models.ExtractionResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image is empty")
	}
	client, err := e.client()
	if err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("unsupported image type: %s", mimeType)
	}

	prompt, err := prompts.Render("image", prompts.Image, struct{ Notes string }{strings.TrimSpace(notes)})
	if err != nil {
		return nil, fmt.Errorf("failed to render image prompt: %w", err)
	}

	var result models.ExtractionResult
	if err := client.StructuredWithImage(ctx, prompt, data, mimeType, &result); err != nil {
		return nil, fmt.Errorf("failed to analyze image: %w", err)
	}
	logging.Info("extract", "Extracted %d projects and %d tasks from image", len(result.Projects), len(result.StandaloneTasks))
	return &result, nil
}

// Save stores result and tries to attach an assist to every created task.
// Classification failures are logged and do not fail the save.
func (e *Extractor) Save(ctx context.Context, result *models.ExtractionResult) ([]*models.Task, error) {
	created, err := e.store.SaveExtraction(ctx, result)
	if err != nil {
		return nil, err
	}
	if e.classifier == nil {
		return created, nil
	}
	for _, t := range created {
		if _, err := e.classifier.AnalyzeAndSave(ctx, e.store, t); err != nil {
			logging.Warn("extract", "Failed to classify task %d: %v", t.ID, err)
		}
	}
	return created, nil
}
