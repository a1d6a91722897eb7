package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/ldi/telepathic/embed/prompts"
	"github.com/ldi/telepathic/internal/ai"
	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/pkg/models"
)

// TaskSaver persists a classified task.
type TaskSaver interface {
	SaveTask(ctx context.Context, t *models.Task) (int64, error)
}

// Classifier attaches an assist to a task from its title.
type Classifier struct {
	ai    ai.Provider
	rules *RuleClassifier
}

func NewClassifier(provider ai.Provider) *Classifier {
	return &Classifier{ai: provider, rules: NewRuleClassifier()}
}

// Analyze asks the model to classify task and writes the answer into it.
// It reports whether an assist was found. Failures are logged and leave the
// task unchanged.
func (c *Classifier) Analyze(ctx context.Context, task *models.Task) bool {
	if task == nil || strings.TrimSpace(task.Title) == "" {
		return false
	}
	if c.ai == nil || !c.ai.IsInitialized() {
		logging.Warn("assist", "Cannot analyze task: AI client is not initialized")
		return false
	}

	client, err := c.ai.GetClient()
	if err != nil {
		logging.Warn("assist", "Cannot analyze task: %v", err)
		return false
	}

	prompt, err := prompts.Render("classify", prompts.Classify, struct{ Title string }{task.Title})
	if err != nil {
		logging.Warn("assist", "Failed to render classification prompt: %v", err)
		return false
	}

	var result models.AssistClassification
	if err := client.Structured(ctx, prompt, &result); err != nil {
		logging.Warn("assist", "Error analyzing task %q for assist opportunities: %v", logging.Truncate(task.Title, 60), err)
		return false
	}

	task.AssistType = result.AssistType
	task.AssistData = strings.TrimSpace(result.AssistData)
	logging.Info("assist", "Task analysis complete. AssistType: %s, AssistData: %s", task.AssistType, task.AssistData)
	return task.HasAssist()
}

// AnalyzeOrGuess uses the model when one is configured and the offline rules
// otherwise.
func (c *Classifier) AnalyzeOrGuess(ctx context.Context, task *models.Task) bool {
	if task == nil {
		return false
	}
	if c.ai != nil && c.ai.IsInitialized() {
		return c.Analyze(ctx, task)
	}
	guess := c.rules.Classify(task.Title)
	if guess.AssistType == models.AssistNone {
		return false
	}
	task.AssistType = guess.AssistType
	task.AssistData = guess.AssistData
	logging.Debug("assist", "Rule match for %q: %s %q", task.Title, guess.AssistType, guess.AssistData)
	return true
}

// AnalyzeAndSave classifies task and persists it when an assist was found.
func (c *Classifier) AnalyzeAndSave(ctx context.Context, store TaskSaver, task *models.Task) (bool, error) {
	if !c.AnalyzeOrGuess(ctx, task) {
		return false, nil
	}
	if _, err := store.SaveTask(ctx, task); err != nil {
		return true, fmt.Errorf("failed to save classified task: %w", err)
	}
	return true, nil
}
