package assist

import (
	"regexp"
	"strings"

	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/pkg/models"
	"github.com/tsawler/prose/v3"
)

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	urlPattern      = regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.)?[a-z0-9-]+(?:\.[a-z0-9-]+)*\.(?:com|org|net|io|dev|edu|gov|co|app)(?:/\S*)?\b`)
	phonePattern    = regexp.MustCompile(`(?:\+\d{1,3}[\s.-]?)?(?:\(\d{3}\)|\b\d{3})[\s.-]?\d{3}[\s.-]\d{4}\b|\b\d{3}-\d{4}\b`)
	calendarPattern = regexp.MustCompile(`(?i)\b(?:meeting|appointment|schedule|reservation|call at|dinner with|lunch with|tomorrow|tonight|monday|tuesday|wednesday|thursday|friday|saturday|sunday|\d{1,2}(?::\d{2})?\s?(?:am|pm))\b`)
	searchPattern   = regexp.MustCompile(`(?i)^(?:search(?: for)?|google|look up|research|find out(?: about)?|browse)\s+(.+)$`)
	atPlacePattern  = regexp.MustCompile(`\bat ((?:[A-Z][\w'&-]*)(?:\s+[A-Z][\w'&-]*)*)`)
	placePattern    = regexp.MustCompile(`(?i)\b(grocery store|supermarket|pharmacy|post office|hardware store|bank|gym|library|gas station|dry cleaner|farmers market)\b`)
)

// Entity is a named span found in a title.
type Entity struct {
	Text  string
	Label string
}

// RuleClassifier guesses an assist from the title alone, without a model.
type RuleClassifier struct {
	entities func(text string) []Entity
}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{entities: proseEntities}
}

func proseEntities(text string) []Entity {
	doc, err := prose.NewDocument(text)
	if err != nil {
		logging.Debug("assist", "Entity extraction failed: %v", err)
		return nil
	}
	var out []Entity
	for _, ent := range doc.Entities() {
		out = append(out, Entity{Text: ent.Text, Label: ent.Label})
	}
	return out
}

// Classify returns the best rule match for title, or AssistNone.
func (r *RuleClassifier) Classify(title string) models.AssistClassification {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.AssistClassification{}
	}

	if m := emailPattern.FindString(title); m != "" {
		return models.AssistClassification{AssistType: models.AssistEmail, AssistData: m}
	}
	if m := urlPattern.FindString(title); m != "" {
		return models.AssistClassification{AssistType: models.AssistBrowser, AssistData: m}
	}
	if m := phonePattern.FindString(title); m != "" {
		return models.AssistClassification{AssistType: models.AssistPhone, AssistData: strings.TrimSpace(m)}
	}
	if calendarPattern.MatchString(title) {
		return models.AssistClassification{AssistType: models.AssistCalendar, AssistData: title}
	}
	if m := searchPattern.FindStringSubmatch(title); m != nil {
		return models.AssistClassification{AssistType: models.AssistBrowser, AssistData: strings.TrimSpace(m[1])}
	}
	if place := r.place(title); place != "" {
		return models.AssistClassification{AssistType: models.AssistMaps, AssistData: place}
	}
	return models.AssistClassification{}
}

func (r *RuleClassifier) place(title string) string {
	if r.entities != nil {
		for _, ent := range r.entities(title) {
			switch strings.ToUpper(ent.Label) {
			case "GPE", "LOC", "FAC":
				return ent.Text
			}
		}
	}
	if m := atPlacePattern.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	if m := placePattern.FindString(title); m != "" {
		return m
	}
	return ""
}
