package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/email-assistant/internal/llm"
	"github.com/xaenox/email-assistant/internal/models"
	"go.uber.org/zap"
)

// Static confidence policy: the classifier does not report a probability,
// so these are fixed per-category values, not statistics.
const (
	spamConfidence    = 0.9
	defaultConfidence = 0.75
)

// noItemsSentinel is the exact (case-insensitive) reply the extractor uses
// to signal an empty task list.
const noItemsSentinel = "none"

var classificationReasons = map[models.Category]string{
	models.CategoryImportant:   "Appears to be work-related or requires attention",
	models.CategorySpam:        "Identified as spam or unsolicited content",
	models.CategoryNewsletter:  "Regular newsletter or digest content",
	models.CategoryPromotional: "Marketing or promotional content",
	models.CategorySocial:      "Social media or community notification",
	models.CategoryOther:       "General email",
}

// Processor turns raw inbound email into categorized, summarized,
// action-item-annotated records. Inference failures are absorbed into a
// degraded-but-valid record: the pipeline never returns an error, so
// inbound email is never dropped even when the model is down.
type Processor struct {
	llm    llm.Client
	logger *zap.Logger
}

func NewProcessor(client llm.Client, logger *zap.Logger) *Processor {
	return &Processor{
		llm:    client,
		logger: logger,
	}
}

// ProcessEmail runs the classification and summarization chain and returns
// a draft record. The caller persists it through the mailbox actor, which
// assigns the id and receive time.
func (p *Processor) ProcessEmail(ctx context.Context, raw models.RawEmail) *models.EmailRecord {
	meta := llm.Metadata{From: raw.From, Subject: raw.Subject}

	label, err := p.llm.Classify(ctx, raw.Content, meta)
	if err != nil {
		return p.degraded(raw, err)
	}
	category := models.CoerceCategory(label)

	record := &models.EmailRecord{
		From:         raw.From,
		To:           raw.To,
		Subject:      raw.Subject,
		Content:      raw.Content,
		Category:     category,
		Confidence:   defaultConfidence,
		Reason:       classificationReasons[category],
		ShouldFilter: category == models.CategorySpam,
		ActionItems:  []string{},
		ProcessedAt:  time.Now(),
	}
	if category == models.CategorySpam {
		record.Confidence = spamConfidence
	}

	// Expensive summarization and extraction only where it adds value;
	// the rest get a templated one-liner.
	switch category {
	case models.CategoryImportant, models.CategoryOther:
		summary, err := p.llm.Summarize(ctx, raw.Content, meta)
		if err != nil {
			return p.degraded(raw, err)
		}
		record.Summary = summary

		if category == models.CategoryImportant {
			items, err := p.llm.ExtractActionItems(ctx, raw.Content)
			if err != nil {
				return p.degraded(raw, err)
			}
			record.ActionItems = ParseActionItems(items)
		}
	default:
		record.Summary = templatedSummary(category, raw.From)
	}

	return record
}

// degraded builds the fallback record returned when any inference step
// fails. Diagnostics travel in the record itself rather than an error.
func (p *Processor) degraded(raw models.RawEmail, cause error) *models.EmailRecord {
	p.logger.Error("Email processing degraded",
		zap.Error(cause),
		zap.String("from", raw.From),
		zap.String("subject", raw.Subject))

	return &models.EmailRecord{
		From:            raw.From,
		To:              raw.To,
		Subject:         raw.Subject,
		Content:         raw.Content,
		Category:        models.CategoryOther,
		Confidence:      0,
		Reason:          "Processing error",
		ShouldFilter:    false,
		Summary:         fmt.Sprintf("Email from %s about %s", raw.From, raw.Subject),
		ActionItems:     []string{},
		ProcessedAt:     time.Now(),
		ProcessingError: cause.Error(),
	}
}

func templatedSummary(category models.Category, from string) string {
	name := string(category)
	name = strings.ToUpper(name[:1]) + name[1:]
	return fmt.Sprintf("%s email from %s", name, from)
}

// ParseActionItems splits the extractor's line-based output into trimmed
// task strings with leading bullet markers removed. The "None" sentinel
// yields an empty list.
func ParseActionItems(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, noItemsSentinel) {
		return []string{}
	}

	items := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•* ")
		if line == "" || strings.EqualFold(line, noItemsSentinel) {
			continue
		}
		items = append(items, line)
	}
	return items
}
