// Package parser turns inbound Gitter events into ActivityStreams "Create"
// activities and gates outbound activities on the activity schema.
//
// A Parser holds only immutable configuration and is safe for concurrent
// use. Neither operation returns an error: every failure path resolves to
// (nil, false), which callers treat as "skip this event".
package parser

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/alfredjeanlab/gitterbridge/internal/idgen"
	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/prune"
	"github.com/alfredjeanlab/gitterbridge/internal/schema"
)

// Parser normalizes and validates Gitter events.
type Parser struct {
	serviceID     string
	generatorName string
	logger        *slog.Logger
	validator     schema.Validator
	newID         func() string
	now           func() time.Time
}

// Option customizes a Parser.
type Option func(*Parser)

// WithValidator sets the schema validator used by Validate.
func WithValidator(v schema.Validator) Option {
	return func(p *Parser) { p.validator = v }
}

// WithIDGenerator sets the function producing object IDs for messages that
// carry none.
func WithIDGenerator(fn func() string) Option {
	return func(p *Parser) { p.newID = fn }
}

// WithClock sets the time source used when an event has no sent time.
func WithClock(fn func() time.Time) Option {
	return func(p *Parser) { p.now = fn }
}

// WithLogger replaces the default stderr logger. The log level passed to New
// is ignored in that case.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.logger = l.With("component", "parser") }
}

// New returns a Parser stamping serviceID on every activity. logLevel is one
// of debug, info, warn or error; anything else means info.
func New(serviceID, logLevel string, opts ...Option) (*Parser, error) {
	p := &Parser{
		serviceID:     serviceID,
		generatorName: model.GeneratorGitter,
		newID:         idgen.NewObjectID,
		now:           time.Now,
	}
	p.logger = NewLogger(os.Stderr, logLevel).With("component", "parser")
	for _, opt := range opts {
		opt(p)
	}
	if p.validator == nil {
		v, err := schema.NewJSONSchemaValidator()
		if err != nil {
			return nil, err
		}
		p.validator = v
	}
	return p, nil
}

// ServiceID returns the generator id stamped on activities.
func (p *Parser) ServiceID() string {
	return p.serviceID
}

// Categories lists the schema categories the validator knows, or just the
// activity category when the validator cannot enumerate them.
func (p *Parser) Categories() []schema.Category {
	if lister, ok := p.validator.(interface{ Categories() []schema.Category }); ok {
		return lister.Categories()
	}
	return []schema.Category{schema.CategoryActivity}
}

// Validate prunes nulls from event and checks the result against the
// activity schema. It returns the pruned object when it is accepted.
func (p *Parser) Validate(ctx context.Context, event map[string]any) (map[string]any, bool) {
	return p.ValidateAs(ctx, event, schema.CategoryActivity)
}

// ValidateAs is Validate against an arbitrary schema category.
func (p *Parser) ValidateAs(ctx context.Context, event map[string]any, category schema.Category) (map[string]any, bool) {
	p.logger.Debug("validation process", "event", event)

	parsed := prune.CleanNulls(event)
	if len(parsed) == 0 {
		return nil, false
	}

	if !hasType(parsed) {
		p.logger.Debug("type not found", "parsed", parsed)
		return nil, false
	}

	res := p.validator.Validate(ctx, parsed, category)
	if !res.Valid {
		p.logger.Error("schema validation failed", "category", category, "err", res.Err())
		return nil, false
	}
	return parsed, true
}

// hasType reports whether the event carries a type discriminator: any value
// other than false, zero or the empty string.
func hasType(event map[string]any) bool {
	switch v := event["type"].(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case int:
		return v != 0
	case int64:
		return v != 0
	}
	return true
}

// Parse converts a Gitter message event into an activity.
func (p *Parser) Parse(ctx context.Context, event map[string]any) (*model.Activity, bool) {
	p.logger.Debug("normalize process", "event", event)

	normalized := prune.CleanNulls(event)
	if len(normalized) == 0 {
		return nil, false
	}

	ev := model.DecodeGitterEvent(normalized)

	activity := p.createActivityStream(ev)

	activity.Actor = model.Actor{
		ID:   ev.SenderID(),
		Name: ev.SenderName(),
		Type: model.TypePerson,
	}

	targetType := model.TypeGroup
	if ev.OneToOne() {
		targetType = model.TypePerson
	}
	activity.Target = model.Target{
		ID:   ev.RoomID(),
		Name: ev.RoomName(),
		Type: targetType,
	}

	objectID := ev.MessageID()
	if objectID == "" {
		objectID = p.newID()
	}
	activity.Object = model.Object{
		Content: ev.Text(),
		ID:      objectID,
		Type:    model.TypeNote,
	}

	return activity, true
}

func (p *Parser) createActivityStream(ev *model.GitterEvent) *model.Activity {
	return &model.Activity{
		Context: model.ActivityStreamsContext,
		Generator: model.Generator{
			ID:   p.serviceID,
			Name: p.generatorName,
			Type: model.TypeService,
		},
		Published: p.published(ev),
		Type:      model.TypeCreate,
	}
}

// published returns data.sent in whole epoch seconds, falling back to the
// clock when the field is missing. An unreadable sent value also falls back
// to the clock instead of yielding a null timestamp, so every envelope
// carries a number.
func (p *Parser) published(ev *model.GitterEvent) int64 {
	if sent, ok := ev.Sent(); ok {
		t, err := ParseSent(sent)
		if err == nil {
			return t.Unix()
		}
		p.logger.Debug("unreadable sent time, using clock", "sent", sent, "err", err)
	}
	return p.now().Unix()
}

// NewLogger builds the text logger used by the service. level is one of
// debug, info, warn or error; anything else means info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
