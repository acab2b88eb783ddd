// Package export sends invalid records and match fallout to a human review
// queue and pulls reviewer fixes back.
package export

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// DefaultBatchSize is used when no batch size is configured.
const DefaultBatchSize = 200

// ItemKind says what an Item came from.
type ItemKind string

const (
	KindValidationFailure ItemKind = "validation_failure"
	KindFallout           ItemKind = "fallout"
)

// Item is one row in the review queue.
type Item struct {
	Kind       ItemKind
	RunID      string
	EntityID   string
	EntityKind model.EntityKind
	Title      string

	// Validation failures.
	FailureID int64
	Field     string
	Rule      string
	Severity  string
	Value     string
	Message   string

	// Fallout.
	BestCandidate string
	Confidence    float64
	Attempts      int
}

// FromFailure builds an Item for a validation failure on the named entity.
func FromFailure(name string, f model.ValidationFailure) Item {
	return Item{
		Kind:       KindValidationFailure,
		RunID:      f.RunID,
		EntityID:   f.EntityID,
		EntityKind: f.EntityKind,
		Title:      name,
		FailureID:  f.ID,
		Field:      f.Field,
		Rule:       string(f.Rule),
		Severity:   string(f.Severity),
		Value:      f.Value,
		Message:    f.Message,
	}
}

// FromFallout builds an Item for an unresolved match.
func FromFallout(f model.Fallout) Item {
	return Item{
		Kind:          KindFallout,
		RunID:         f.RunID,
		EntityID:      f.InputKey,
		EntityKind:    f.Kind,
		Title:         f.InputName,
		FailureID:     f.ID,
		BestCandidate: f.BestCandidate,
		Confidence:    f.BestConfidence,
		Attempts:      len(f.Attempts),
		Message:       fmt.Sprintf("no candidate at or above threshold (best %.2f)", f.BestConfidence),
	}
}

// Columns is the review sheet layout shared by every sink.
var Columns = []string{
	"Name", "Kind", "Run ID", "Entity ID", "Entity Kind", "Failure ID",
	"Field", "Rule", "Severity", "Value", "Message",
	"Best Candidate", "Confidence", "Fixed Value",
}

// Values renders an item in Columns order. Fixed Value is left blank for
// the reviewer.
func (it Item) Values() []string {
	conf := ""
	if it.Kind == KindFallout {
		conf = strconv.FormatFloat(it.Confidence, 'f', 2, 64)
	}
	return []string{
		it.Title, string(it.Kind), it.RunID, it.EntityID, string(it.EntityKind),
		strconv.FormatInt(it.FailureID, 10),
		it.Field, it.Rule, it.Severity, it.Value, it.Message,
		it.BestCandidate, conf, "",
	}
}

// Exporter writes one batch of review items.
type Exporter interface {
	Name() string
	Export(ctx context.Context, runID string, items []Item) (int, error)
}

// Resolver applies a reviewer's fix to a stored validation failure.
type Resolver interface {
	ResolveFailure(ctx context.Context, id int64, fixedValue string) error
}

// Result summarizes an export run.
type Result struct {
	RunID    string `json:"run_id"`
	Sink     string `json:"sink"`
	Batches  int    `json:"batches"`
	Exported int    `json:"exported"`
}

// Run sends items to exp in batches of batchSize, stopping at the first
// failed batch or when ctx is done.
func Run(ctx context.Context, exp Exporter, runID string, items []Item, batchSize int) (*Result, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	log := zap.L().With(zap.String("sink", exp.Name()), zap.String("run_id", runID))
	res := &Result{RunID: runID, Sink: exp.Name()}

	for start := 0; start < len(items); start += batchSize {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "export: cancelled")
		}
		end := min(start+batchSize, len(items))

		n, err := exp.Export(ctx, runID, items[start:end])
		res.Exported += n
		if err != nil {
			return res, eris.Wrapf(err, "export: batch %d-%d", start, end)
		}
		res.Batches++
		log.Debug("exported batch", zap.Int("start", start), zap.Int("count", n))
	}

	log.Info("export complete", zap.Int("batches", res.Batches), zap.Int("exported", res.Exported))
	return res, nil
}
