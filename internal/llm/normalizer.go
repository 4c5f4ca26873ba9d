package llm

import (
	"context"
	"errors"

	"github.com/finlens-ai/invoice-engine/internal/domain"
	"github.com/finlens-ai/invoice-engine/internal/observability"
)

// DefaultBatchSize bounds how many documents share one completion call.
// Chunk boundaries carry no meaning beyond rate-limit mitigation.
const DefaultBatchSize = 5

// Completer sends one prompt pair to the completion API.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NormalizedInvoice is one extracted invoice with its line items, every field
// stringified for sheet storage.
type NormalizedInvoice struct {
	Invoice   domain.Record
	LineItems []domain.Record
}

// Normalizer turns raw document markdown into validated invoice records,
// batching documents into bounded chunks per completion call.
type Normalizer struct {
	client    Completer
	batchSize int
	logger    *observability.Logger
}

// NewNormalizer creates a Normalizer. batchSize <= 0 uses DefaultBatchSize.
func NewNormalizer(client Completer, batchSize int, logger *observability.Logger) *Normalizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Normalizer{client: client, batchSize: batchSize, logger: logger}
}

// NormalizeOne extracts a single document. On non-JSON output it retries the
// completion once with a stricter instruction, then fails hard.
func (n *Normalizer) NormalizeOne(ctx context.Context, markdown string) (*NormalizedInvoice, error) {
	prompt := buildPrompt(markdown)

	text, err := n.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	value, err := RepairJSON(text)
	if err != nil {
		value, err = n.retryStrict(ctx, prompt)
		if err != nil {
			return nil, err
		}
	}

	extraction, err := ValidateExtraction(value)
	if err != nil {
		return nil, domain.ValidationError("invoice extraction rejected", err)
	}

	return toNormalized(extraction), nil
}

// NormalizeBatch extracts a list of documents in input order, issuing
// ceil(len(markdowns)/batchSize) completion calls. Each chunk accepts either a
// JSON array of {invoice, line_items} pairs or a single collapsed object.
func (n *Normalizer) NormalizeBatch(ctx context.Context, markdowns []string) ([]NormalizedInvoice, error) {
	var results []NormalizedInvoice

	for _, chunk := range chunkStrings(markdowns, n.batchSize) {
		prompt := buildBatchPrompt(chunk)

		text, err := n.client.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			return nil, err
		}

		value, err := RepairJSON(text)
		if err != nil || !isBatchShape(value) {
			value, err = n.retryStrict(ctx, prompt)
			if err != nil {
				return nil, err
			}
			if !isBatchShape(value) {
				return nil, domain.ParseError("LLM returned non-JSON array output", nil)
			}
		}

		items, ok := value.([]interface{})
		if !ok {
			// The model collapsed a 1-element batch into a bare object.
			items = []interface{}{value}
		}

		n.logger.Debug().
			Int("chunk_size", len(chunk)).
			Int("extracted", len(items)).
			Msg("Normalized chunk")

		for _, item := range items {
			extraction, err := ValidateExtraction(item)
			if err != nil {
				return nil, domain.ValidationError("invoice extraction rejected", err)
			}
			results = append(results, *toNormalized(extraction))
		}
	}

	return results, nil
}

// retryStrict reissues a prompt with the only-JSON addendum, returning a hard
// parse failure when the second answer is still not JSON.
func (n *Normalizer) retryStrict(ctx context.Context, prompt string) (interface{}, error) {
	n.logger.Warn().Msg("Non-JSON completion output, retrying with strict instruction")

	text, err := n.client.Complete(ctx, systemPrompt, prompt+onlyJSONAddendum)
	if err != nil {
		return nil, err
	}

	value, err := RepairJSON(text)
	if err != nil {
		if errors.Is(err, ErrNoJSON) {
			return nil, domain.ParseError("LLM returned non-JSON output", err)
		}
		return nil, err
	}
	return value, nil
}

// isBatchShape accepts an array, or an object that already looks like one
// {invoice, line_items} pair.
func isBatchShape(v interface{}) bool {
	switch t := v.(type) {
	case []interface{}:
		return true
	case map[string]interface{}:
		_, hasInvoice := t["invoice"]
		_, hasLines := t["line_items"]
		return hasInvoice && hasLines
	default:
		return false
	}
}

func toNormalized(e *Extraction) *NormalizedInvoice {
	out := &NormalizedInvoice{
		Invoice:   domain.ToRecord(e.Invoice),
		LineItems: make([]domain.Record, 0, len(e.LineItems)),
	}
	for _, item := range e.LineItems {
		out.LineItems = append(out.LineItems, domain.ToRecord(item))
	}
	return out
}

func chunkStrings(in []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(in); i += size {
		end := i + size
		if end > len(in) {
			end = len(in)
		}
		chunks = append(chunks, in[i:end])
	}
	return chunks
}
