package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// InsertAll splits records into batches of 200 and inserts them with
// InsertCollection. Results are returned in input order; on error the
// results of the batches already sent are returned with it.
func InsertAll(ctx context.Context, c Client, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var all []CollectionResult
	for start := 0; start < len(records); start += maxBatchSize {
		end := min(start+maxBatchSize, len(records))
		results, err := c.InsertCollection(ctx, sObjectName, records[start:end])
		if err != nil {
			return all, eris.Wrap(err, fmt.Sprintf("sf: insert %s batch %d-%d", sObjectName, start, end))
		}
		all = append(all, results...)
	}
	return all, nil
}

// UpdateAll is InsertAll for updates of existing records.
func UpdateAll(ctx context.Context, c Client, sObjectName string, records []CollectionRecord) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var all []CollectionResult
	for start := 0; start < len(records); start += maxBatchSize {
		end := min(start+maxBatchSize, len(records))
		results, err := c.UpdateCollection(ctx, sObjectName, records[start:end])
		if err != nil {
			return all, eris.Wrap(err, fmt.Sprintf("sf: update %s batch %d-%d", sObjectName, start, end))
		}
		all = append(all, results...)
	}
	return all, nil
}

// FailedResults joins the errors of unsuccessful results, keyed by position.
func FailedResults(results []CollectionResult) map[int]string {
	failed := make(map[int]string)
	for i, r := range results {
		if !r.Success {
			failed[i] = strings.Join(r.Errors, "; ")
		}
	}
	return failed
}
