package main

import (
	"fmt"

	"github.com/fwojciec/docrag"
	"github.com/fwojciec/docrag/ingest"
)

// Run executes the ingest command.
func (c *IngestCmd) Run(deps *Dependencies) error {
	result, err := deps.Ingester.IngestPages(deps.Ctx, c.URLs, docrag.IngestOptions{})
	if result != nil {
		printBatch(deps, result)
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}
	if result.Status() == docrag.StatusFailure {
		return docrag.Errorf(docrag.EINTERNAL, "no pages ingested")
	}
	return nil
}

// printBatch writes one line per page followed by a summary.
func printBatch(deps *Dependencies, result *docrag.BatchResult) {
	for _, o := range result.Pages {
		fmt.Fprintln(deps.Stdout, ingest.Describe(o))
	}
	fmt.Fprintf(deps.Stdout, "\n%d succeeded, %d partial, %d failed; %d chunks stored\n",
		result.Count(docrag.StatusSuccess),
		result.Count(docrag.StatusPartial),
		result.Count(docrag.StatusFailure),
		result.Stored())
}
