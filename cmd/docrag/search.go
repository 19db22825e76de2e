package main

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/docrag"
)

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	results, err := deps.Search.Search(deps.Ctx, c.Query, searchOptions(c.TopK, c.Source, c.URL))
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		if results == nil {
			results = []*docrag.QueryResult{}
		}
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(deps.Stdout, "No results found.")
		return nil
	}
	fmt.Fprintln(deps.Stdout, docrag.FormatResults(results))
	return nil
}
