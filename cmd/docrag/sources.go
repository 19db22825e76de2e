package main

import "fmt"

// Run executes the sources command.
func (c *SourcesCmd) Run(deps *Dependencies) error {
	sources, err := deps.Records.ListSources(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}

	if len(sources) == 0 {
		fmt.Fprintln(deps.Stdout, "No sources found. Use 'docrag crawl' to ingest some documentation.")
		return nil
	}

	for _, s := range sources {
		fmt.Fprintln(deps.Stdout, s)
	}
	return nil
}
