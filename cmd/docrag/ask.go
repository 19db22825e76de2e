package main

import (
	"fmt"

	"github.com/fwojciec/docrag"
)

// Run executes the ask command.
func (c *AskCmd) Run(deps *Dependencies) error {
	answer, err := deps.Asker.Ask(deps.Ctx, c.Question, searchOptions(c.TopK, c.Source, ""))
	if err != nil {
		if docrag.ErrorCode(err) == docrag.ENOTFOUND {
			fmt.Fprintln(deps.Stderr, "error: no relevant documentation found. Use 'docrag sources' to see what is ingested.")
			return err
		}
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}

	fmt.Fprintln(deps.Stdout, answer)
	return nil
}
