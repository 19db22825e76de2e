package main

import "fmt"

// Run executes the serve command.
func (c *ServeCmd) Run(deps *Dependencies) error {
	if c.HTTP == "" {
		fmt.Fprintln(deps.Stderr, "Serving MCP over stdio")
		return deps.Server.Run(deps.Ctx)
	}

	fmt.Fprintf(deps.Stderr, "Serving MCP on http://%s\n", c.HTTP)
	return deps.Server.RunHTTP(deps.Ctx, c.HTTP)
}
