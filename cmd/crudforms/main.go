// Command crudforms serves generated CRUD forms for the demo record types.
package main

import "github.com/mesh-intelligence/crudforms/internal/cli"

func main() {
	cli.Execute()
}
