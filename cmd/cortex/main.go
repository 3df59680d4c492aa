// Command cortex ingests a workspace's documents into a local vector
// index and answers questions grounded in that index.
package main

import "github.com/mvp-joe/cortex-rag/internal/cli"

func main() {
	cli.Execute()
}
