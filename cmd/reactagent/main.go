// Command reactagent is the CLI entrypoint for the ReAct agentic query
// engine: it wires the Function Registry, Embedding Index, Hybrid Selector,
// Parameter Synthesizer, Retry Executor, Context Builder and ReAct Loop from
// a YAML config and executes a single Run request (§6).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: reactagent run [flags]")
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "run":
		if err := runCmd(ctx, os.Args[2:]); err != nil {
			log.Fatal(err)
		}
	case "version":
		fmt.Println("reactagent (dev)")
	default:
		log.Fatalf("reactagent: unknown command %q", os.Args[1])
	}
}
