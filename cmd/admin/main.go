package main

import (
	"fmt"
	"os"
)

const usage = `usage:
  admin db [-data ./data|-db PATH] [-limit N] [-requester_id ID] drops|requesters|items|catalogs
  admin history [-url URL] [-requester_id ID] [-limit N]
  admin status [-url URL]
  admin offsets [-url URL]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "db":
		dbCmd(os.Args[2:])
	case "history":
		historyCmd(os.Args[2:])
	case "status":
		getCmd("status", "/admin/v1/status", os.Args[2:])
	case "offsets":
		getCmd("offsets", "/admin/v1/offsets", os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", os.Args[1])
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}
