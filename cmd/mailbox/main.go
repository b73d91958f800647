// mailbox is a demo CLI over the folder/manager/thread packages.
//
// Usage:
//
//	mailbox cat <folder>              Print headers for every message
//	mailbox thread <folder> [folder…] Reconstruct and print threads
//	mailbox serve                     Start the introspection HTTP server
//	mailbox version                   Print version information
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/manager"
	"github.com/eslider/mailbox/manager/statussrv"
	"github.com/eslider/mailbox/thread"
)

var version = "1.0.0-dev"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "cat":
		runCat(os.Args[2:])
	case "thread":
		runThread(os.Args[2:])
	case "serve":
		runServe()
	case "version":
		fmt.Printf("mailbox %s\n", version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: mailbox <command>

Commands:
  cat <folder>                Print headers for every message in a folder
  thread <folder> [folder…]   Reconstruct and print threads across folders
  serve                       Start the introspection HTTP server
  version                     Print version information

Environment:
  LISTEN_ADDR   HTTP listen address for serve (default: :8091)`)
}

func runCat(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: mailbox cat <folder>")
		os.Exit(1)
	}

	mgr := manager.New()
	f, err := mgr.Open(manager.OpenSpec{
		Name:    args[0],
		Options: folder.OpenOptions{AccessMode: "r"},
	})
	if err != nil {
		log.Fatalf("open %s: %v", args[0], err)
	}

	for i, m := range f.Messages(folder.Active()) {
		subject, _ := m.Head().GetFirst("subject")
		from, _ := m.Head().GetFirst("from")
		date, _ := m.Head().GetFirst("date")
		fmt.Printf("%4d  %-28s  %-28s  %s\n", i, trim(from.Body(), 28), trim(date.Body(), 28), subject.Body())
	}
}

func trim(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func runThread(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mailbox thread <folder> [folder…]")
		os.Exit(1)
	}

	mgr := manager.New()
	folders := make([]folder.Folder, 0, len(args))
	for _, name := range args {
		f, err := mgr.Open(manager.OpenSpec{Name: name, Options: folder.OpenOptions{AccessMode: "r"}})
		if err != nil {
			log.Fatalf("open %s: %v", name, err)
		}
		folders = append(folders, f)
	}

	tm := mgr.ThreadManager(strings.Join(args, ","), folders...)
	for _, root := range tm.All() {
		printThread(root, 0)
	}
}

func printThread(n *thread.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if n.Dummy() {
		fmt.Printf("%s- <missing: %s>\n", indent, n.MessageID)
	} else {
		subject, _ := n.Msg.Head().GetFirst("subject")
		fmt.Printf("%s- %s (%s)\n", indent, subject.Body(), n.MessageID)
	}
	for _, child := range n.Children {
		printThread(child, depth+1)
	}
}

func runServe() {
	listenAddr := envOr("LISTEN_ADDR", ":8091")
	mgr := manager.New()
	router := statussrv.NewRouter(mgr)

	log.Printf("Starting mailbox %s on %s", version, listenAddr)
	if err := http.ListenAndServe(listenAddr, router); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
