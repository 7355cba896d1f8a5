package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds the parsed command line configuration for a single compilation run.
type Options struct {
	Src         string // Path to source file.
	Out         string // Path to output file.
	Threads     int    // Thread count; accepted for interface parity, unused by the single-threaded core.
	Verbose     bool   // Set true to print the LLVM target triple to stdout when compiling with -ll.
	TokenStream bool   // Set true if compiler should output the s-expression token stream and exit.
	VTableDump  bool   // Set true if compiler should print the vtable offset layout and exit.
	Debug       bool   // Set true to annotate emitted assembly with source positions (lineno/include).
	LLVM        bool   // Set true to use the LLVM bindings to write a native object file instead of x86 assembly text.
}

// ---------------------
// ----- Constants -----
// ---------------------

const maxThreads = 64 // Maximum threads accepted for interface parity with the teacher's CLI.
const appVersion = "oolc 1.0"

// ---------------------
// ----- functions -----
// ---------------------

// ParseArgs parses command line arguments.
func ParseArgs() (Options, error) {
	opt := Options{}
	if len(os.Args) < 2 {
		return opt, nil
	}
	args := os.Args[1:]
	for i1 := 0; i1 < len(args); i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			// Help and usage.
			printHelp()
			os.Exit(0)
		case "-ll":
			// Use LLVM bindings to write a native object file instead of x86 assembly text.
			opt.LLVM = true
		case "-o", "-t":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			if strings.HasPrefix(args[i1+1], "-") {
				return opt, fmt.Errorf("expected argument, got new flag %s", args[i1+1])
			}
			switch args[i1] {
			case "-o":
				// Output file.
				opt.Out = args[i1+1]
			case "-t":
				// Thread count.
				if t, err := strconv.Atoi(args[i1+1]); err == nil {
					if t > 0 && t <= maxThreads {
						opt.Threads = t
					} else {
						return opt, fmt.Errorf("thread count must be integer in range [1, %d]", maxThreads)
					}
				} else {
					return opt, fmt.Errorf("expected integer thread count, got: %s", args[i1+1])
				}
			}
			i1++
		case "-ts":
			// Output token stream.
			opt.TokenStream = true
		case "-vt":
			// Dump vtable offset layout.
			opt.VTableDump = true
		case "-dbg":
			// Annotate output with source positions.
			opt.Debug = true
		case "-v", "--v", "-version", "--version":
			// Application version.
			fmt.Println(appVersion)
			os.Exit(0)
		case "-vb":
			// Verbose mode.
			opt.Verbose = true
		default:
			if strings.HasPrefix(args[i1], "-") {
				return opt, fmt.Errorf("unexpected flag: %s", args[i1])
			}
			opt.Src = args[i1]
		}
	}
	return opt, nil
}

// printHelp prints a helpful usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits the application.")
	_, _ = fmt.Fprintln(w, "--h, --help")
	_, _ = fmt.Fprintln(w, "-dbg\tAnnotate emitted assembly with source line/column comments.")
	_, _ = fmt.Fprintln(w, "-ll\tUse LLVM bindings to write a native object file instead of x86 assembly text.")
	_, _ = fmt.Fprintln(w, "-o\tPath and name of the output file.")
	_, _ = fmt.Fprintf(w, "-t\tNumber of threads accepted for interface parity; ignored by the core. Must be in range [1, %d].\n", maxThreads)
	_, _ = fmt.Fprintln(w, "-ts\tOutput the s-expression token stream and exit.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints application version and exits the application.")
	_, _ = fmt.Fprintln(w, "--v, --version")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode: with -ll, print the target triple to stdout.")
	_, _ = fmt.Fprintln(w, "-vt\tPrint the assigned vtable offset layout and exit.")
	_ = w.Flush()
}
