// Norn CLI - evaluate nouns, convert between text and wire form, and run
// the evaluation service.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/norn/config"
	"github.com/chazu/norn/server"
	"github.com/chazu/norn/store"
	"github.com/chazu/norn/vm"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	evalExpr := flag.String("e", "", "Evaluate a [subject formula] expression and print the product")
	encodeExpr := flag.String("encode", "", "Encode an expression to wire form (hex on stdout)")
	decodeInput := flag.Bool("decode", false, "Decode wire-form bytes (hex on stdin) to text form")
	configDir := flag.String("c", "", "Directory containing norn.toml")
	storePath := flag.String("store", "", "Back the memo tables with a SQLite store at this path")
	seed := flag.String("seed", "", "Hex seed for deterministic entropy")
	budget := flag.Int64("budget", 0, "Evaluation budget in reductions (0 = unlimited)")
	serveMode := flag.Bool("serve", false, "Start the evaluation service")
	serveAddr := flag.String("addr", "", "Service listen address (used with --serve)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: norn [options]\n\n")
		fmt.Fprintf(os.Stderr, "Evaluates noun expressions. Without options, starts a REPL.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  norn -e '[[1 2 3] [0 3]]'     # Evaluate, print [2 3]\n")
		fmt.Fprintf(os.Stderr, "  norn --encode '[50 60]'       # Print the hex wire form 02323c01\n")
		fmt.Fprintf(os.Stderr, "  echo 02323c01 | norn --decode # Back to [50 60]\n")
		fmt.Fprintf(os.Stderr, "  norn -i --seed 00             # REPL with reproducible entropy\n")
		fmt.Fprintf(os.Stderr, "  norn --serve --addr :4591     # Start the evaluation service\n")
	}
	flag.Parse()

	cfg := config.Default()
	if *configDir != "" {
		loaded, err := config.Load(*configDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags override the config file.
	if *seed != "" {
		cfg.Eval.Seed = *seed
	}
	if *budget != 0 {
		cfg.Eval.Budget = *budget
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *serveAddr != "" {
		cfg.Server.Addr = *serveAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	newInterp, cleanup, err := interpFactory(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	switch {
	case *encodeExpr != "":
		n, err := vm.Parse(*encodeExpr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hex.EncodeToString(vm.Encode(n)))

	case *decodeInput:
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		buf, err := hex.DecodeString(strings.TrimSpace(string(input)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		n, err := vm.Decode(buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(n)

	case *evalExpr != "":
		n, err := vm.Parse(*evalExpr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		result, err := newInterp().Eval(n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(result)

	case *serveMode:
		srv := server.New(newInterp)
		defer srv.Stop()
		if *verbose {
			fmt.Printf("Serving on %s\n", cfg.Server.Addr)
		}
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}

	default:
		// The REPL is also the default when no mode flag is given.
		if !*interactive && flag.NArg() > 0 {
			flag.Usage()
			os.Exit(2)
		}
		runREPL(newInterp(), *verbose)
	}
}

// interpFactory builds evaluators per the config: seeded entropy, budget,
// and optionally SQLite-backed memo tables. Sessions created by the server
// share one store but get distinct entropy streams.
func interpFactory(cfg *config.Config) (func() *vm.Interp, func(), error) {
	var opts []vm.Option
	cleanup := func() {}

	if path := cfg.StorePath(); path != "" {
		s, err := store.Open(path)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, vm.WithMemo(s))
		cleanup = func() { s.Close() }
	} else if cfg.Eval.MemoCapacity > 0 {
		memo, err := vm.NewBoundedMemo(cfg.Eval.MemoCapacity)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, vm.WithMemo(memo))
	}
	if cfg.Eval.Budget > 0 {
		opts = append(opts, vm.WithBudget(cfg.Eval.Budget))
	}

	seed := cfg.SeedBytes()
	factory := func() *vm.Interp {
		all := opts
		if seed != nil {
			all = append(append([]vm.Option{}, opts...), vm.WithEntropy(vm.SeededEntropy(seed)))
		}
		return vm.NewInterp(all...)
	}
	return factory, cleanup, nil
}
