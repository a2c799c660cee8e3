package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/norn/vm"
)

// runREPL reads noun expressions from stdin and evaluates them against the
// running evaluator, so memo entries persist between lines.
func runREPL(interp *vm.Interp, verbose bool) {
	fmt.Println("Norn REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for {
		fmt.Print(">> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if strings.HasPrefix(line, ":") {
			handleREPLCommand(interp, line)
			continue
		}

		evalAndPrint(interp, line, verbose)
	}
}

func evalAndPrint(interp *vm.Interp, input string, verbose bool) {
	expr, err := vm.Parse(input)
	if err != nil {
		fmt.Printf("Parse error: %v\n", err)
		return
	}
	if expr.IsAtom() {
		fmt.Println("An expression must be a [subject formula] cell")
		return
	}

	result, err := interp.Eval(expr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(result)
	if verbose {
		fmt.Printf("  wire: %s\n", hex.EncodeToString(vm.Encode(result)))
	}
}

func handleREPLCommand(interp *vm.Interp, line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case ":help":
		fmt.Println("Commands:")
		fmt.Println("  :help          Show this help")
		fmt.Println("  :hash EXPR     Content hash of a noun (no evaluation)")
		fmt.Println("  :encode EXPR   Wire form of a noun as hex (no evaluation)")
		fmt.Println("  :decode HEX    Noun for a hex wire form")
		fmt.Println("  :lengths EXPR  Byte lengths of a noun's atoms, shaped like it")
		fmt.Println("  exit           Quit")

	case ":hash":
		n, err := vm.Parse(arg)
		if err != nil {
			fmt.Printf("Parse error: %v\n", err)
			return
		}
		h := n.ContentHash()
		fmt.Printf("x%s\n", hex.EncodeToString(h[:]))

	case ":encode":
		n, err := vm.Parse(arg)
		if err != nil {
			fmt.Printf("Parse error: %v\n", err)
			return
		}
		fmt.Println(hex.EncodeToString(vm.Encode(n)))

	case ":decode":
		buf, err := hex.DecodeString(arg)
		if err != nil {
			fmt.Printf("Bad hex: %v\n", err)
			return
		}
		n, err := vm.Decode(buf)
		if err != nil {
			fmt.Printf("Decode error: %v\n", err)
			return
		}
		fmt.Println(n)

	case ":lengths":
		n, err := vm.Parse(arg)
		if err != nil {
			fmt.Printf("Parse error: %v\n", err)
			return
		}
		fmt.Println(vm.Lengths(n))

	default:
		fmt.Printf("Unknown command %s (try :help)\n", cmd)
	}
}
