package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "submit":
		if len(args) >= 3 {
			switch args[2] {
			case "transfer":
				return runSubmitTransfer(args[3:])
			case "approvers":
				return runSubmitApprovers(args[3:])
			case "threshold":
				return runSubmitThreshold(args[3:])
			case "call":
				return runSubmitCall(args[3:])
			}
		}
	case "confirm":
		return runConfirm(args[2:])
	case "revoke":
		return runRevoke(args[2:])
	case "show":
		return runShow(args[2:])
	case "pending":
		return runPending(args[2:])
	case "config":
		return runConfig(args[2:])
	case "keygen":
		return runKeygen(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "tollctl"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s submit transfer --server <url> --key <file> --recipient <identity> --amount <units>\n", name)
	fmt.Fprintf(os.Stderr, "  %s submit approvers --server <url> --key <file> --approver <identity> [--approver <identity> ...] --threshold <n>\n", name)
	fmt.Fprintf(os.Stderr, "  %s submit threshold --server <url> --key <file> --threshold <n>\n", name)
	fmt.Fprintf(os.Stderr, "  %s submit call --server <url> --key <file> --target <addr> [--payload-base64 <b64>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s confirm --server <url> --key <file> --proposal <id>\n", name)
	fmt.Fprintf(os.Stderr, "  %s revoke --server <url> --key <file> --proposal <id>\n", name)
	fmt.Fprintf(os.Stderr, "  %s show --server <url> --admin-key <key> --proposal <id>\n", name)
	fmt.Fprintf(os.Stderr, "  %s pending --server <url> --admin-key <key>\n", name)
	fmt.Fprintf(os.Stderr, "  %s config --server <url> --admin-key <key>\n", name)
	fmt.Fprintf(os.Stderr, "  %s keygen --out <file>\n", name)
}
