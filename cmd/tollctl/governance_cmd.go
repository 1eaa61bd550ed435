package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"tollgate/internal/domain"
)

type stringList []string

func (l *stringList) String() string { return fmt.Sprint([]string(*l)) }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func runSubmitTransfer(args []string) int {
	fs := flag.NewFlagSet("submit transfer", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var server, keyPath, recipient string
	var amount uint64
	fs.StringVar(&server, "server", envServer(), "tollgate server base url")
	fs.StringVar(&keyPath, "key", "", "approver key file (base64 ed25519 seed)")
	fs.StringVar(&recipient, "recipient", "", "transfer recipient identity")
	fs.Uint64Var(&amount, "amount", 0, "transfer amount in minor units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if recipient == "" || amount == 0 {
		fmt.Fprintln(os.Stderr, "submit transfer requires --recipient and a nonzero --amount")
		return 1
	}
	return submitAction(server, keyPath, domain.Action{
		Kind:      domain.ActionTransferFunds,
		Recipient: recipient,
		Amount:    amount,
	})
}

func runSubmitApprovers(args []string) int {
	fs := flag.NewFlagSet("submit approvers", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var server, keyPath string
	var threshold uint
	var approvers stringList
	fs.StringVar(&server, "server", envServer(), "tollgate server base url")
	fs.StringVar(&keyPath, "key", "", "approver key file (base64 ed25519 seed)")
	fs.UintVar(&threshold, "threshold", 0, "threshold for the new approver set")
	fs.Var(&approvers, "approver", "approver identity (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if len(approvers) == 0 || threshold == 0 {
		fmt.Fprintln(os.Stderr, "submit approvers requires at least one --approver and a --threshold")
		return 1
	}
	identities := make([]domain.Identity, 0, len(approvers))
	for _, a := range approvers {
		identities = append(identities, domain.Identity(a))
	}
	return submitAction(server, keyPath, domain.Action{
		Kind:      domain.ActionChangeApprovers,
		Approvers: identities,
		Threshold: threshold,
	})
}

func runSubmitThreshold(args []string) int {
	fs := flag.NewFlagSet("submit threshold", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var server, keyPath string
	var threshold uint
	fs.StringVar(&server, "server", envServer(), "tollgate server base url")
	fs.StringVar(&keyPath, "key", "", "approver key file (base64 ed25519 seed)")
	fs.UintVar(&threshold, "threshold", 0, "new confirmation threshold")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if threshold == 0 {
		fmt.Fprintln(os.Stderr, "submit threshold requires a nonzero --threshold")
		return 1
	}
	return submitAction(server, keyPath, domain.Action{
		Kind:      domain.ActionChangeThreshold,
		Threshold: threshold,
	})
}

func runSubmitCall(args []string) int {
	fs := flag.NewFlagSet("submit call", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var server, keyPath, target, payloadB64 string
	fs.StringVar(&server, "server", envServer(), "tollgate server base url")
	fs.StringVar(&keyPath, "key", "", "approver key file (base64 ed25519 seed)")
	fs.StringVar(&target, "target", "", "call target address")
	fs.StringVar(&payloadB64, "payload-base64", "", "call payload, base64")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if target == "" {
		fmt.Fprintln(os.Stderr, "submit call requires --target")
		return 1
	}
	var payload []byte
	if payloadB64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(payloadB64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode payload: %v\n", err)
			return 1
		}
		payload = decoded
	}
	return submitAction(server, keyPath, domain.Action{
		Kind:    domain.ActionGenericCall,
		Target:  target,
		Payload: payload,
	})
}

func submitAction(server, keyPath string, action domain.Action) int {
	s, err := loadSigner(keyPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	body, err := json.Marshal(action)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode action: %v\n", err)
		return 1
	}
	out, status, err := signedPost(server, s, "/v1/governance/proposals", body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit: %v\n", err)
		return 1
	}
	return printResult(out, status)
}

func runConfirm(args []string) int {
	return proposalAction("confirm", args)
}

func runRevoke(args []string) int {
	return proposalAction("revoke", args)
}

func proposalAction(verb string, args []string) int {
	fs := flag.NewFlagSet(verb, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var server, keyPath string
	var proposal uint64
	fs.StringVar(&server, "server", envServer(), "tollgate server base url")
	fs.StringVar(&keyPath, "key", "", "approver key file (base64 ed25519 seed)")
	fs.Uint64Var(&proposal, "proposal", 0, "proposal id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if proposal == 0 {
		fmt.Fprintf(os.Stderr, "%s requires --proposal\n", verb)
		return 1
	}
	s, err := loadSigner(keyPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	path := fmt.Sprintf("/v1/governance/proposals/%d/%s", proposal, verb)
	out, status, err := signedPost(server, s, path, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", verb, err)
		return 1
	}
	return printResult(out, status)
}

func runShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var server, adminKey string
	var proposal uint64
	fs.StringVar(&server, "server", envServer(), "tollgate server base url")
	fs.StringVar(&adminKey, "admin-key", os.Getenv("TOLLGATE_ADMIN_KEY"), "admin api key")
	fs.Uint64Var(&proposal, "proposal", 0, "proposal id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if proposal == 0 {
		fmt.Fprintln(os.Stderr, "show requires --proposal")
		return 1
	}
	out, status, err := adminGet(server, adminKey, fmt.Sprintf("/v1/governance/proposals/%d", proposal))
	if err != nil {
		fmt.Fprintf(os.Stderr, "show: %v\n", err)
		return 1
	}
	return printResult(out, status)
}

func runPending(args []string) int {
	return adminList("pending", "/v1/governance/proposals", args)
}

func runConfig(args []string) int {
	return adminList("config", "/v1/governance/config", args)
}

func adminList(verb, path string, args []string) int {
	fs := flag.NewFlagSet(verb, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var server, adminKey string
	fs.StringVar(&server, "server", envServer(), "tollgate server base url")
	fs.StringVar(&adminKey, "admin-key", os.Getenv("TOLLGATE_ADMIN_KEY"), "admin api key")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	out, status, err := adminGet(server, adminKey, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", verb, err)
		return 1
	}
	return printResult(out, status)
}

// runKeygen writes a fresh base64 ed25519 seed and prints the matching
// public identity for GOV_APPROVERS.
func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var outPath string
	fs.StringVar(&outPath, "out", "", "output key file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if outPath == "" {
		fmt.Fprintln(os.Stderr, "keygen requires --out")
		return 1
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
		return 1
	}
	seed := base64.StdEncoding.EncodeToString(priv.Seed())
	if err := os.WriteFile(outPath, []byte(seed+"\n"), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "write key file: %v\n", err)
		return 1
	}
	fmt.Printf("identity: %s\n", base64.StdEncoding.EncodeToString(pub))
	return 0
}

func envServer() string {
	if v := os.Getenv("TOLLGATE_URL"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
