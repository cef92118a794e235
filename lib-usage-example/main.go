package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/radiantsdao/burnwatch/pkg/filter"
	"github.com/radiantsdao/burnwatch/pkg/instruction"
	"github.com/radiantsdao/burnwatch/pkg/ledger"
	"github.com/radiantsdao/burnwatch/pkg/report"

	"github.com/gagliardetto/solana-go"
)

func main() {
	// Usage: go run *.go -key "your_helius_key" -frame notification.json

	keyFlag := flag.String("key", "", "Helius API key")
	frameFlag := flag.String("frame", "", "File holding one transactionNotification frame")

	// Parse the command-line flags
	flag.Parse()

	if *keyFlag == "" {
		fmt.Println("API key is required. Please provide it using -key flag.")
		return
	}

	if *frameFlag == "" {
		fmt.Println("Frame is required. Please provide a file using -frame flag.")
		return
	}

	frame, err := os.ReadFile(*frameFlag)
	if err != nil {
		fmt.Println(err)
		return
	}

	program := solana.MustPublicKeyFromBase58("bidoyoucCtwvPJwmW4W9ysXWeesgvGxEYxkXmoXTaHy")
	state := ledger.NewRPCClient(ledger.Config{
		Endpoint: "https://mainnet.helius-rpc.com/?api-key=" + *keyFlag,
		Program:  program,
	})
	aggregator := report.NewAggregator(state, nil)

	// Every decoded instruction of the program, in order
	f := &filter.Filter{Program: program, Decoder: instruction.NewAnchorDecoder()}
	for d := range f.Instructions(frame) {
		r, err := aggregator.Aggregate(context.Background(), d.Instruction)
		if err != nil {
			fmt.Printf("%s: %v\n", d.Instruction.Name(), err)
			continue
		}
		if r == nil {
			fmt.Printf("%s: nothing to report\n", d.Instruction.Name())
			continue
		}
		r.Signature = d.Signature
		fmt.Println(r.String())
	}
}
