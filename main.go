package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Expected 'serve' or 'process' subcommand")
		os.Exit(1)
	}
	_ = godotenv.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", "http", "Protocol to use (http or https)")
		port := serveCmd.String("p", "5000", "Port to use")
		serveCmd.Parse(os.Args[2:])
		serve(*protocol, *port)
	case "process":
		processCmd := flag.NewFlagSet("process", flag.ExitOnError)
		dir := processCmd.String("dir", "simulation_output", "Directory of uploaded payload JSON files")
		processCmd.Parse(os.Args[2:])
		runProcess(*dir)
	default:
		fmt.Println("Expected 'serve' or 'process' subcommand")
		os.Exit(1)
	}
}

// runProcess is the batch entry point: classify every payload file in a
// directory, the local analog of a storage-upload trigger.
func runProcess(dir string) {
	classifier, _ := buildClassifier()
	store := buildStore()
	defer store.Close()
	notifier := buildNotifier()

	processor := newEventProcessor(classifier, store, notifier)

	processed, failed, err := processor.processDirectory(dir)
	if err != nil {
		log.Fatalf("failed to process directory %s: %v", dir, err)
	}

	log.Printf("Processed %d payload file(s), %d failed", processed, failed)
}
