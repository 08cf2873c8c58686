package main

import (
	"context"
	"io"
	"log"

	"github.com/pilab-dev/shadow-crest/cmd/crestctl/cmd"
	"github.com/pilab-dev/shadow-crest/tracing"
)

func main() {
	tp, err := tracing.InitTracerProvider("shadow-crest-crestctl", io.Discard)
	if err != nil {
		log.Fatalf("Failed to initialize TracerProvider: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down TracerProvider: %v", err)
		}
	}()

	cmd.Execute()
}
