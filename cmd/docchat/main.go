package main

import (
	"log"

	"github.com/futig/docchat/internal/builder"
)

func main() {
	app, err := builder.Build()
	if err != nil {
		log.Fatal("Failed to build docchat:", err)
	}

	if err := app.Run(); err != nil {
		log.Fatal("docchat stopped with error:", err)
	}
}
