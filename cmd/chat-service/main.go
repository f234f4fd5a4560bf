package main

import (
	"fmt"
	"os"

	"github.com/masarif/masarif-backend/chatservice"
)

func main() {
	if err := chatservice.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
