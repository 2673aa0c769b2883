package main

import (
	"fmt"
	"os"

	"github.com/sahilchouksey/course-commerce-api/app"
)

func main() {
	if err := app.SetupAndRunServer(); err != nil {
		fmt.Fprintln(os.Stderr, "server exited:", err)
		os.Exit(1)
	}
}
