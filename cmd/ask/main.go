// Command ask is an interactive terminal client for a running assistant.
//
// Usage:
//
//	go run ./cmd/ask [-url http://localhost:8000] [-image screenshot.png]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/ask"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "base URL of the assistant service")
	imagePath := flag.String("image", "", "optional image attached to every question")
	timeout := flag.Duration("timeout", 90*time.Second, "per-question timeout")
	flag.Parse()

	var image string
	if *imagePath != "" {
		enc, err := ask.EncodeImage(*imagePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading image: %v\n", err)
			os.Exit(1)
		}
		image = enc
	}

	model := ask.NewModel(ask.NewClient(*baseURL, *timeout), image)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}
