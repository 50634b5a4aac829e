// Command chat-client is a terminal client for the chat gateway. It prints
// the partial reply as soon as the gateway returns it, then polls in the
// background and rewrites the reply once the completed response lands.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/voiceloopai/chat-gateway/internal/observability"
	"github.com/voiceloopai/chat-gateway/internal/poller"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "gateway base URL")
	voiceType := flag.String("voice", "female", "voice type (female or male)")
	language := flag.String("language", "en-US", "BCP 47 language tag")
	system := flag.String("system", "", "system prompt override")
	interval := flag.Duration("poll-interval", 500*time.Millisecond, "completion poll interval")
	attempts := flag.Int("poll-attempts", 30, "poll attempts before giving up")
	flag.Parse()

	observability.InitLogger("warn", true)

	client := poller.NewClient(*serverURL, *interval, *attempts)

	var mu sync.Mutex
	client.OnDelivered = func(d poller.Delivery) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Printf("\rassistant> %s\n", d.Text)
		for _, u := range d.AudioURLs {
			fmt.Printf("           audio: %s%s\n", *serverURL, u)
		}
		fmt.Print("you> ")
	}
	client.OnAbandoned = func(streamID string) {
		// Silent give-up: the partial reply above stays as-is.
	}

	fmt.Printf("Connected to %s. Type a message, or 'quit' to exit.\n", *serverURL)
	fmt.Print("you> ")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("you> ")
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		reply, err := client.Submit(ctx, line, *system, *voiceType, *language)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			fmt.Print("you> ")
			continue
		}

		mu.Lock()
		fmt.Printf("assistant> %s ...\n", reply.Text)
		if reply.AudioURL != "" {
			fmt.Printf("           audio: %s%s\n", *serverURL, reply.AudioURL)
		}
		fmt.Print("you> ")
		mu.Unlock()
	}

	fmt.Println("\nBye.")
}
