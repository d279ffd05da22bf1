package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/gochat-tcp/internal/client"
)

func main() {
	ip := flag.String("a", "", "host IP address")
	port := flag.Int("p", 0, "port number")
	flag.Parse()

	addr := os.Getenv("GOCHAT_CLIENT")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		if *ip == "" || *port == 0 {
			fmt.Fprintln(os.Stderr, "set GOCHAT_CLIENT=host:port or pass -a and -p")
			os.Exit(2)
		}
		addr = net.JoinHostPort(*ip, strconv.Itoa(*port))
	}

	stdin := bufio.NewScanner(os.Stdin)
	fmt.Print("Enter your nickname: ")
	if !stdin.Scan() {
		os.Exit(1)
	}
	nick := strings.TrimSpace(stdin.Text())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Dial(ctx, addr, nick)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "An error occurred: %s\n", err)
		os.Exit(1)
	}
	defer c.Close()

	go func() {
		for {
			ev, err := c.Receive()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Connection closed: %s\n", err)
				os.Exit(1)
			}
			if ev.Kind == client.KindPrompt {
				continue
			}
			fmt.Println(ev.Format())
		}
	}()

	for stdin.Scan() {
		line := stdin.Text()
		if strings.EqualFold(strings.TrimSpace(line), "/exit") {
			fmt.Print("Type 'yes' to confirm exit: ")
			if stdin.Scan() && strings.EqualFold(strings.TrimSpace(stdin.Text()), "yes") {
				return
			}
			continue
		}
		if err := c.Send(line); err != nil {
			fmt.Fprintf(os.Stderr, "An error occurred: %s\n", err)
			return
		}
	}
}
