package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/deivygoficial/supermercado-app/internal/consumer"
)

// admin-console is a terminal dashboard over the live order notification
// stream: connection state, unread badge, transient alert and the inbox.

type tickMsg time.Time

type model struct {
	consumer *consumer.Consumer
	cancel   context.CancelFunc
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		case "m":
			m.consumer.MarkAllRead()
		case "c":
			m.consumer.Clear()
		}
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "supermercado admin console")
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Stream: %s\n", m.consumer.State())
	fmt.Fprintf(b, "Unread: %d\n", m.consumer.Unread())

	if alert := m.consumer.ActiveAlert(); alert != nil {
		fmt.Fprintf(b, "\n  ** NEW ORDER ** %s\n", alert.Message)
	}

	notifications := m.consumer.Notifications()
	fmt.Fprintln(b, "")
	if len(notifications) == 0 {
		fmt.Fprintln(b, "No notifications yet.")
	} else {
		for i, n := range notifications {
			if i >= 15 {
				fmt.Fprintf(b, " ... and %d more\n", len(notifications)-i)
				break
			}
			marker := "*"
			if n.Read {
				marker = " "
			}
			fmt.Fprintf(b, " %s [%s] %s\n", marker, n.Timestamp.Format("15:04:05"), n.Message)
		}
	}

	fmt.Fprintln(b, "\nControls: m mark all read, c clear, q quit")
	return b.String()
}

func main() {
	baseURL := flag.String("url", getenv("ORDERS_BASE_URL", "http://localhost:8080"), "orders API base URL")
	adminID := flag.String("admin", getenv("ADMIN_ID", "admin"), "administrator id")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	c := consumer.New(*baseURL, *adminID)
	go c.Run(ctx)

	p := tea.NewProgram(model{consumer: c, cancel: cancel})
	if _, err := p.Run(); err != nil {
		cancel()
		fmt.Println("error:", err)
		os.Exit(1)
	}
	cancel()
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
