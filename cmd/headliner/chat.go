package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/headliner/config"
	"github.com/mohammad-safakhou/headliner/internal/chatui"
)

func chatCMD() *cobra.Command {
	var server, session string
	var timeout time.Duration
	var chat = &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if session == "" {
				session = config.DefaultSessionID
			}
			m := chatui.NewModel(chatui.NewClient(server, session), timeout)
			_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	chat.Flags().StringVar(&server, "server", "http://localhost"+config.DefaultServerAddress, "headliner server URL")
	chat.Flags().StringVar(&session, "session", "", "conversation id (default is the shared session)")
	chat.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for a reply")
	return chat
}
