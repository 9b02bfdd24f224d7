// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the course recommendation agent",
		Long:  "Send a message to a running orchestrator. Starts an interactive session if no message is provided.",
		RunE:  runChat,
	}

	cmd.Flags().String("address", "", "orchestrator address (defaults to networking.listen)")
	cmd.Flags().StringP("session", "s", "", "resume existing session by ID")

	return cmd
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
}

func runChat(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = viper.GetString("networking.listen")
	}
	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	client := newGatewayClient(addr)

	// One-shot mode: send the message and print the reply.
	if len(args) > 0 {
		var resp chatResponse
		if err := client.postJSON("/api/chat", chatRequest{
			SessionID: sessionID,
			Message:   strings.Join(args, " "),
		}, &resp); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), resp.Reply)
		return err
	}

	m := newChatModel(client, sessionID)
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return err
	}
	if cm, ok := final.(chatModel); ok && cm.errFinal != nil {
		return cm.errFinal
	}
	return nil
}

// --- bubbletea messages ---

type chatReplyMsg struct{ reply string }
type chatErrMsg struct{ err error }
type sessionResetMsg struct{}

// --- lipgloss styles ---

var (
	chatTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	youStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	agentStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	chatDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	chatErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	transcriptStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// chatModel is the bubbletea model for the interactive chat session.
type chatModel struct {
	client    *gatewayClient
	sessionID string

	input      textinput.Model
	spinner    spinner.Model
	transcript []string
	waiting    bool
	errLine    string
	errFinal   error
}

func newChatModel(client *gatewayClient, sessionID string) chatModel {
	input := textinput.New()
	input.Placeholder = "어떤 강의를 찾으세요? (/reset, /quit)"
	input.Focus()
	input.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return chatModel{
		client:    client,
		sessionID: sessionID,
		input:     input,
		spinner:   sp,
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			return m.handleSubmit()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case chatReplyMsg:
		m.waiting = false
		m.transcript = append(m.transcript, agentStyle.Render("Agent: ")+msg.reply)
		return m, nil

	case chatErrMsg:
		m.waiting = false
		m.errLine = msg.err.Error()
		return m, nil

	case sessionResetMsg:
		m.waiting = false
		m.transcript = append(m.transcript, chatDimStyle.Render("(session reset)"))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.errLine = ""

	switch text {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/reset":
		m.waiting = true
		return m, tea.Batch(m.spinner.Tick, m.resetCmd())
	}

	m.transcript = append(m.transcript, youStyle.Render("You:   ")+text)
	m.waiting = true
	return m, tea.Batch(m.spinner.Tick, m.sendCmd(text))
}

func (m chatModel) sendCmd(text string) tea.Cmd {
	client, sessionID := m.client, m.sessionID
	return func() tea.Msg {
		var resp chatResponse
		if err := client.postJSON("/api/chat", chatRequest{
			SessionID: sessionID,
			Message:   text,
		}, &resp); err != nil {
			return chatErrMsg{err: err}
		}
		return chatReplyMsg{reply: resp.Reply}
	}
}

func (m chatModel) resetCmd() tea.Cmd {
	client, sessionID := m.client, m.sessionID
	return func() tea.Msg {
		if err := client.postJSON("/api/session/reset", map[string]string{
			"sessionId": sessionID,
		}, nil); err != nil {
			return chatErrMsg{err: err}
		}
		return sessionResetMsg{}
	}
}

func (m chatModel) View() string {
	var b strings.Builder

	b.WriteString(chatTitleStyle.Render("CourseChat"))
	b.WriteString(chatDimStyle.Render("  session " + m.sessionID))
	b.WriteString("\n\n")

	if len(m.transcript) > 0 {
		b.WriteString(transcriptStyle.Render(strings.Join(m.transcript, "\n")))
		b.WriteString("\n\n")
	}

	if m.errLine != "" {
		b.WriteString(chatErrorStyle.Render("error: " + m.errLine))
		b.WriteString("\n\n")
	}

	if m.waiting {
		b.WriteString(m.spinner.View())
		b.WriteString(chatDimStyle.Render(" thinking..."))
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	b.WriteString(chatDimStyle.Render("enter to send · /reset to clear · esc to quit"))
	b.WriteString("\n")

	return b.String()
}
