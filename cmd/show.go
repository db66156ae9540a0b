package cmd

import (
	"fmt"
	"strings"

	"cursor-harvest/internal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))
)

var showCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Print one chat's dialogues",
	Long:  `Print the full dialogue transcript of a recovered chat. Accepts a full chat ID or a unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := loadOrScan()
		if err != nil {
			return err
		}

		chat := findChat(result.Chats, args[0])
		if chat == nil {
			return fmt.Errorf("no chat matches %q", args[0])
		}

		fmt.Println(headerStyle.Render(chat.Title))
		fmt.Println(idStyle.Render(fmt.Sprintf("%s · %d dialogue(s) · %s",
			chat.ID, len(chat.Dialogues), formatChatTime(chat.Timestamp))))
		fmt.Println()

		for _, dialogue := range chat.Dialogues {
			label := assistantStyle.Render("assistant")
			if dialogue.IsUser {
				label = userStyle.Render("user")
			}
			fmt.Printf("%s %s\n", label, dateStyle.Render(dialogue.Timestamp.Format("2006-01-02 15:04:05")))
			fmt.Println(dialogue.Content)
			fmt.Println()
		}
		return nil
	},
}

// findChat matches a chat by exact ID first, then by unique prefix.
func findChat(chats []*internal.Chat, query string) *internal.Chat {
	for _, chat := range chats {
		if chat.ID == query {
			return chat
		}
	}
	var match *internal.Chat
	for _, chat := range chats {
		if strings.HasPrefix(chat.ID, query) {
			if match != nil {
				return nil // ambiguous prefix
			}
			match = chat
		}
	}
	return match
}

func init() {
	rootCmd.AddCommand(showCmd)
}
