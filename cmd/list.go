package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"cursor-harvest/internal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	projectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recovered projects and chats",
	Long:  `List projects and chats from the persisted snapshot, scanning first if none exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := loadOrScan()
		if err != nil {
			return err
		}
		displayChats(result)
		return nil
	},
}

// loadOrScan returns the persisted snapshot, running a fresh scan when
// none exists yet.
func loadOrScan() (*internal.Result, error) {
	storeDir, err := internal.DefaultStoreDir()
	if err != nil {
		return nil, err
	}
	store := internal.NewFileStore(storeDir)

	var result internal.Result
	if err := store.GetData(internal.SnapshotKey, &result); err == nil {
		internal.LogInfo("Loaded snapshot with %d chat(s)", len(result.Chats))
		return &result, nil
	} else if !os.IsNotExist(err) {
		internal.LogWarn("Failed to load snapshot, rescanning: %v", err)
	}

	reader := internal.NewStoreReader()
	defer reader.CloseAll()
	pipeline := internal.NewPipeline(reader, internal.NewWorkspaceLocator(storagePath))
	fresh, err := pipeline.Run(context.Background())
	if err != nil {
		return nil, err
	}
	if err := store.SaveData(internal.SnapshotKey, fresh); err != nil {
		internal.LogWarn("Failed to persist snapshot: %v", err)
	}
	return fresh, nil
}

func displayChats(result *internal.Result) {
	if len(result.Chats) == 0 {
		fmt.Println(headerStyle.Render("No chats found"))
		return
	}

	header := headerStyle.Render(fmt.Sprintf("Found %d chat(s) in %d project(s)", len(result.Chats), len(result.Projects)))
	fmt.Println(header)
	fmt.Println()

	projectNames := make(map[string]string, len(result.Projects))
	for _, project := range result.Projects {
		projectNames[project.ID] = project.Name
	}

	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)

	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Dialogues")+"\t"+titleStyle.Render("Created")+"\t"+titleStyle.Render("Project")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 110))

	for _, chat := range result.Chats {
		title := chat.Title
		if title == "" {
			title = "Untitled"
		}
		if len(title) > 50 {
			title = title[:47] + "..."
		}

		project := projectNames[chat.ProjectID]
		if project == "" {
			project = chat.ProjectID
		}
		if len(project) > 25 {
			project = project[:22] + "..."
		}

		shortID := chat.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			idStyle.Render(shortID),
			lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Render(title),
			countStyle.Render(strconv.Itoa(len(chat.Dialogues))),
			dateStyle.Render(formatChatTime(chat.Timestamp)),
			projectStyle.Render(project))
	}

	_ = w.Flush()
	fmt.Println()
	fmt.Println(idStyle.Render("Tip: use the full chat ID with `cursor-harvest show <id>`"))
}

// formatChatTime renders recent timestamps compactly.
func formatChatTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	diff := time.Since(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}
