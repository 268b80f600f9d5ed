package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drai-ai/drai/internal/chat"
	"github.com/drai-ai/drai/internal/store"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage saved consultations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionsList()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a consultation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionsShow(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a consultation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionsDelete(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Search consultations by title or content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionsSearch(strings.Join(args, " "))
		},
	})

	return cmd
}

func sessionsList() error {
	st, err := openStore(initConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.Sessions()
	if err != nil {
		return err
	}
	activeID, _ := st.ActiveSessionID()
	printSessionInfos(infos, activeID)
	return nil
}

func sessionsShow(prefix string) error {
	st, err := openStore(initConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := matchSession(st, prefix)
	if err != nil {
		return err
	}
	sess, err := st.Load(id)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n\n", sess.Title, sess.CreatedAt.Format("2006-01-02 15:04"))
	for _, msg := range sess.Messages {
		label := "Dr. AI"
		if msg.Role == chat.RoleUser {
			label = "You"
		}
		fmt.Printf("%s: %s\n", label, msg.Text)
		if msg.GeneratedImage != "" {
			fmt.Printf("  %s\n", msg.GeneratedImage)
		}
		fmt.Println()
	}
	return nil
}

func sessionsDelete(prefix string) error {
	st, err := openStore(initConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := matchSession(st, prefix)
	if err != nil {
		return err
	}
	if err := st.DeleteSession(id); err != nil {
		return err
	}
	fmt.Println("deleted", id)
	return nil
}

func sessionsSearch(query string) error {
	st, err := openStore(initConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.Search(query)
	if err != nil {
		return err
	}
	activeID, _ := st.ActiveSessionID()
	printSessionInfos(infos, activeID)
	return nil
}

func matchSession(st *store.Store, prefix string) (string, error) {
	infos, err := st.Sessions()
	if err != nil {
		return "", err
	}
	for _, info := range infos {
		if strings.HasPrefix(info.ID, prefix) {
			return info.ID, nil
		}
	}
	return "", fmt.Errorf("no session matching %q", prefix)
}

func printSessionInfos(infos []store.SessionInfo, activeID string) {
	if len(infos) == 0 {
		fmt.Println("no sessions")
		return
	}
	for _, info := range infos {
		marker := " "
		if info.ID == activeID {
			marker = "*"
		}
		id := info.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Printf("%s %s  %-30s  %s  (%d messages)\n",
			marker, id, info.Title, info.UpdatedAt.Format("2006-01-02 15:04"), info.MessageCount)
	}
}
