package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/gradekit/internal/ui/theme"
)

var mistakesCmd = &cobra.Command{
	Use:   "mistakes <student-id>",
	Short: "List a student's mistake ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		st, _, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer st.Close()

		mistakes, err := st.MistakeRepo().ListByStudent(cmd.Context(), args[0], all)
		if err != nil {
			return fmt.Errorf("list mistakes: %w", err)
		}
		if len(mistakes) == 0 {
			fmt.Println("No mistakes recorded.")
			return nil
		}

		fmt.Printf("%-14s  %6s  %-19s  %-14s  %-24s  %s\n",
			"Question", "Errors", "Last seen", "Root cause", "Tags", "Notes")
		fmt.Println(strings.Repeat("─", 100))
		for _, m := range mistakes {
			cause := "-"
			if m.RootCause != nil {
				cause = *m.RootCause
			}
			notes := m.ResolutionNotes
			if m.Resolved() {
				notes = theme.Correct.Render(notes)
			}
			fmt.Printf("%-14s  %6d  %-19s  %-14s  %-24s  %s\n",
				truncate(m.QuestionID, 14),
				m.ErrorCount,
				m.LastSeenAt.Local().Format("2006-01-02 15:04:05"),
				cause,
				truncate(strings.Join(m.KnowledgeTags, ","), 24),
				notes,
			)
		}
		return nil
	},
}

func init() {
	mistakesCmd.Flags().BoolP("all", "a", false, "Include mistakes already mastered")
}
