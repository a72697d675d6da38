package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/gradekit/internal/model"
	"github.com/abhisek/gradekit/internal/pipeline"
	"github.com/abhisek/gradekit/internal/ui/components"
	"github.com/abhisek/gradekit/internal/ui/theme"
)

var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "Inspect graded submissions",
}

var submissionsListCmd = &cobra.Command{
	Use:   "list <exam-id>",
	Short: "List submissions for an exam",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer st.Close()

		subs, err := st.SubmissionRepo().ListByExam(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("list submissions: %w", err)
		}
		if len(subs) == 0 {
			fmt.Println("No submissions found.")
			return nil
		}

		fmt.Printf("%-36s  %-12s  %-19s  %7s  %s\n", "ID", "Student", "Submitted", "Score", "Status")
		fmt.Println(strings.Repeat("─", 96))
		for _, s := range subs {
			fmt.Printf("%-36s  %-12s  %-19s  %7g  %s\n",
				s.ID,
				truncate(s.StudentID, 12),
				s.SubmittedAt.Local().Format("2006-01-02 15:04:05"),
				s.TotalScore,
				s.Status,
			)
		}
		return nil
	},
}

var submissionsShowCmd = &cobra.Command{
	Use:   "show <submission-id>",
	Short: "Show responses, statistics and the grading audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		examPath, _ := cmd.Flags().GetString("exam")

		st, _, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer st.Close()

		ctx := cmd.Context()
		sub, err := st.SubmissionRepo().Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get submission: %w", err)
		}
		if sub == nil {
			return fmt.Errorf("submission %s not found", args[0])
		}

		maxScores := map[string]float64{}
		if examPath != "" {
			exam, err := model.LoadExam(examPath)
			if err != nil {
				return err
			}
			maxScores = examMaxScores(exam)
		}

		fmt.Println(theme.Title.Render(fmt.Sprintf("Submission %s · student %s · %s", sub.ID, sub.StudentID, sub.Status)))
		fmt.Println(components.ResponseTable(sub.Responses, maxScores))

		stats := pipeline.Statistics(sub.Responses)
		fmt.Printf("\nTotal %g · average %.2f · median %.2f · max %g over %d scored\n",
			sub.TotalScore, stats.Average, stats.Median, stats.Max, stats.Count)

		stored, err := st.SubmissionRepo().Steps(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("get steps: %w", err)
		}
		steps := make([]model.PipelineStep, len(stored))
		for i, s := range stored {
			steps[i] = s.PipelineStep
		}
		fmt.Println()
		fmt.Println(theme.Card.Render(components.StepList(steps)))
		return nil
	},
}

func init() {
	submissionsShowCmd.Flags().StringP("exam", "e", "", "Exam definition, to show max scores")

	submissionsCmd.AddCommand(submissionsListCmd)
	submissionsCmd.AddCommand(submissionsShowCmd)
}
