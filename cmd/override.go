package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/gradekit/internal/model"
	"github.com/abhisek/gradekit/internal/pipeline"
)

var overrideCmd = &cobra.Command{
	Use:   "override <submission-id> <question-number> <score>",
	Short: "Record a teacher's score for one response",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		examPath, _ := cmd.Flags().GetString("exam")
		comment, _ := cmd.Flags().GetString("comment")

		var score float64
		if _, err := fmt.Sscanf(args[2], "%g", &score); err != nil {
			return fmt.Errorf("invalid score %q: %w", args[2], err)
		}

		exam, err := model.LoadExam(examPath)
		if err != nil {
			return err
		}

		st, cfg, err := openStore(cmd)
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

		var responseID string
		for _, r := range sub.Responses {
			if r.QuestionNumber == args[1] {
				responseID = r.ID
				break
			}
		}
		if responseID == "" {
			return fmt.Errorf("submission %s has no response for question %s", sub.ID, args[1])
		}

		p, err := buildPipeline(ctx, cfg, st)
		if err != nil {
			return err
		}
		if _, err := p.ApplyOverride(ctx, exam, sub, pipeline.Override{
			ResponseID: responseID,
			Score:      score,
			Comment:    comment,
		}); err != nil {
			return err
		}

		step := model.PipelineStep{
			Name:   "manual-override",
			Status: model.StepSuccess,
			Detail: fmt.Sprintf("question %s set to %g", args[1], score),
		}
		if err := st.SubmissionRepo().Save(ctx, sub, []model.PipelineStep{step}); err != nil {
			return fmt.Errorf("save submission: %w", err)
		}

		fmt.Printf("Question %s scored %g. Total %g, status %s.\n", args[1], score, sub.TotalScore, sub.Status)
		return nil
	},
}

func init() {
	overrideCmd.Flags().StringP("exam", "e", "", "Path to the exam definition (JSON)")
	overrideCmd.Flags().StringP("comment", "c", "", "Comment to store on the response")
	_ = overrideCmd.MarkFlagRequired("exam")
}
