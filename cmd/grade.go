package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhisek/gradekit/internal/model"
	"github.com/abhisek/gradekit/internal/pipeline"
	"github.com/abhisek/gradekit/internal/recognition"
	"github.com/abhisek/gradekit/internal/ui/components"
	"github.com/abhisek/gradekit/internal/ui/theme"
)

var gradeCmd = &cobra.Command{
	Use:   "grade --exam <exam.json> <student>=<scan|rows.json>...",
	Short: "Grade one or more scanned submissions",
	Long: "Grade submissions for an exam. Each argument pairs a student id with either a scan\n" +
		"image (png, jpeg, webp) or a JSON file of already recognized rows.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		examPath, _ := cmd.Flags().GetString("exam")
		asJSON, _ := cmd.Flags().GetBool("json")

		exam, err := model.LoadExam(examPath)
		if err != nil {
			return err
		}

		jobs := make([]pipeline.Job, 0, len(args))
		for _, arg := range args {
			job, err := parseJob(exam.ID, arg)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}

		st, cfg, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer st.Close()

		p, err := buildPipeline(ctx, cfg, st)
		if err != nil {
			return err
		}

		results, err := p.GradeBatch(ctx, exam, jobs, cfg.Workers)
		if err != nil {
			return err
		}

		var failed int
		for i, r := range results {
			sub := jobs[i].Submission
			var steps []model.PipelineStep
			if r.Artifacts != nil {
				sub = r.Artifacts.Submission
				steps = r.Artifacts.Steps
			}
			if err := st.SubmissionRepo().Save(ctx, sub, steps); err != nil {
				return fmt.Errorf("save submission %s: %w", sub.ID, err)
			}
			if r.Err != nil {
				failed++
			}

			if asJSON {
				if err := printJSON(r); err != nil {
					return err
				}
				continue
			}
			printReport(exam, sub, r)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d submissions could not be graded", failed, len(jobs))
		}
		return nil
	},
}

func parseJob(examID, arg string) (pipeline.Job, error) {
	student, path, ok := strings.Cut(arg, "=")
	if !ok || student == "" || path == "" {
		return pipeline.Job{}, fmt.Errorf("invalid argument %q: want <student>=<file>", arg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("read %s: %w", path, err)
	}

	job := pipeline.Job{Submission: &model.Submission{
		ID:          uuid.NewString(),
		ExamID:      examID,
		StudentID:   student,
		SubmittedAt: time.Now().UTC(),
		Status:      model.SubmissionPending,
	}}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var rows []rowRecord
		if err := json.Unmarshal(data, &rows); err != nil {
			return pipeline.Job{}, fmt.Errorf("decode rows %s: %w", path, err)
		}
		for _, r := range rows {
			job.Rows = append(job.Rows, r.recognizedRow())
		}
		if len(job.Rows) == 0 {
			return pipeline.Job{}, fmt.Errorf("%s: no recognized rows", path)
		}
		return job, nil
	}

	job.Scan = recognition.NewScan(data)
	return job, nil
}

// rowRecord is one entry of a transcribed rows file. Rows without a
// confidence were typed in by hand and are trusted fully.
type rowRecord struct {
	QuestionNumber string   `json:"question_number"`
	RawText        string   `json:"raw_text"`
	Annotation     string   `json:"annotation,omitempty"`
	Confidence     *float64 `json:"confidence"`
}

func (r rowRecord) recognizedRow() model.RecognizedRow {
	conf := 1.0
	if r.Confidence != nil {
		conf = model.ClampConfidence(*r.Confidence)
	}
	return model.RecognizedRow{
		QuestionNumber: r.QuestionNumber,
		RawText:        r.RawText,
		Annotation:     r.Annotation,
		Confidence:     conf,
	}
}

type gradeOutput struct {
	Submission *model.Submission    `json:"submission"`
	Mistakes   []model.Mistake      `json:"mistakes,omitempty"`
	Steps      []model.PipelineStep `json:"steps"`
	Summary    string               `json:"summary,omitempty"`
	Stats      *pipeline.Stats      `json:"stats,omitempty"`
	Error      string               `json:"error,omitempty"`
}

func printJSON(r pipeline.BatchResult) error {
	var out gradeOutput
	if a := r.Artifacts; a != nil {
		out.Submission = a.Submission
		out.Mistakes = a.Mistakes
		out.Steps = a.Steps
		out.Summary = a.Summary
		if len(a.Responses) > 0 {
			stats := pipeline.Statistics(a.Responses)
			out.Stats = &stats
		}
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printReport(exam *model.Exam, sub *model.Submission, r pipeline.BatchResult) {
	fmt.Println(theme.Title.Render(fmt.Sprintf("%s · student %s · submission %s", exam.Title, sub.StudentID, sub.ID)))

	if r.Err != nil {
		msg := r.Err.Error()
		if errors.Is(r.Err, model.ErrRecognitionFailed) {
			msg = "no answers could be recognized on this scan"
		}
		fmt.Println(theme.Incorrect.Render("✗ " + msg))
	}

	if r.Artifacts != nil && len(r.Artifacts.Responses) > 0 {
		maxScores := examMaxScores(exam)
		var possible float64
		for _, resp := range r.Artifacts.Responses {
			if resp.AppliesToStudent {
				possible += maxScores[resp.QuestionID]
			}
		}
		fmt.Println(components.NewScoreBar("Total", sub.TotalScore, possible, 60).View())
		fmt.Println(theme.Muted.Render("Status: " + string(sub.Status)))
		fmt.Println()
		fmt.Println(components.ResponseTable(r.Artifacts.Responses, maxScores))
	}

	if r.Artifacts != nil {
		fmt.Println()
		fmt.Println(theme.Card.Render(components.StepList(r.Artifacts.Steps)))
		if r.Artifacts.Summary != "" {
			fmt.Println(theme.Hint.Render(r.Artifacts.Summary))
		}
	}
	fmt.Println()
}

func examMaxScores(exam *model.Exam) map[string]float64 {
	out := make(map[string]float64, len(exam.Questions))
	for _, q := range exam.Questions {
		out[q.ID] = q.MaxScore
	}
	return out
}

func init() {
	gradeCmd.Flags().StringP("exam", "e", "", "Path to the exam definition (JSON)")
	gradeCmd.Flags().Bool("json", false, "Print results as JSON")
	_ = gradeCmd.MarkFlagRequired("exam")
}
