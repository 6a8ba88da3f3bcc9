package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/worksession/internal/app/worksession"
	"github.com/PabloGalante/worksession/internal/domain"
	"github.com/PabloGalante/worksession/internal/observability"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <script.yaml>",
	Short: "Run a scripted work session against the configured store and complete it",
	Long: `Simulate plays the candidate side of a work session from a YAML script:
each step answers the current prompt and may attach a code snapshot. The
session is completed at the end and the share id is printed on stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

type simulationScript struct {
	GitHubURL   string           `yaml:"github_url"`
	RoleTrack   string           `yaml:"role_track"`
	Level       string           `yaml:"level"`
	Duration    int              `yaml:"duration"`
	CandidateID string           `yaml:"candidate_id"`
	Steps       []simulationStep `yaml:"steps"`
}

type simulationStep struct {
	Response string `yaml:"response"`
	Code     string `yaml:"code"`
	Language string `yaml:"language"`
}

func readSimulationScript(path string) (*simulationScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var script simulationScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	return &script, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	observability.SetOutput(os.Stderr)

	script, err := readSimulationScript(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	created, err := svc.sessions.CreateSession(ctx, worksession.CreateSessionInput{
		GitHubURL:       script.GitHubURL,
		RoleTrack:       script.RoleTrack,
		Level:           script.Level,
		DurationMinutes: script.Duration,
		CandidateID:     script.CandidateID,
	})
	if err != nil {
		return err
	}
	id := created.Session.ID
	stage := domain.FirstStage

	// Opening prompt of the first stage.
	opening, err := svc.sessions.NextPrompt(ctx, worksession.NextPromptInput{
		SessionID:    id,
		CurrentStage: string(stage),
	})
	if err != nil {
		return err
	}
	prompt := opening.NextPrompt

	for i, step := range script.Steps {
		if _, err := svc.sessions.RecordEvent(ctx, id, domain.PromptContent{Text: prompt, Stage: stage}); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.Code != "" {
			snapshot := domain.CodeSnapshotContent{Code: step.Code, Language: step.Language, Stage: stage}
			if _, err := svc.sessions.RecordEvent(ctx, id, snapshot); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		if _, err := svc.sessions.RecordEvent(ctx, id, domain.ResponseContent{Text: step.Response, Stage: stage}); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}

		next, err := svc.sessions.NextPrompt(ctx, worksession.NextPromptInput{
			SessionID:         id,
			CurrentStage:      string(stage),
			CandidateResponse: step.Response,
		})
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "step %d: %s complete=%t tags=%v\n", i+1, stage, next.StageComplete, next.SignalTags)

		prompt = next.NextPrompt
		stage = next.CurrentStage
	}

	done, err := svc.evidence.Complete(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "session %s completed\n", id)
	fmt.Fprintln(cmd.OutOrStdout(), done.ShareID)
	return nil
}
