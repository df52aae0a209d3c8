package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/copydesk/config"
	"github.com/mohammad-safakhou/copydesk/internal/agent"
	"github.com/mohammad-safakhou/copydesk/internal/llm"
	"github.com/mohammad-safakhou/copydesk/internal/pipeline"
)

func generateCMD() *cobra.Command {
	var cfgPath string
	var contentType string
	var topic string
	var audience string
	var tone string
	var outDir string

	var generate = &cobra.Command{
		Use:   "generate",
		Short: "Run the content pipeline once and save the result as markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			req := pipeline.ContentRequest{
				ContentType:    contentType,
				Topic:          topic,
				TargetAudience: audience,
				Tone:           tone,
			}
			return generateOnce(cmd.Context(), cfg, req, outDir)
		},
	}
	generate.Flags().StringVar(&contentType, "type", "blog", "content type: blog, social or email")
	generate.Flags().StringVar(&topic, "topic", "", "topic to create content about")
	generate.Flags().StringVar(&audience, "audience", "", "target audience")
	generate.Flags().StringVar(&tone, "tone", "", "desired tone, e.g. informative, casual")
	generate.Flags().StringVar(&outDir, "out", ".", "directory for the output file")
	generate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return generate
}

func generateOnce(ctx context.Context, cfg *config.Config, req pipeline.ContentRequest, outDir string) error {
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	tools, err := agent.NewToolSet(cfg.Tools)
	if err != nil {
		return err
	}
	agents, err := agent.NewAgents(cfg, provider, tools)
	if err != nil {
		return err
	}
	orch, err := pipeline.NewOrchestrator(agents, pipeline.NewTracker(), cfg.Pipeline)
	if err != nil {
		return err
	}

	run, err := orch.StartRun(req)
	if err != nil {
		return err
	}

	fmt.Println("\nThe content pipeline is now working on your request. This may take a few minutes...")
	for i, stage := range pipeline.StageOrder {
		fmt.Printf("[%d/%d] %s...\n", i+1, len(pipeline.StageOrder), stage)
		st, err := orch.Advance(ctx, run)
		if err != nil {
			return err
		}
		if st.State == pipeline.StateFailed || st.State == pipeline.StateCancelled {
			return fmt.Errorf("run %s at stage %s: %s (%s)", st.State, st.Stage, st.Error, st.Kind)
		}
	}
	if st := run.Status(); st.State != pipeline.StateCompleted {
		return fmt.Errorf("run ended in state %s", st.State)
	}

	final, ok := run.FinalArtifact()
	if !ok {
		return fmt.Errorf("run completed without a final artifact")
	}

	path, err := writeMarkdown(outDir, req, final)
	if err != nil {
		return err
	}
	fmt.Printf("\nContent creation complete! Your content has been saved to %s\n", path)
	return nil
}

// writeMarkdown saves the final artifact as <type>_<topic>_<timestamp>.md
// with a short header block describing the request.
func writeMarkdown(dir string, req pipeline.ContentRequest, a pipeline.Artifact) (string, error) {
	now := time.Now()
	slug := strings.ToLower(strings.ReplaceAll(req.Topic, " ", "_"))
	name := fmt.Sprintf("%s_%s_%s.md", req.ContentType, slug, now.Format("20060102_150405"))
	path := name
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		path = dir + string(os.PathSeparator) + name
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# %s Content: %s\n\n", capitalize(req.ContentType), req.Topic))
	b.WriteString(fmt.Sprintf("Target Audience: %s\n", req.TargetAudience))
	b.WriteString(fmt.Sprintf("Tone: %s\n", req.Tone))
	b.WriteString(fmt.Sprintf("Created: %s\n\n", now.Format("2006-01-02 15:04:05")))
	b.WriteString("---\n\n")
	b.WriteString(a.Text)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
