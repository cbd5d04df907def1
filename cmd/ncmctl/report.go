package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
	"github.com/Lllllllleong/ncmcompliance/internal/llm"
	"github.com/Lllllllleong/ncmcompliance/internal/mail"
	"github.com/Lllllllleong/ncmcompliance/internal/pdfreport"
	"github.com/Lllllllleong/ncmcompliance/internal/services"
	"github.com/Lllllllleong/ncmcompliance/internal/tables"
)

var (
	reportAnalysis string
	reportOut      string
	reportHTML     string
	reportAsk      bool
)

type reportSummary struct {
	File     string           `json:"file" yaml:"file"`
	PDF      string           `json:"pdf" yaml:"pdf"`
	Pages    int              `json:"pages" yaml:"pages"`
	Metrics  analysis.Metrics `json:"metrics" yaml:"metrics"`
	Message  string           `json:"message" yaml:"message"`
	Findings *tables.Table    `json:"findings,omitempty" yaml:"findings,omitempty"`
	Problems []string         `json:"problems,omitempty" yaml:"problems,omitempty"`
}

var reportCmd = &cobra.Command{
	Use:   "report <zip>",
	Short: "Render the compliance PDF for a local invoice export",
	Long: `Render the compliance PDF for a local invoice export.

The analysis text comes from --analysis, or from the configured LLM when --ask
is set. Without either the report is built from validator results only.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportAnalysis != "" && reportAsk {
			return errors.New("--analysis and --ask are mutually exclusive")
		}
		ctx := cmd.Context()

		ref, err := loadReference()
		if err != nil {
			return err
		}
		ds, err := openZip(args[0])
		if err != nil {
			return err
		}
		summary, err := analysis.Summarize(ds, ref)
		if err != nil && !errors.Is(err, analysis.ErrNoCodeColumn) {
			return err
		}

		var analysisText string
		switch {
		case reportAnalysis != "":
			raw, err := readInput(cmd, reportAnalysis)
			if err != nil {
				return err
			}
			analysisText = llm.CleanResponse(string(raw))
		case reportAsk:
			client, err := llm.New(ctx, llm.Options{
				Provider:     cfg.LLMProvider,
				Model:        cfg.LLMModel,
				SystemPrompt: llm.SystemPrompt(ref),
				Timeout:      cfg.LLMTimeout,
				ProjectID:    cfg.ProjectID,
				Region:       cfg.VertexAIRegion,
				OpenAIAPIKey: cfg.OpenAIAPIKey,
			})
			if err != nil {
				return err
			}
			slog.Info("Asking LLM for analysis.", "llm", client.Name())
			raw, err := client.Generate(ctx, nil, llm.Question(summary, ""))
			if err != nil {
				return err
			}
			analysisText = llm.CleanResponse(raw)
			if err := llm.DetectRefusal(analysisText); err != nil {
				return err
			}
		}

		findings, hasFindings := tables.Extract(analysisText)
		metrics := analysis.ComputeMetrics(summary, findings, hasFindings, analysisText)
		generatedAt := time.Now()

		layout := pdfreport.Build(pdfreport.Report{
			DatasetName: ds.Name,
			GeneratedAt: generatedAt,
			Metrics:     metrics,
			Findings:    findings,
			HasFindings: hasFindings,
			Analysis:    analysisText,
			MaxRows:     cfg.MaxReportRows,
		})
		out, err := os.Create(reportOut)
		if err != nil {
			return err
		}
		if err := pdfreport.Render(ctx, layout, out); err != nil {
			out.Close()
			return fmt.Errorf("failed to render PDF: %w", err)
		}
		if err := out.Close(); err != nil {
			return err
		}

		problems := services.ProblemList(summary, pdfreport.MaxFindingRows)
		if reportHTML != "" {
			html, err := mail.RenderHTML(mail.Summary{
				DatasetName: ds.Name,
				GeneratedAt: generatedAt,
				Metrics:     metrics,
				Severity:    analysis.DetectSeverity(analysisText),
				Findings:    findings,
				HasFindings: hasFindings,
				Problems:    problems,
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(reportHTML, []byte(html), 0o644); err != nil {
				return err
			}
		}

		res := reportSummary{
			File:     ds.Name,
			PDF:      reportOut,
			Pages:    layout.PageCount(),
			Metrics:  metrics,
			Message:  metrics.Status.Message(),
			Problems: problems,
		}
		if hasFindings {
			res.Findings = &findings
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, res)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportAnalysis, "analysis", "", "markdown analysis file, or - for stdin")
	reportCmd.Flags().StringVar(&reportOut, "out", "report.pdf", "PDF output path")
	reportCmd.Flags().StringVar(&reportHTML, "html", "", "also write the email body to this path")
	reportCmd.Flags().BoolVar(&reportAsk, "ask", false, "generate the analysis with the configured LLM")
}
