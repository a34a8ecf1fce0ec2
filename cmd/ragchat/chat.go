package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragchat/internal/domain"
	"ragchat/internal/service"
	"ragchat/internal/summarizer"
	"ragchat/internal/tui"
)

func newChatCmd(c *cli) *cobra.Command {
	var (
		topK          int
		digestLength  int
		retrievalOnly bool
	)
	cmd := &cobra.Command{
		Use:   "chat <files...>",
		Short: "Ingest documents and open the interactive search and chat console",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(c.cfg, c.log)
			if err != nil {
				return err
			}
			if _, err := a.ingestAll(cmd.Context(), c.log, args); err != nil {
				return err
			}

			opts := tui.Options{
				TopK:     topK,
				Settings: c.cfg.Chat,
				Digest:   digest(a.svc, summarizer.NewFrequencySummarizer(), digestLength, c.log),
			}
			if a.generator != nil && !retrievalOnly {
				opts.Chatter = a.svc
			}
			_, err = tea.NewProgram(tui.New(a.svc, opts), tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().IntVarP(&topK, "k", "k", 10, "Number of results to show per query")
	cmd.Flags().IntVar(&digestLength, "digest-sentences", 1, "Sentences of digest shown per document")
	cmd.Flags().BoolVar(&retrievalOnly, "no-llm", false, "Disable ask mode")
	return cmd
}

// digest describes each ingested document in one line.
func digest(svc *service.RAGService, sum domain.Summarizer, sentences int, log *zap.Logger) string {
	var lines []string
	for _, r := range svc.SourceFiles() {
		text, err := sum.Summarize(svc.FileText(r.Filename), sentences)
		if err != nil {
			log.Warn("digest failed", zap.String("file", r.Filename), zap.Error(err))
			text = ""
		}
		lines = append(lines, fmt.Sprintf("%s (%d chunks, %d pages): %s", r.Filename, r.ChunkCount, r.PageCount, text))
	}
	return strings.Join(lines, "\n")
}
