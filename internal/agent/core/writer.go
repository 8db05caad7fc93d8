package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/researcher/config"
)

const writerSystemPrompt = "You are a writing agent specialized in producing clear, well-structured " +
	"academic and technical content. Your job is to draft, expand, refine, or " +
	"summarize text according to the user's task. " +
	"When synthesizing research, you MUST use ALL available information from the stored documents. " +
	"Read through every document provided and incorporate relevant information from each one. " +
	"Do not skip any documents - synthesize information from all sources to create a comprehensive report. " +
	"Prioritize detailed sources (arXiv papers, Wikipedia articles) but ensure you reference all documents. " +
	"Ensure your report is thorough, well-organized, and includes proper citations. " +
	"Structure your report with clear sections: Introduction, Background/Methodology, " +
	"Applications, Challenges, and Conclusion."

// WriterAgent drafts prose, pulling the stored document collection for the
// topic into its prompt when one exists. Retrieval problems degrade to a
// documents-free draft instead of failing the step.
type WriterAgent struct {
	llm    LLMProvider
	docs   DocumentStore
	model  string
	wf     *config.WorkflowConfig
	logger *log.Logger
}

func NewWriterAgent(llm LLMProvider, docs DocumentStore, model string, wf *config.WorkflowConfig) *WriterAgent {
	return &WriterAgent{
		llm:    llm,
		docs:   docs,
		model:  model,
		wf:     wf,
		logger: log.New(log.Writer(), "[WRITER] ", log.LstdFlags),
	}
}

func (a *WriterAgent) Kind() AgentKind { return AgentWriter }

func (a *WriterAgent) Execute(ctx context.Context, task, historyContext, topic string) (string, Usage, error) {
	storedDocs := ""
	if topic != "" && a.docs != nil {
		collection, err := a.docs.TopicCollection(ctx, topic)
		if err != nil {
			a.logger.Printf("could not retrieve stored documents: %v", err)
		} else if collection != "" {
			storedDocs = collection
			a.logger.Printf("retrieved %d characters of stored documents (%d documents)",
				len(storedDocs), strings.Count(storedDocs, "## "))
		} else {
			a.logger.Printf("no documents found for topic: %s", topic)
		}
	}

	historyContext = truncateWithMarker(historyContext, "Context", a.wf.WriterContextMax)

	var sb strings.Builder
	if storedDocs != "" {
		fmt.Fprintf(&sb, "Stored Research Documents:\n%s\n\n", storedDocs)
	}
	if historyContext != "" {
		fmt.Fprintf(&sb, "Context from previous steps:\n%s\n\n", historyContext)
	}
	fmt.Fprintf(&sb, "Your task:\n%s", task)

	resp, err := a.llm.Generate(ctx, writerSystemPrompt, sb.String(), a.model, 1.0)
	if err != nil {
		return "", Usage{}, fmt.Errorf("writer generation: %w", err)
	}
	var usage Usage
	usage.Record(a.model, resp.InputTokens, resp.OutputTokens)
	return resp.Message.Content, usage, nil
}
