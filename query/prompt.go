package query

import (
	"strconv"
	"strings"

	"github.com/poiesic/docpipe/ai"
)

// contextSeparator joins retrieved passages into the prompt context blob.
const contextSeparator = "\n\n---\n\n"

const systemPromptTemplate = `You are a helpful assistant that answers questions using the provided document excerpts.

Rules:
- Base your answer on the excerpts below. If they do not contain the answer, say you don't know instead of guessing.
- Cite your sources by file name, page range and URL as given in each excerpt header.
- Be concise and direct.

Excerpts:

%CONTEXT%`

// Turn is one prior conversation message supplied by the caller. Role is
// normalized; unrecognized values default to user.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildPrompt assembles the full message list: system instruction with the
// retrieved context, prior turns role-normalized, then the question.
// references and contexts are index-aligned; graphContext may be empty.
func buildPrompt(question string, history []Turn, references []Reference, contexts []string, graphContext string) []ai.Message {
	blocks := make([]string, 0, len(contexts)+1)
	for i, text := range contexts {
		blocks = append(blocks, "["+references[i].citation()+"]\n"+text)
	}
	if graphContext != "" {
		blocks = append(blocks, "[knowledge graph]\n"+graphContext)
	}

	contextBlob := strings.Join(blocks, contextSeparator)
	if contextBlob == "" {
		contextBlob = "(no matching excerpts found)"
	}

	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{
		Role:    ai.RoleSystem,
		Content: strings.Replace(systemPromptTemplate, "%CONTEXT%", contextBlob, 1),
	})
	for _, turn := range history {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		messages = append(messages, ai.Message{
			Role:    ai.NormalizeRole(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: question})
	return messages
}

func pageSpan(start, end int) string {
	// Half-open range rendered inclusively for humans
	last := end - 1
	if last <= start {
		return strconv.Itoa(start)
	}
	return strconv.Itoa(start) + "-" + strconv.Itoa(last)
}
