package rag

import (
	"fmt"
	"strings"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
)

// 文档上下文分隔符
const (
	DocumentContextStart = "---DOCUMENT CONTEXT START---"
	DocumentContextEnd   = "---DOCUMENT CONTEXT END---"
)

// SystemPromptInput 组装系统提示词所需的信息
type SystemPromptInput struct {
	// Capabilities 已格式化的工具说明，空表示无工具
	Capabilities     string
	Summary          string
	ConversationID   string
	Instructions     string
	RetrievedContext string
	SelectedFiles    int
}

// BuildSystemPrompt 组装系统提示词
func BuildSystemPrompt(in SystemPromptInput) string {
	var b strings.Builder

	b.WriteString("You are a helpful AI assistant")
	if in.Capabilities != "" {
		b.WriteString(" with access to tools. You can:\n")
		b.WriteString(in.Capabilities)
	} else {
		b.WriteString(".")
	}

	if strings.TrimSpace(in.Summary) != "" {
		b.WriteString("\n\n**SUMMARY OF THE CONVERSATION:**\n")
		b.WriteString(in.Summary)
	}

	if in.ConversationID != "" {
		b.WriteString("\n\nCurrent conversation ID: ")
		b.WriteString(in.ConversationID)
	}

	if strings.TrimSpace(in.Instructions) != "" {
		b.WriteString("\n\n**CUSTOM INSTRUCTIONS:**\n")
		b.WriteString(in.Instructions)
	}

	if strings.TrimSpace(in.RetrievedContext) != "" {
		source := "from uploaded documents"
		if in.SelectedFiles > 0 {
			source = fmt.Sprintf("from %d selected file(s)", in.SelectedFiles)
		}
		fmt.Fprintf(&b, "\n\n**📚 DOCUMENT CONTEXT AVAILABLE:**\n\n"+
			"I have access to relevant information %s that may help answer your question. Here is the context:\n\n"+
			"%s\n%s\n%s\n\n"+
			"**Instructions for using this context:**\n"+
			"- Use this information to provide accurate, detailed responses\n"+
			"- When referencing information from the documents, you can mention \"Based on the uploaded documents...\" or \"According to the provided information...\"\n"+
			"- If the user's question is directly answered by the context, prioritize that information\n"+
			"- If the context is not relevant to the user's question, you can ignore it and respond normally\n"+
			"- Combine the document context with your general knowledge when appropriate",
			source, DocumentContextStart, in.RetrievedContext, DocumentContextEnd)
	}

	return b.String()
}

// formatTranscript 将消息格式化为 "sender: content"
func formatTranscript(messages []*domainRAG.ChatMessage) []string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s\n", msg.Sender, msg.Content))
	}
	return lines
}

// initialSummaryPrompt 首次摘要提示词
func initialSummaryPrompt(transcript []string) string {
	return `You are an expert conversation analyst and summarization specialist. Your task is to create a comprehensive yet concise summary of a conversation that will serve as long-term memory for an AI assistant.

## CRITICAL REQUIREMENTS:

### Structure & Organization:
- Create a hierarchical summary with clear topic sections
- Use bullet points for key information within each topic
- Maintain strict chronological flow of discussion
- Separate facts from opinions/preferences clearly

### Content Preservation:
- **Code & Technical Details**: Preserve all code snippets, file names, error messages, and technical configurations exactly
- **Decisions & Outcomes**: Highlight all decisions made, solutions found, and their effectiveness
- **User Preferences**: Note user's stated preferences, constraints, and requirements
- **Context Continuity**: Include enough detail for seamless conversation resumption
- **Action Items**: Extract any pending tasks, follow-ups, or unresolved questions

### Quality Standards:
- Be comprehensive but concise (aim for 150-300 words)
- Use precise, unambiguous language
- Include specific details that matter (numbers, names, versions, dates)
- Avoid redundancy while ensuring completeness
- Write in third person, objective tone

## CONVERSATION TO SUMMARIZE:
` + strings.Join(transcript, "\n") + `

## OUTPUT FORMAT:
Structure your summary as:

**Main Topics Discussed:**
- Topic 1: [Brief description with key points]
- Topic 2: [Brief description with key points]

**Technical Details:**
- Code/configurations discussed
- Tools, libraries, or technologies mentioned
- Specific implementations or solutions

**Decisions & Outcomes:**
- What was decided or resolved
- Solutions that worked/didn't work
- User's final choices or preferences

**Pending Items:**
- Unresolved questions
- Follow-up tasks mentioned

**Context Notes:**
- User's background or expertise level
- Project context or goals
- Constraints or requirements mentioned

Generate a summary that would enable seamless conversation continuation.`
}

// updateSummaryPrompt 增量合并摘要提示词
func updateSummaryPrompt(transcript []string, previousSummary string) string {
	return `You are an expert conversation analyst specializing in incremental summary updates. Your task is to intelligently merge new conversation content with an existing summary while maintaining accuracy and coherence.

## CRITICAL REQUIREMENTS:

### Integration Strategy:
- **Preserve Existing Information**: Keep all valid information from the previous summary
- **Merge Seamlessly**: Integrate new content without creating redundancy
- **Maintain Structure**: Follow the same organizational format as the original
- **Update Chronologically**: Ensure the flow remains chronological
- **Resolve Conflicts**: If new information contradicts old, note both with timestamps/context

### Content Handling:
- **Evolutionary Updates**: Show how topics, decisions, or technical details evolved
- **New Discoveries**: Highlight new topics, solutions, or insights clearly
- **Status Changes**: Update the status of pending items or unresolved questions
- **Contextual Awareness**: Understand how new messages relate to previous discussions

## INPUTS:

### PREVIOUS SUMMARY:
` + previousSummary + `

### NEW CONVERSATION CONTENT:
` + strings.Join(transcript, "\n") + `

## OUTPUT FORMAT:
Update the summary using this structure:

**Main Topics Discussed:**
- [Merge previous topics with new ones, noting evolution]
- [Add completely new topics clearly marked]

**Technical Details:**
- [Combine all technical information chronologically]
- [Note any updates, fixes, or changes to previous implementations]

**Decisions & Outcomes:**
- [Update previous decisions if they changed]
- [Add new decisions and their outcomes]

**Pending Items:**
- [Update status of previous pending items]
- [Add new unresolved questions or tasks]
- [Remove items that were completed in new messages]

**Context Notes:**
- [Maintain user profile information]
- [Note any new constraints or preferences]

## INTEGRATION GUIDELINES:
1. **If new content extends a topic**: Merge smoothly, showing progression
2. **If new content contradicts previous info**: Present both with context about when each was relevant
3. **If new content resolves pending items**: Move them to "Decisions & Outcomes" section
4. **If new content is completely unrelated**: Add as separate topics while maintaining flow

Generate an updated summary that represents the complete conversation history accurately and would enable seamless conversation continuation.`
}

// analysisPrompt 查询相关性分析提示词，结果通过工具调用返回
func analysisPrompt(query string) string {
	return `You are a query analyzer. Determine if the user's query needs to search through uploaded documents or if it can be answered conversationally.

SEARCH NEEDED (needsSearch: true) for queries about:
- Specific document content ("What does the contract say...", "According to the file...")
- Document analysis ("Summarize the document", "Find information about...")
- Technical documentation questions
- Specific facts from uploaded files

NO SEARCH NEEDED (needsSearch: false) for:
- Greetings ("Hi", "Hello", "Hey")
- General conversation ("How are you?", "Thank you")
- General knowledge questions that don't reference documents
- Simple requests ("Help me", "Explain AI")

WHEN SEARCH IS NEEDED, generate an optimizedQuery that:
- Focuses on key concepts and keywords for better semantic matching
- Removes filler words and conversational elements
- Uses domain-specific terminology when appropriate
- Is concise but comprehensive

Examples:
- User: "Hey, what does that document say about payment terms?"
  → optimizedQuery: "payment terms conditions deadlines"
- User: "I need to know about employee benefits mentioned in the contract"
  → optimizedQuery: "employee benefits compensation healthcare vacation"

User query: "` + query + `"

Report your decision by calling the report_query_analysis tool.`
}
