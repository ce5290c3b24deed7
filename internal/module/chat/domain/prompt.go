package domain

import "strings"

// SystemPrompt は全リクエストの先頭に付与する固定の指示ブロック
const SystemPrompt = `You are a solar energy expert. Provide concise, technical responses about solar energy and renewables. Keep responses under 3-4 paragraphs.

Format your responses as follows:
1. Brief technical answer (1-2 sentences)
2. Key points in bullet form
3. Practical recommendation (if applicable)

For calculations/technical data:
- Use markdown tables for data comparison
- Use LaTeX for equations
- Include units and industry standards
- Cite specific metrics

Focus areas:
- Solar PV systems
- Plant operations
- ROI/Economics
- Grid integration
- Performance metrics
- Technical standards
- Maintenance protocols

If asked about non-solar topics, briefly redirect to solar energy discussions.

Keep all responses focused, technical, and actionable.`

// AssistantPrimer はアシスタント応答の書き出しとしてプロンプト末尾に付与する
const AssistantPrimer = "Assistant: Let me provide a focused response about solar energy:\n\n"

// FormatTurn はターンを "User: ..." / "Assistant: ..." 形式に整形する
func FormatTurn(turn ChatTurn) string {
	if turn.IsUser {
		return "User: " + turn.Content
	}
	return "Assistant: " + turn.Content
}

// BuildPrompt は固定指示 + 過去の会話 + 新しいユーザー発話から単一のプロンプトを構築する
func BuildPrompt(message string, history []ChatTurn) string {
	var sb strings.Builder

	sb.WriteString(SystemPrompt)
	sb.WriteString("\n\n")

	if len(history) > 0 {
		formatted := make([]string, 0, len(history))
		for _, turn := range history {
			formatted = append(formatted, FormatTurn(turn))
		}
		sb.WriteString("Previous conversation:\n")
		sb.WriteString(strings.Join(formatted, "\n\n"))
		sb.WriteString("\n\n")
	}

	sb.WriteString("User: ")
	sb.WriteString(message)
	sb.WriteString("\n")
	sb.WriteString(AssistantPrimer)

	return sb.String()
}
