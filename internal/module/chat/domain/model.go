package domain

// ChatTurn は会話の1メッセージ（ユーザーまたはアシスタント）を表す
type ChatTurn struct {
	Content string `json:"content"`
	IsUser  bool   `json:"isUser"`
}

// ChatRequest はリレーへの入力
type ChatRequest struct {
	Message     string     `json:"message"`
	ChatHistory []ChatTurn `json:"chatHistory"`
}

// GenerationSettings は推論エンドポイントに渡す固定パラメータ
type GenerationSettings struct {
	Model         string
	Temperature   float64
	MaxTokens     int
	ContextWindow int
}

// DefaultGenerationSettings はデフォルトの生成パラメータを返す
func DefaultGenerationSettings() GenerationSettings {
	return GenerationSettings{
		Model:         "qwen2.5:1.5b",
		Temperature:   0.7,
		MaxTokens:     500,
		ContextWindow: 4096,
	}
}

// DefaultWindowSize は文脈として送る直近ターン数
const DefaultWindowSize = 10

// Window は直近 n 件のターンを返す（n <= 0 の場合は空）
// 返すスライスは元の配列と領域を共有しない
func Window(turns []ChatTurn, n int) []ChatTurn {
	if n <= 0 || len(turns) == 0 {
		return []ChatTurn{}
	}
	start := 0
	if len(turns) > n {
		start = len(turns) - n
	}
	out := make([]ChatTurn, len(turns)-start)
	copy(out, turns[start:])
	return out
}
