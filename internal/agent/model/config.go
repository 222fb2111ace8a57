package model

// ================ Config ================
type LLMConfig struct {
	Provider       string  `envconfig:"LLM_PROVIDER" default:"gemini"`
	Model          string  `envconfig:"LLM_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"LLM_MAX_TOKENS" default:"4096"`
	Temperature    float32 `envconfig:"LLM_TEMPERATURE" default:"0.5"`
	ThinkingBudget int32   `envconfig:"LLM_THINKING_BUDGET" default:"0"`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`

	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	UseBedrock      bool   `envconfig:"ANTHROPIC_USE_BEDROCK" default:"false"`
	AWSRegion       string `envconfig:"AWS_REGION"`
	AWSProfile      string `envconfig:"AWS_PROFILE"`
}

type OrchestratorConfig struct {
	MaxSteps int `envconfig:"ORCHESTRATOR_MAX_STEPS" default:"8"`
}

type QueryConfig struct {
	RowCap      int    `envconfig:"QUERY_ROW_CAP" default:"200"`
	PreviewRows int    `envconfig:"QUERY_PREVIEW_ROWS" default:"15"`
	SchemaFile  string `envconfig:"SCHEMA_FILE"`
}

type CatalogConfig struct {
	ProductsFile string `envconfig:"CATALOG_FILE"`
	SegmentsFile string `envconfig:"SEGMENTS_FILE"`
}

type ConversationConfig struct {
	TTL          string `envconfig:"CONVERSATION_TTL" default:"24h"`
	ContextTurns int    `envconfig:"CONVERSATION_CONTEXT_TURNS" default:"6"`
}
