package config

// Default model served by the local vLLM deployment.
const defaultModel = "mistralai/Mistral-Small-3.1-24B-Instruct-2503"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Corpus.Root == "" {
		cfg.Corpus.Root = "./data/corpus"
	}
	if cfg.Corpus.TextFile == "" {
		cfg.Corpus.TextFile = "text.txt"
	}
	if cfg.Corpus.ResultFile == "" {
		cfg.Corpus.ResultFile = "filter.json"
	}
	if cfg.Corpus.RecipeFile == "" {
		cfg.Corpus.RecipeFile = "recipe.txt"
	}
	if cfg.Corpus.PDFFile == "" {
		cfg.Corpus.PDFFile = "article.pdf"
	}
	if cfg.Corpus.MetadataFile == "" {
		cfg.Corpus.MetadataFile = "metadata.json"
	}
	if cfg.Chunking.MaxTokens == 0 {
		cfg.Chunking.MaxTokens = 120000
	}
	if cfg.Chunking.Encoding == "" {
		cfg.Chunking.Encoding = "cl100k_base"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "vllm"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:8000/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.MaxCompletionTokens == 0 {
		cfg.LLM.MaxCompletionTokens = 1024
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 120
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 1
	}
	if cfg.Pipeline.Progress == "" {
		cfg.Pipeline.Progress = "cli"
	}
	if cfg.Generate.MaxCompletionTokens == 0 {
		cfg.Generate.MaxCompletionTokens = 4096
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = ".furui/ledger.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8974
	}
	if cfg.Fetch.BaseURL == "" {
		cfg.Fetch.BaseURL = "https://export.arxiv.org/api/query"
	}
	if cfg.Fetch.Query == "" {
		cfg.Fetch.Query = "cat:cond-mat*"
	}
	if cfg.Fetch.MaxResults == 0 {
		cfg.Fetch.MaxResults = 100
	}
	if cfg.Fetch.PageSize == 0 {
		cfg.Fetch.PageSize = 100
	}
	if cfg.Fetch.DelaySeconds == 0 {
		cfg.Fetch.DelaySeconds = 1
	}
}
