// Package protocol holds the parameter and result types of the daemon's
// JSON-RPC methods. The HTTP API uses the same shapes.
package protocol

const (
	ServerName = "fstspell"
	Version    = "0.3.0"
)

const (
	MethodInitialize       = "initialize"
	MethodPing             = "ping"
	MethodList             = "methods/list"
	MethodHealth           = "health"
	MethodIsCorrect        = "spell/isCorrect"
	MethodSuggest          = "spell/suggest"
	MethodCheck            = "spell/check"
	MethodProofread        = "grammar/proofread"
	MethodIgnoreRule       = "grammar/ignoreRule"
	MethodResetIgnoreRules = "grammar/resetIgnoreRules"
	MethodLearn            = "dict/learn"
	MethodUnlearn          = "dict/unlearn"
	MethodLearned          = "dict/list"
	MethodLocales          = "locales/list"
	MethodHasLocale        = "locales/has"
	MethodRefresh          = "resources/refresh"
)

// Error codes. Each engine error kind has its own code; the kind name is
// also sent as data.kind.
const (
	CodeParseError         = -32700
	CodeInvalidRequest     = -32600
	CodeMethodNotFound     = -32601
	CodeInvalidParams      = -32602
	CodeInternalError      = -32603
	CodeResourceNotFound   = -32001
	CodeCorruptArchive     = -32002
	CodeUnsupportedVersion = -32003
	CodeEngineInitError    = -32004
	CodeUseAfterInvalidate = -32005
	CodePipelineError      = -32006
	CodeInvalidArgument    = -32007
)

type ErrorData struct {
	Kind string `json:"kind"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeParams struct {
	ClientInfo ClientInfo `json:"clientInfo"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeResult struct {
	ServerInfo ServerInfo `json:"serverInfo"`
	Methods    []string   `json:"methods"`
}

type MethodInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ListResult struct {
	Methods []MethodInfo `json:"methods"`
}

type HealthResult struct {
	Status           string   `json:"status"`
	Uptime           int64    `json:"uptime"`
	Version          string   `json:"version"`
	LoadedSpellers   []string `json:"loadedSpellers"`
	LoadedGrammars   []string `json:"loadedGrammars"`
	AvailableLocales int      `json:"availableLocales"`
}

type WordParams struct {
	Locale     string      `json:"locale"`
	HostLocale *HostLocale `json:"hostLocale,omitempty"`
	Word       string      `json:"word"`
}

type IsCorrectResult struct {
	Correct bool `json:"correct"`
}

type SuggestParams struct {
	Locale     string      `json:"locale"`
	HostLocale *HostLocale `json:"hostLocale,omitempty"`
	Word       string      `json:"word"`
	Limit      int         `json:"limit,omitempty"`
}

type SuggestResult struct {
	Suggestions []string `json:"suggestions"`
}

type CheckParams struct {
	Locale     string      `json:"locale"`
	HostLocale *HostLocale `json:"hostLocale,omitempty"`
	Words      []string    `json:"words"`
}

type Misspelling struct {
	Index       int      `json:"index"`
	Suggestions []string `json:"suggestions"`
}

type CheckResult struct {
	Misspellings []Misspelling `json:"misspellings"`
}

type ProofreadParams struct {
	Locale     string      `json:"locale"`
	HostLocale *HostLocale `json:"hostLocale,omitempty"`
	Text       string      `json:"text"`
}

// GrammarError is one finding. Start and End are byte offsets into the
// submitted text, End exclusive; CharStart and CharEnd count code points.
type GrammarError struct {
	Start       int      `json:"start"`
	End         int      `json:"end"`
	CharStart   int      `json:"charStart"`
	CharEnd     int      `json:"charEnd"`
	Form        string   `json:"form"`
	RuleID      string   `json:"ruleId"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

type ProofreadResult struct {
	Errors []GrammarError `json:"errors"`
}

type RuleParams struct {
	Locale     string      `json:"locale"`
	HostLocale *HostLocale `json:"hostLocale,omitempty"`
	RuleID     string      `json:"ruleId"`
}

type LocaleParams struct {
	Locale     string      `json:"locale,omitempty"`
	HostLocale *HostLocale `json:"hostLocale,omitempty"`
}

type LearnedResult struct {
	Words []string `json:"words"`
}

// HostLocale is a locale as the document host describes it. Requests may
// send one instead of a locale tag; the "qlt" language takes its tag from
// the variant. A non-empty locale tag wins over it.
type HostLocale struct {
	Language string `json:"language"`
	Country  string `json:"country,omitempty"`
	Variant  string `json:"variant,omitempty"`
}

type LocalesResult struct {
	Tags        []string     `json:"tags"`
	HostLocales []HostLocale `json:"hostLocales"`
}

type HasLocaleResult struct {
	Available bool `json:"available"`
}

type Empty struct{}
