package nodes

import (
	"sort"

	"github.com/shaiso/flowforge/internal/domain"
)

// Идентификаторы встроенных типов узлов.
const (
	KindManualTrigger   = "manual-trigger"
	KindWebhookTrigger  = "webhook-trigger"
	KindScheduleTrigger = "schedule-trigger"
	KindHTTPRequest     = "http-request"
	KindAICompletion    = "ai-completion"
	KindCode            = "code-node"
	KindJSONTransform   = "json-transform"
	KindIf              = "if-node"
	KindSwitch          = "switch-node"
	KindMerge           = "merge-node"
	KindConsoleLog      = "console-log"
	KindEmail           = "email-node"
	KindTelegram        = "telegram-node"
)

var (
	anyInput  = domain.HandleDefinition{ID: "input", Label: "Input", DataType: "any", Multiple: true}
	anyOutput = domain.HandleDefinition{ID: "output", Label: "Output", DataType: "any", Multiple: true}
)

// kindMessages — сообщения о начале и завершении для встроенных типов.
var kindMessages = map[string][2]string{
	KindManualTrigger:   {"Manual trigger activated", "Trigger data passed to next node"},
	KindWebhookTrigger:  {"Webhook received incoming request", "Webhook payload processed"},
	KindScheduleTrigger: {"Schedule trigger activated", "Schedule executed on time"},
	KindHTTPRequest:     {"Making HTTP request to {url}", "HTTP request completed successfully"},
	KindAICompletion:    {"Sending request to AI model", "AI response generated"},
	KindJSONTransform:   {"Transforming JSON data", "Data transformation complete"},
	KindCode:            {"Executing custom code", "Code execution finished"},
	KindIf:              {"Evaluating condition", "Condition evaluated"},
	KindSwitch:          {"Evaluating switch conditions", "Switch routing complete"},
	KindMerge:           {"Merging input data streams", "Data merged successfully"},
	KindConsoleLog:      {"Logging data to console", "Data logged"},
	KindEmail:           {"Preparing email for delivery", "Email sent successfully"},
	KindTelegram:        {"Sending Telegram message", "Message delivered"},
}

// catalog — определения встроенных типов узлов.
var catalog = map[string]*domain.NodeDefinition{
	KindManualTrigger: {
		ID:          KindManualTrigger,
		Name:        "Manual Trigger",
		Description: "Starts a flow manually. Use as entry point for flows triggered by user action.",
		Category:    domain.NodeCategoryTrigger,
		Version:     1,
		Inputs:      []domain.HandleDefinition{},
		Outputs:     []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "passthrough", DisplayName: "Pass Through", Type: domain.PropertyBoolean, Default: true,
				Description: "Pass trigger data directly to output"},
			{Name: "initialData", DisplayName: "Initial Data", Type: domain.PropertyJSON, Default: "{}",
				Description: "JSON data to output when triggered"},
		},
		Defaults: map[string]any{"passthrough": true, "initialData": "{}"},
	},
	KindWebhookTrigger: {
		ID:          KindWebhookTrigger,
		Name:        "Webhook Trigger",
		Description: "Starts a flow when a webhook is received. Useful for integrations.",
		Category:    domain.NodeCategoryTrigger,
		Version:     1,
		Inputs:      []domain.HandleDefinition{},
		Outputs:     []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "path", DisplayName: "Webhook Path", Type: domain.PropertyString, Required: true,
				Description: "The path for the webhook endpoint", Placeholder: "/my-webhook"},
			{Name: "method", DisplayName: "HTTP Method", Type: domain.PropertySelect, Default: "POST",
				Description: "Accepted HTTP method",
				Options:     options("POST", "GET", "PUT")},
		},
		Defaults: map[string]any{"method": "POST"},
	},
	KindScheduleTrigger: {
		ID:          KindScheduleTrigger,
		Name:        "Schedule Trigger",
		Description: "Starts a flow on a schedule using cron syntax.",
		Category:    domain.NodeCategoryTrigger,
		Version:     1,
		Inputs:      []domain.HandleDefinition{},
		Outputs:     []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "schedule", DisplayName: "Cron Expression", Type: domain.PropertyString, Required: true,
				Default: "0 9 * * *", Description: `Cron expression (e.g., "0 9 * * *" for 9 AM daily)`},
			{Name: "timezone", DisplayName: "Timezone", Type: domain.PropertyString, Default: "UTC",
				Description: "Timezone for the schedule"},
		},
		Defaults: map[string]any{"schedule": "0 9 * * *", "timezone": "UTC"},
	},
	KindHTTPRequest: {
		ID:          KindHTTPRequest,
		Name:        "HTTP Request",
		Description: "Makes HTTP requests to external APIs and services.",
		Category:    domain.NodeCategoryAction,
		Version:     1,
		Inputs:      []domain.HandleDefinition{anyInput},
		Outputs:     []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "method", DisplayName: "Method", Type: domain.PropertySelect, Required: true, Default: "GET",
				Description: "HTTP method",
				Options:     options("GET", "POST", "PUT", "PATCH", "DELETE")},
			{Name: "url", DisplayName: "URL", Type: domain.PropertyString, Required: true,
				Description: "Target URL", Placeholder: "https://api.example.com/data"},
			{Name: "headers", DisplayName: "Headers", Type: domain.PropertyJSON, Default: "{}",
				Description: "Custom headers as JSON"},
			{Name: "body", DisplayName: "Body", Type: domain.PropertyJSON, Default: "",
				Description: "Request body as JSON"},
			{Name: "timeout", DisplayName: "Timeout (ms)", Type: domain.PropertyNumber, Default: 30000,
				Description: "Request timeout in milliseconds"},
		},
		Defaults: map[string]any{"method": "GET", "url": "", "headers": "{}", "body": ""},
	},
	KindAICompletion: {
		ID:          KindAICompletion,
		Name:        "AI Completion",
		Description: "Generate text using AI language models.",
		Category:    domain.NodeCategoryAction,
		Version:     1,
		Inputs:      []domain.HandleDefinition{anyInput},
		Outputs:     []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "model", DisplayName: "Model", Type: domain.PropertySelect, Default: "gpt-4",
				Description: "AI model to use",
				Options:     options("gpt-4", "gpt-3.5-turbo", "gpt-4o-mini")},
			{Name: "prompt", DisplayName: "Prompt", Type: domain.PropertyString, Required: true,
				Description: "The prompt to send to the AI"},
			{Name: "systemPrompt", DisplayName: "System Prompt", Type: domain.PropertyText,
				Description: "Instructions for the model"},
			{Name: "temperature", DisplayName: "Temperature", Type: domain.PropertyNumber, Default: 0.7,
				Description: "Randomness (0-1)"},
			{Name: "maxTokens", DisplayName: "Max Tokens", Type: domain.PropertyNumber, Default: 1000,
				Description: "Upper bound for the response length"},
		},
		Defaults: map[string]any{"model": "gpt-4", "prompt": "", "temperature": 0.7},
	},
	KindJSONTransform: {
		ID:          KindJSONTransform,
		Name:        "JSON Transform",
		Description: "Transform and manipulate JSON data.",
		Category:    domain.NodeCategoryTransform,
		Version:     1,
		Inputs:      []domain.HandleDefinition{anyInput},
		Outputs:     []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "expression", DisplayName: "Expression", Type: domain.PropertyCode, Required: true,
				Description: "Template producing the transformed value",
				Placeholder: `{"total": {{ len .Input.items }}}`},
		},
		Defaults: map[string]any{"expression": ""},
	},
	KindCode: {
		ID:          KindCode,
		Name:        "Code",
		Description: "Execute custom JavaScript code.",
		Category:    domain.NodeCategoryAction,
		Version:     1,
		Inputs:      []domain.HandleDefinition{anyInput},
		Outputs:     []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "code", DisplayName: "JavaScript Code", Type: domain.PropertyCode, Required: true,
				Description: "Custom JavaScript code to execute",
				Placeholder: "return items.map(item => ({ ...item, processed: true }));"},
		},
		Defaults: map[string]any{"code": ""},
	},
	KindIf: {
		ID:          KindIf,
		Name:        "IF Condition",
		Description: "Route items based on a condition.",
		Category:    domain.NodeCategoryLogic,
		Version:     1,
		Inputs:      []domain.HandleDefinition{anyInput},
		Outputs: []domain.HandleDefinition{
			{ID: "true", Label: "True", DataType: "any"},
			{ID: "false", Label: "False", DataType: "any"},
		},
		Properties: []domain.PropertyDefinition{
			{Name: "condition", DisplayName: "Condition", Type: domain.PropertyString, Required: true,
				Description: "JavaScript expression that returns true/false",
				Placeholder: "input.status === 200"},
		},
		Defaults: map[string]any{"condition": ""},
	},
	KindSwitch: {
		ID:          KindSwitch,
		Name:        "Switch",
		Description: "Route items to different outputs based on value.",
		Category:    domain.NodeCategoryLogic,
		Version:     1,
		Inputs:      []domain.HandleDefinition{anyInput},
		Outputs:     []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "field", DisplayName: "Field", Type: domain.PropertyString, Required: true,
				Description: "Field path to evaluate"},
			{Name: "cases", DisplayName: "Cases", Type: domain.PropertyJSON, Default: "[]",
				Description: "Case definitions as JSON"},
		},
		Defaults: map[string]any{"field": "", "cases": "[]"},
	},
	KindMerge: {
		ID:          KindMerge,
		Name:        "Merge",
		Description: "Merge multiple inputs into one output.",
		Category:    domain.NodeCategoryLogic,
		Version:     1,
		Inputs: []domain.HandleDefinition{
			{ID: "input1", Label: "Input 1", DataType: "any"},
			{ID: "input2", Label: "Input 2", DataType: "any"},
		},
		Outputs: []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "mode", DisplayName: "Mode", Type: domain.PropertySelect, Default: "append",
				Description: "How to merge the inputs",
				Options: []domain.PropertyOption{
					{Name: "Append", Value: "append", Description: "Combine all items"},
					{Name: "Merge by Index", Value: "index", Description: "Merge matching indices"},
					{Name: "Merge by Key", Value: "key", Description: "Merge by a common key"},
				}},
			{Name: "key", DisplayName: "Key", Type: domain.PropertyString,
				Description: "Common key for the key mode"},
		},
		Defaults: map[string]any{"mode": "append"},
	},
	KindConsoleLog: {
		ID:          KindConsoleLog,
		Name:        "Console Log",
		Description: "Log data for debugging and inspection.",
		Category:    domain.NodeCategoryOutput,
		Version:     1,
		Inputs:      []domain.HandleDefinition{anyInput},
		Outputs:     []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "message", DisplayName: "Message", Type: domain.PropertyString,
				Description: "Optional message prefix"},
			{Name: "logLevel", DisplayName: "Log Level", Type: domain.PropertySelect, Default: "info",
				Description: "Severity level",
				Options: []domain.PropertyOption{
					{Name: "Debug", Value: "debug"},
					{Name: "Info", Value: "info"},
					{Name: "Warning", Value: "warn"},
					{Name: "Error", Value: "error"},
				}},
			{Name: "passthrough", DisplayName: "Pass Through", Type: domain.PropertyBoolean, Default: true,
				Description: "Pass input data to output"},
		},
		Defaults: map[string]any{"message": "", "logLevel": "info", "passthrough": true},
	},
	KindEmail: {
		ID:          KindEmail,
		Name:        "Send Email",
		Description: "Send email notifications.",
		Category:    domain.NodeCategoryOutput,
		Version:     1,
		Inputs:      []domain.HandleDefinition{anyInput},
		Outputs:     []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "to", DisplayName: "To", Type: domain.PropertyString, Required: true,
				Description: "Recipient email address"},
			{Name: "subject", DisplayName: "Subject", Type: domain.PropertyString, Required: true,
				Description: "Email subject"},
			{Name: "body", DisplayName: "Body", Type: domain.PropertyString,
				Description: "Email body content"},
		},
		Defaults: map[string]any{"to": "", "subject": "", "body": ""},
	},
	KindTelegram: {
		ID:          KindTelegram,
		Name:        "Send Telegram",
		Description: "Send messages via Telegram bot.",
		Category:    domain.NodeCategoryOutput,
		Version:     1,
		Inputs:      []domain.HandleDefinition{anyInput},
		Outputs:     []domain.HandleDefinition{anyOutput},
		Properties: []domain.PropertyDefinition{
			{Name: "chatId", DisplayName: "Chat ID", Type: domain.PropertyString, Required: true,
				Description: "Telegram chat ID"},
			{Name: "message", DisplayName: "Message", Type: domain.PropertyString, Required: true,
				Description: "Message text"},
			{Name: "parseMode", DisplayName: "Parse Mode", Type: domain.PropertySelect, Default: "Markdown",
				Description: "Message formatting",
				Options: []domain.PropertyOption{
					{Name: "Markdown", Value: "Markdown"},
					{Name: "HTML", Value: "HTML"},
					{Name: "Plain", Value: ""},
				}},
			{Name: "botToken", DisplayName: "Bot Token", Type: domain.PropertyCredential,
				Description: "Bot API token; delivery is simulated when empty"},
		},
		Defaults: map[string]any{"chatId": "", "message": "", "parseMode": "Markdown"},
	},
}

// Definition возвращает определение встроенного типа из каталога.
func Definition(kind string) (*domain.NodeDefinition, bool) {
	def, ok := catalog[kind]
	return def, ok
}

// CatalogKinds возвращает ID всех встроенных типов (отсортированы).
func CatalogKinds() []string {
	kinds := make([]string, 0, len(catalog))
	for k := range catalog {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func options(values ...string) []domain.PropertyOption {
	opts := make([]domain.PropertyOption, len(values))
	for i, v := range values {
		opts[i] = domain.PropertyOption{Name: v, Value: v}
	}
	return opts
}
