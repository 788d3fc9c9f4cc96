package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/maane-ai/assist-service/internal/domain"
)

// StackInput carries everything the builder needs to assemble a prompt
// stack for one tenant and channel.
type StackInput struct {
	Tenant   *domain.Tenant
	Template *domain.PromptTemplate // nil when the tenant has no custom layer
	Channel  domain.Channel
}

// Stack is a rendered, layered system prompt. Layers are kept separate so
// callers can log or diff them; System() joins them for the model.
type Stack struct {
	Persona       string
	Profile       string
	ChannelRules  string
	CustomLayer   string
	Guardrails    string
	Greeting      string
	TenantVersion int
}

// System returns the full system prompt the agent runs with.
func (s *Stack) System() string {
	return joinBlocks(
		s.Persona,
		s.Profile,
		s.ChannelRules,
		s.CustomLayer,
		s.Guardrails,
	)
}

// Build assembles the layered prompt stack for the given channel.
// Layer order: persona → business profile → channel rules → tenant custom
// layer → guardrails. The guardrails always come last so tenant text cannot
// override them.
func Build(in StackInput) (*Stack, error) {
	if in.Tenant == nil {
		return nil, fmt.Errorf("prompt stack requires a tenant")
	}
	if !in.Channel.Valid() {
		return nil, fmt.Errorf("unknown channel: %s", in.Channel)
	}

	name := DefaultAssistantName
	greetingTmpl := DefaultGreeting
	custom := ""
	version := 0
	if in.Template != nil {
		if in.Template.Persona != "" {
			name = in.Template.Persona
		}
		if in.Template.Greeting != "" {
			greetingTmpl = in.Template.Greeting
		}
		custom = in.Template.Custom
		version = in.Template.Version
	}

	stack := &Stack{
		Persona:       fmt.Sprintf(PromptBasePersona, name, in.Tenant.Name),
		Profile:       industryProfile(in.Tenant.Industry),
		ChannelRules:  channelRules(in.Channel),
		CustomLayer:   renderTemplate("custom", custom, in.Tenant),
		Guardrails:    joinBlocks(PromptAntiHallucinationGuard, PromptLeadCaptureRules, PromptGreetingRepetitionPrevention),
		Greeting:      renderTemplate("greeting", greetingTmpl, in.Tenant),
		TenantVersion: version,
	}

	return stack, nil
}

func channelRules(channel domain.Channel) string {
	switch channel {
	case domain.ChannelCalls:
		return PromptCallsChannelRules
	case domain.ChannelWhatsApp:
		return PromptWhatsAppChannelRules
	}
	return ""
}

func industryProfile(industry string) string {
	switch strings.ToLower(industry) {
	case "real_estate", "realestate":
		return PromptRealEstateProfile
	case "services", "service":
		return PromptServicesProfile
	}
	return PromptGenericProfile
}

// renderTemplate renders tenant-authored template text with the business
// variables. Broken templates fall back to plain variable replacement so a
// typo in a tenant prompt never takes the channel down.
func renderTemplate(name, tmplStr string, tenant *domain.Tenant) string {
	if tmplStr == "" {
		return ""
	}

	data := map[string]string{
		"BusinessName": tenant.Name,
		"Industry":     tenant.Industry,
		"Phone":        tenant.PhoneNumber,
	}

	tmpl, err := template.New(name).Parse(tmplStr)
	if err != nil {
		return replaceVariables(tmplStr, data)
	}

	var result strings.Builder
	if err := tmpl.Execute(&result, data); err != nil {
		return replaceVariables(tmplStr, data)
	}
	return result.String()
}

func replaceVariables(s string, data map[string]string) string {
	for key, val := range data {
		s = strings.ReplaceAll(s, "{{."+key+"}}", val)
	}
	return s
}

// joinBlocks joins non-empty prompt blocks with blank lines.
func joinBlocks(blocks ...string) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n\n")
}
