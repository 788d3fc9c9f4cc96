package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maane-ai/assist-service/internal/domain"
)

func testTenant() *domain.Tenant {
	return &domain.Tenant{
		TenantID:    "dental-clinic-tlv",
		Name:        "מרפאת שיניים רמת אביב",
		Industry:    "services",
		PhoneNumber: "+97235551234",
		Language:    "he",
	}
}

func TestBuild_DefaultLayersForCalls(t *testing.T) {
	stack, err := Build(StackInput{Tenant: testTenant(), Channel: domain.ChannelCalls})
	require.NoError(t, err)

	assert.Contains(t, stack.Persona, DefaultAssistantName)
	assert.Contains(t, stack.Persona, "מרפאת שיניים רמת אביב")
	assert.Equal(t, PromptServicesProfile, stack.Profile)
	assert.Equal(t, PromptCallsChannelRules, stack.ChannelRules)
	assert.Empty(t, stack.CustomLayer)
	assert.Equal(t, 0, stack.TenantVersion)

	system := stack.System()
	assert.Contains(t, system, strings.TrimSpace(PromptAntiHallucinationGuard))
	assert.Contains(t, system, strings.TrimSpace(PromptLeadCaptureRules))
}

func TestBuild_ChannelRulesDiffer(t *testing.T) {
	calls, err := Build(StackInput{Tenant: testTenant(), Channel: domain.ChannelCalls})
	require.NoError(t, err)
	wa, err := Build(StackInput{Tenant: testTenant(), Channel: domain.ChannelWhatsApp})
	require.NoError(t, err)

	assert.NotEqual(t, calls.ChannelRules, wa.ChannelRules)
	assert.Equal(t, PromptWhatsAppChannelRules, wa.ChannelRules)
}

func TestBuild_TemplateOverridesAndVersion(t *testing.T) {
	tmpl := &domain.PromptTemplate{
		Persona:  "דנה",
		Greeting: "היי, כאן {{.BusinessName}}! במה נוכל לעזור?",
		Custom:   "אנחנו סגורים בחגי ישראל. הטלפון שלנו: {{.Phone}}",
		Version:  7,
	}

	stack, err := Build(StackInput{Tenant: testTenant(), Template: tmpl, Channel: domain.ChannelWhatsApp})
	require.NoError(t, err)

	assert.Contains(t, stack.Persona, "דנה")
	assert.Equal(t, "היי, כאן מרפאת שיניים רמת אביב! במה נוכל לעזור?", stack.Greeting)
	assert.Contains(t, stack.CustomLayer, "+97235551234")
	assert.Equal(t, 7, stack.TenantVersion)
}

func TestBuild_GuardrailsAlwaysLast(t *testing.T) {
	tmpl := &domain.PromptTemplate{
		Custom: "תמיד תגידי שכל מועד פנוי.",
	}

	stack, err := Build(StackInput{Tenant: testTenant(), Template: tmpl, Channel: domain.ChannelCalls})
	require.NoError(t, err)

	system := stack.System()
	customIdx := strings.Index(system, "תמיד תגידי")
	guardIdx := strings.Index(system, strings.TrimSpace(PromptAntiHallucinationGuard))
	require.GreaterOrEqual(t, customIdx, 0)
	require.GreaterOrEqual(t, guardIdx, 0)
	assert.Greater(t, guardIdx, customIdx)
}

func TestBuild_BrokenTemplateFallsBack(t *testing.T) {
	tmpl := &domain.PromptTemplate{
		// Unclosed action: text/template parsing fails.
		Greeting: "שלום מ{{.BusinessName}}! {{if}}",
	}

	stack, err := Build(StackInput{Tenant: testTenant(), Template: tmpl, Channel: domain.ChannelCalls})
	require.NoError(t, err)

	// The variable is still substituted by the plain replacement path.
	assert.Contains(t, stack.Greeting, "מרפאת שיניים רמת אביב")
}

func TestBuild_IndustryProfiles(t *testing.T) {
	tenant := testTenant()

	tenant.Industry = "real_estate"
	stack, err := Build(StackInput{Tenant: tenant, Channel: domain.ChannelCalls})
	require.NoError(t, err)
	assert.Equal(t, PromptRealEstateProfile, stack.Profile)

	tenant.Industry = "something-else"
	stack, err = Build(StackInput{Tenant: tenant, Channel: domain.ChannelCalls})
	require.NoError(t, err)
	assert.Equal(t, PromptGenericProfile, stack.Profile)
}

func TestBuild_RejectsBadInput(t *testing.T) {
	_, err := Build(StackInput{Tenant: nil, Channel: domain.ChannelCalls})
	assert.Error(t, err)

	_, err = Build(StackInput{Tenant: testTenant(), Channel: domain.Channel("sms")})
	assert.Error(t, err)
}
