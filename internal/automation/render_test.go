package automation

import (
	"testing"

	"crm-messaging/internal/domain/automation"

	"github.com/stretchr/testify/assert"
)

var greetingMappings = []automation.VariableMapping{
	{Token: "##NAME##", Field: "customerName"},
	{Token: "##CODE##", Field: "code"},
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		mappings []automation.VariableMapping
		data     map[string]any
		want     string
	}{
		{
			name:     "all fields present",
			template: "Hello ##NAME##, your code is ##CODE##",
			mappings: greetingMappings,
			data:     map[string]any{"customerName": "Kim", "code": "1234"},
			want:     "Hello Kim, your code is 1234",
		},
		{
			name:     "missing field renders empty",
			template: "Hello ##NAME##, your code is ##CODE##",
			mappings: greetingMappings,
			data:     map[string]any{"customerName": "Kim"},
			want:     "Hello Kim, your code is ",
		},
		{
			name:     "null field renders empty",
			template: "[##CODE##]",
			mappings: greetingMappings,
			data:     map[string]any{"code": nil},
			want:     "[]",
		},
		{
			name:     "repeated token",
			template: "##NAME## ##NAME## ##NAME##",
			mappings: greetingMappings,
			data:     map[string]any{"customerName": "Lee"},
			want:     "Lee Lee Lee",
		},
		{
			name:     "numbers keep their shape",
			template: "total ##CODE##",
			mappings: greetingMappings,
			data:     map[string]any{"code": float64(15000)},
			want:     "total 15000",
		},
		{
			name:     "unmapped token left alone",
			template: "##NAME## ##OTHER##",
			mappings: greetingMappings,
			data:     map[string]any{"customerName": "Park"},
			want:     "Park ##OTHER##",
		},
		{
			name:     "value containing a token is not expanded again",
			template: "##NAME##/##CODE##",
			mappings: greetingMappings,
			data:     map[string]any{"customerName": "##CODE##", "code": "9"},
			want:     "##CODE##/9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.template, tt.mappings, tt.data))
		})
	}
}

func TestRender_Idempotent(t *testing.T) {
	data := map[string]any{"customerName": "Kim", "code": "1234"}
	once := Render("Hello ##NAME##, your code is ##CODE##", greetingMappings, data)
	assert.Equal(t, once, Render(once, greetingMappings, data))
}

func TestExtractTokens(t *testing.T) {
	got := ExtractTokens("##NAME## ordered ##ITEM_1##, thanks ##NAME##! ## not a token ##")
	assert.Equal(t, []string{"##NAME##", "##ITEM_1##"}, got)
	assert.Empty(t, ExtractTokens("plain text"))
}

func TestUnmappedTokens(t *testing.T) {
	missing := UnmappedTokens(greetingMappings, "Hi ##NAME## ##DATE##", "Subject ##DATE## ##SHOP##")
	assert.Equal(t, []string{"##DATE##", "##SHOP##"}, missing)
}
