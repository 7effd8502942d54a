package onebot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageUnmarshalArray(t *testing.T) {
	raw := `[{"type":"at","data":{"qq":123}},{"type":"text","data":{"text":" 自检"}}]`

	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.Len(t, m, 2)
	assert.Equal(t, "at", m[0].Type)
	assert.Equal(t, "123", m[0].Data["qq"])
	assert.True(t, m.Mentions("123"))
	assert.Equal(t, " 自检", m.PlainText())
}

func TestMessageUnmarshalString(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`"[CQ:at,qq=42] hello &#91;x&#93;"`), &m))
	require.Len(t, m, 2)
	assert.True(t, m.Mentions("42"))
	assert.Equal(t, " hello [x]", m.PlainText())
}

func TestParseCQ(t *testing.T) {
	tests := []struct {
		name  string
		input string
		types []string
	}{
		{"plain text", "hi", []string{"text"}},
		{"code only", "[CQ:face,id=1]", []string{"face"}},
		{"code without data", "[CQ:shake]", []string{"shake"}},
		{"mixed", "a[CQ:at,qq=1]b", []string{"text", "at", "text"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ParseCQ(tt.input)
			var types []string
			for _, seg := range m {
				types = append(types, seg.Type)
			}
			assert.Equal(t, tt.types, types)
		})
	}
}

func TestImagePNG(t *testing.T) {
	seg := ImagePNG([]byte("png"))
	assert.Equal(t, "image", seg.Type)
	assert.Equal(t, "base64://cG5n", seg.Data["file"])
}

func TestSanitizeForLog(t *testing.T) {
	body, err := json.Marshal(Message{ImagePNG([]byte("some image bytes"))})
	require.NoError(t, err)

	out := SanitizeForLog(body)
	assert.NotContains(t, out, "c29tZSBpbWFnZSBieXRlcw")
	assert.Contains(t, out, "[base64://_data_omitted_len=24]")
}
